package domain

import (
	"math"
	"time"
)

const (
	// Año de 365.25 días para convertir tiempo a expiración en fracción de año.
	secondsPerYear = 365.25 * 24 * 60 * 60
	minYears       = 1e-10

	MinFairValue     = 0.01
	MaxFairValue     = 0.99
	NeutralFairValue = 0.5
)

// FairValue devuelve la probabilidad de que el outcome "Up" resuelva true:
// N(ln(S/K) / (σ·√T)), acotada a [0.01, 0.99].
// Con spot, strike o vol no positivos devuelve exactamente 0.5.
func FairValue(spot, strike, vol float64, ttl time.Duration) float64 {
	if spot <= 0 || strike <= 0 || vol <= 0 {
		return NeutralFairValue
	}
	years := YearFraction(ttl)
	d := math.Log(spot/strike) / (vol * math.Sqrt(years))
	return clamp(NormCDF(d), MinFairValue, MaxFairValue)
}

// YearFraction convierte una duración a años con un suelo de 1e-10.
func YearFraction(ttl time.Duration) float64 {
	years := ttl.Seconds() / secondsPerYear
	if years < minYears {
		return minYears
	}
	return years
}

// NormCDF es la CDF de la normal estándar.
func NormCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
