package domain

import (
	"math"
	"time"
)

// Quote es un par bid/ask candidato para el token Up.
// Invariante: BidPrice < AskPrice, ambos múltiplos del tick dentro de [tick, 1-tick].
type Quote struct {
	BidPrice  float64
	AskPrice  float64
	BidSize   float64
	AskSize   float64
	FairValue float64
	Spread    float64
	Timestamp time.Time
}

// HasBid reports whether the bid side carries size.
func (q Quote) HasBid() bool { return q.BidSize > 0 }

// HasAsk reports whether the ask side carries size.
func (q Quote) HasAsk() bool { return q.AskSize > 0 }

// Empty reports whether both sides were zeroed.
func (q Quote) Empty() bool { return !q.HasBid() && !q.HasAsk() }

// RoundToTick redondea price al múltiplo de tick más cercano y lo acota a [tick, 1-tick].
// Se calcula como steps/inverse para que el resultado sea el float más cercano
// al decimal exacto (0.43 en vez de 0.43000000000000005).
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	inv := math.Round(1 / tick)
	steps := math.Round(price * inv)
	minSteps := 1.0
	maxSteps := inv - 1
	if steps < minSteps {
		steps = minSteps
	}
	if steps > maxSteps {
		steps = maxSteps
	}
	return steps / inv
}

// OnTick reports whether price is an exact multiple of tick (within float noise).
func OnTick(price, tick float64) bool {
	if tick <= 0 {
		return true
	}
	steps := price / tick
	return math.Abs(steps-math.Round(steps)) < 1e-6
}

// ChangeBps devuelve el cambio relativo entre dos precios en basis points.
func ChangeBps(prev, next float64) float64 {
	if prev == 0 {
		if next == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(next-prev) / prev * 10_000
}
