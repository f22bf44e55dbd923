package domain

// RiskDecision clasifica un quote candidato.
type RiskDecision int

const (
	RiskAllow RiskDecision = iota
	RiskReduceOnly
	RiskHalt
)

// String devuelve el nombre legible de la decisión.
func (d RiskDecision) String() string {
	switch d {
	case RiskAllow:
		return "ALLOW"
	case RiskReduceOnly:
		return "REDUCE_ONLY"
	case RiskHalt:
		return "HALT"
	default:
		return "UNKNOWN"
	}
}

// RiskLimits son los límites configurados para una instancia.
type RiskLimits struct {
	MaxPosition float64 // shares netas
	MaxNotional float64 // USDC = |netDelta| × fair value
	MaxLoss     float64 // USDC, positivo
}
