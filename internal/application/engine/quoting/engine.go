// Package quoting calcula el par bid/ask del token Up a partir del fair value,
// la volatilidad y el inventario.
package quoting

import (
	"math"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

// Config son los parámetros del quoting. Los spreads van en bps del precio (1bp = 0.0001).
type Config struct {
	OrderSize           float64 // shares por lado
	MinSpreadBps        float64
	MaxSpreadBps        float64
	VolFloor            float64 // volatilidad anualizada "normal", ej. 0.30
	VolCeiling          float64 // volatilidad anualizada "extrema", ej. 0.80
	SkewFactor          float64 // desplazamiento de precio por share neta
	RequoteThresholdBps float64
}

// DefaultConfig devuelve los valores por defecto.
func DefaultConfig() Config {
	return Config{
		OrderSize:           10,
		MinSpreadBps:        200,
		MaxSpreadBps:        800,
		VolFloor:            0.30,
		VolCeiling:          0.80,
		SkewFactor:          0.0001,
		RequoteThresholdBps: 50,
	}
}

// Engine guarda solo el último quote calculado, para el gate de requote.
type Engine struct {
	cfg     Config
	last    domain.Quote
	hasLast bool
	now     func() time.Time
}

// New crea el engine de quoting.
func New(cfg Config) *Engine {
	if cfg.MaxSpreadBps < cfg.MinSpreadBps {
		cfg.MaxSpreadBps = cfg.MinSpreadBps
	}
	return &Engine{cfg: cfg, now: time.Now}
}

// Compute calcula el quote candidato. ok=false si no hay quote válido
// (fair value fuera de (0,1), tick inválido o bid >= ask tras redondear).
// requote indica si el cambio respecto al último quote supera el umbral.
// Todo quote válido pasa a ser la nueva referencia, se publique o no.
func (e *Engine) Compute(fairValue, volatility, netDelta, tick float64) (q domain.Quote, requote, ok bool) {
	if !(fairValue > 0 && fairValue < 1) || tick <= 0 || tick >= 0.5 {
		return domain.Quote{}, false, false
	}

	half := e.SpreadFor(volatility) / 2
	skew := -netDelta * e.cfg.SkewFactor

	bid := domain.RoundToTick(fairValue-half+skew, tick)
	ask := domain.RoundToTick(fairValue+half+skew, tick)
	if bid >= ask {
		return domain.Quote{}, false, false
	}

	q = domain.Quote{
		BidPrice:  bid,
		AskPrice:  ask,
		BidSize:   e.cfg.OrderSize,
		AskSize:   e.cfg.OrderSize,
		FairValue: fairValue,
		Spread:    ask - bid,
		Timestamp: e.now(),
	}

	requote = !e.hasLast || ShouldRequote(e.last, q, e.cfg.RequoteThresholdBps)
	e.last = q
	e.hasLast = true
	return q, requote, true
}

// SpreadFor devuelve el spread objetivo como fracción, interpolado linealmente
// entre MinSpreadBps y MaxSpreadBps según dónde cae la volatilidad en [floor, ceiling].
func (e *Engine) SpreadFor(volatility float64) float64 {
	t := 0.0
	if span := e.cfg.VolCeiling - e.cfg.VolFloor; span > 0 {
		t = (volatility - e.cfg.VolFloor) / span
	} else if volatility >= e.cfg.VolCeiling {
		t = 1
	}
	t = math.Max(0, math.Min(1, t))
	bps := e.cfg.MinSpreadBps + t*(e.cfg.MaxSpreadBps-e.cfg.MinSpreadBps)
	return bps / 10_000
}

// Last devuelve el último quote calculado.
func (e *Engine) Last() (domain.Quote, bool) {
	return e.last, e.hasLast
}

// Reset olvida el último quote: el siguiente siempre es requote.
func (e *Engine) Reset() {
	e.last = domain.Quote{}
	e.hasLast = false
}

// ShouldRequote reports whether either side moved at least thresholdBps relative to prev.
func ShouldRequote(prev, next domain.Quote, thresholdBps float64) bool {
	return domain.ChangeBps(prev.BidPrice, next.BidPrice) >= thresholdBps ||
		domain.ChangeBps(prev.AskPrice, next.AskPrice) >= thresholdBps
}
