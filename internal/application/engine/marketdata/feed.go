// Package marketdata convierte el stream de trades del activo de referencia en
// ticks de precio con volatilidad anualizada.
package marketdata

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/domain"
	"github.com/alejandrodnm/polyquoter/internal/ports"
)

const (
	DefaultAlpha          = 0.06
	DefaultReconnectDelay = time.Second
)

// EWMA estima la varianza de los log-returns con media exponencial.
// No es seguro para uso concurrente: lo alimenta una sola goroutine.
type EWMA struct {
	alpha         float64
	tradesPerYear float64
	lastPrice     float64
	variance      float64
}

// NewEWMA crea un estimador. alpha fuera de (0,1] usa DefaultAlpha.
func NewEWMA(alpha, tradesPerYear float64) *EWMA {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &EWMA{alpha: alpha, tradesPerYear: tradesPerYear}
}

// Update incorpora un precio y devuelve la volatilidad anualizada.
// El primer precio solo fija la referencia.
func (e *EWMA) Update(price float64) float64 {
	if price <= 0 {
		return e.Volatility()
	}
	if e.lastPrice > 0 {
		r := math.Log(price / e.lastPrice)
		e.variance = e.alpha*r*r + (1-e.alpha)*e.variance
	}
	e.lastPrice = price
	return e.Volatility()
}

// Volatility devuelve sqrt(varianza × trades por año).
func (e *EWMA) Volatility() float64 {
	return math.Sqrt(e.variance * e.tradesPerYear)
}

// Config controla el feed.
type Config struct {
	Symbol         string
	Alpha          float64
	TradesPerYear  float64
	ReconnectDelay time.Duration
}

// Feed mantiene la conexión al feed de referencia y el estimador de volatilidad.
type Feed struct {
	source ports.TradeSource
	cfg    Config
	ewma   *EWMA

	connects    atomic.Int64
	disconnects atomic.Int64
}

// New crea el feed.
func New(source ports.TradeSource, cfg Config) *Feed {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Feed{
		source: source,
		cfg:    cfg,
		ewma:   NewEWMA(cfg.Alpha, cfg.TradesPerYear),
	}
}

// Run conecta y reconecta con un delay fijo hasta que ctx se cancele.
// emit se llama desde esta goroutine con cada trade. El estimador sobrevive a las reconexiones.
func (f *Feed) Run(ctx context.Context, emit func(domain.PriceTick)) {
	for {
		err := f.source.StreamTrades(ctx, f.cfg.Symbol, f.onConnect, func(t domain.Trade) {
			emit(f.process(t))
		})
		if ctx.Err() != nil {
			return
		}
		f.disconnects.Add(1)
		slog.Warn("marketdata: feed disconnected, reconnecting",
			"symbol", f.cfg.Symbol, "delay", f.cfg.ReconnectDelay, "err", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.cfg.ReconnectDelay):
		}
	}
}

// Stats devuelve los contadores de conexión.
func (f *Feed) Stats() (connects, disconnects int64) {
	return f.connects.Load(), f.disconnects.Load()
}

func (f *Feed) onConnect() {
	n := f.connects.Add(1)
	slog.Info("marketdata: feed connected", "symbol", f.cfg.Symbol, "connects", n)
}

func (f *Feed) process(t domain.Trade) domain.PriceTick {
	vol := f.ewma.Update(t.Price)
	received := t.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	return domain.PriceTick{
		Price:      t.Price,
		Timestamp:  t.Timestamp,
		Volatility: vol,
		ReceivedAt: received,
	}
}
