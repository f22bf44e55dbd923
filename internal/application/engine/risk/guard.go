// Package risk es el dueño de la posición y decide si un quote puede salir.
package risk

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

// FillResult es el efecto de un fill sobre la posición.
type FillResult struct {
	Realized  float64
	Position  domain.Position
	HaltArmed bool // el fill disparó el halt ahora mismo
}

// Guard no es seguro para uso concurrente: lo usa solo el coordinator.
type Guard struct {
	limits     domain.RiskLimits
	pos        domain.Position
	halted     bool
	haltReason string
	fairValue  float64 // último fair value visto, para marcar tras un fill
}

// New crea el guard con los límites dados.
func New(limits domain.RiskLimits) *Guard {
	return &Guard{limits: limits}
}

// ProcessFill aplica un fill y vuelve a comprobar el límite de pérdida.
func (g *Guard) ProcessFill(side domain.Side, price, size float64) FillResult {
	realized := g.pos.ApplyFill(side, price, size)
	if g.fairValue > 0 {
		g.pos.MarkToMarket(g.fairValue)
	} else {
		g.pos.MarkToMarket(price)
	}
	armed := g.checkLoss()
	return FillResult{Realized: realized, Position: g.pos, HaltArmed: armed}
}

// RefreshUnrealized marca la posición contra el fair value actual.
func (g *Guard) RefreshUnrealized(fairValue float64) {
	g.fairValue = fairValue
	g.pos.MarkToMarket(fairValue)
}

// CheckQuote decide sobre un quote candidato. Precedencia: halt, pérdida, notional, posición.
func (g *Guard) CheckQuote(q domain.Quote) domain.RiskDecision {
	if g.halted {
		return domain.RiskHalt
	}
	if g.checkLoss() {
		return domain.RiskHalt
	}

	abs := math.Abs(g.pos.NetDelta)
	if g.limits.MaxNotional > 0 && abs*q.FairValue > g.limits.MaxNotional {
		return domain.RiskReduceOnly
	}
	if g.limits.MaxPosition > 0 && abs > g.limits.MaxPosition {
		return domain.RiskReduceOnly
	}
	return domain.RiskAllow
}

// ApplyAdjustment ajusta los tamaños según la decisión.
// REDUCE_ONLY anula el lado que aumentaría |netDelta|: el bid si estamos largos,
// el ask si estamos cortos o planos.
func (g *Guard) ApplyAdjustment(q domain.Quote, d domain.RiskDecision) domain.Quote {
	switch d {
	case domain.RiskHalt:
		q.BidSize = 0
		q.AskSize = 0
	case domain.RiskReduceOnly:
		if g.pos.NetDelta > 0 {
			q.BidSize = 0
		} else {
			q.AskSize = 0
		}
	}
	return q
}

// Halted reports whether the sticky halt is armed.
func (g *Guard) Halted() bool { return g.halted }

// HaltReason devuelve el motivo del último halt.
func (g *Guard) HaltReason() string { return g.haltReason }

// Unhalt limpia el halt. Solo lo llama el operador.
func (g *Guard) Unhalt() {
	if g.halted {
		slog.Warn("risk: halt cleared by operator", "reason", g.haltReason, "pnl", g.pos.TotalPnL())
	}
	g.halted = false
	g.haltReason = ""
}

// Reset vuelve al estado inicial (rotación de mercado).
func (g *Guard) Reset() {
	g.pos = domain.Position{}
	g.halted = false
	g.haltReason = ""
	g.fairValue = 0
}

// Position devuelve una copia de la posición.
func (g *Guard) Position() domain.Position { return g.pos }

// Limits devuelve los límites configurados.
func (g *Guard) Limits() domain.RiskLimits { return g.limits }

// checkLoss arma el halt si la pérdida total supera MaxLoss. Devuelve true solo
// cuando lo arma en esta llamada.
func (g *Guard) checkLoss() bool {
	if g.halted || g.limits.MaxLoss <= 0 {
		return false
	}
	total := g.pos.TotalPnL()
	if total >= -g.limits.MaxLoss {
		return false
	}
	g.halted = true
	g.haltReason = fmt.Sprintf("max loss breached: pnl %.4f < -%.4f", total, g.limits.MaxLoss)
	slog.Error("risk: HALT", "reason", g.haltReason, "net_delta", g.pos.NetDelta)
	return true
}
