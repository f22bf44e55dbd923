package domain

import "time"

// MarketWindow identifies one tradable instance of a short-lived Up/Down market.
// Created by discovery and never mutated; a rotation replaces it with a new value.
type MarketWindow struct {
	ConditionID     string
	Slug            string
	Question        string
	Up              Token // primary outcome, the one we quote
	Down            Token
	TickSize        float64
	NegRisk         bool
	StartTime       time.Time
	EndTime         time.Time
	Active          bool
	Closed          bool
	AcceptingOrders bool
}

// Token es uno de los dos lados del mercado (Up/Down).
type Token struct {
	TokenID string
	Outcome string
}

// IsZero reports whether w is the empty window.
func (w MarketWindow) IsZero() bool {
	return w.ConditionID == ""
}

// Same reports whether both values describe the same market.
func (w MarketWindow) Same(other MarketWindow) bool {
	return w.ConditionID == other.ConditionID
}

// TimeToExpiry devuelve el tiempo restante hasta EndTime. Negativo si ya expiró.
func (w MarketWindow) TimeToExpiry(now time.Time) time.Duration {
	return w.EndTime.Sub(now)
}

// Tradable reports whether the venue currently accepts orders for this window.
func (w MarketWindow) Tradable(now time.Time) bool {
	if w.IsZero() || !w.Active || w.Closed || !w.AcceptingOrders {
		return false
	}
	if !w.StartTime.IsZero() && now.Before(w.StartTime) {
		return false
	}
	return now.Before(w.EndTime)
}

// TokenIDs devuelve los asset ids de ambos outcomes, primero el Up.
func (w MarketWindow) TokenIDs() []string {
	return []string{w.Up.TokenID, w.Down.TokenID}
}

// Label is a short human-readable identifier for logs.
func (w MarketWindow) Label() string {
	if w.Slug != "" {
		return w.Slug
	}
	return TruncateQuestion(w.Question, w.ConditionID, 40)
}

// ActiveMarket is a MarketWindow plus its locked strike price.
// StrikePrice is zero until the first reference observation locks it.
type ActiveMarket struct {
	Window      MarketWindow
	StrikePrice float64
	LockedAt    time.Time
}

// StrikeLocked reports whether the strike has been set for this window.
func (m ActiveMarket) StrikeLocked() bool {
	return m.StrikePrice > 0
}

// Rotation is emitted when the lifecycle replaces the active window.
// Previous is the zero value on the very first discovery.
type Rotation struct {
	Previous MarketWindow
	Current  MarketWindow
	At       time.Time
}

// TruncateQuestion devuelve la pregunta del mercado truncada a maxLen caracteres.
// Si la pregunta está vacía usa los primeros caracteres del conditionID como fallback.
func TruncateQuestion(question, conditionID string, maxLen int) string {
	q := question
	if q == "" {
		if len(conditionID) > 20 {
			q = conditionID[:20] + "..."
		} else {
			q = conditionID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
