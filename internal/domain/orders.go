package domain

import "time"

// Side es el lado de una orden sobre el token Up.
type Side int

const (
	Buy Side = iota
	Sell
)

// String devuelve el lado en el formato del CLOB.
func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// ParseSide convierte "BUY"/"SELL" del CLOB a Side.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "BUY", "buy", "Buy":
		return Buy, true
	case "SELL", "sell", "Sell":
		return Sell, true
	default:
		return Buy, false
	}
}

// ActiveOrderSet es nuestra vista de las órdenes en reposo en el CLOB.
// Un ID vacío significa que ese lado no tiene orden.
type ActiveOrderSet struct {
	BidOrderID string
	AskOrderID string
	BidPrice   float64
	AskPrice   float64
	BidSize    float64
	AskSize    float64
	PlacedAt   time.Time
}

// Empty reports whether no side has a live order.
func (s ActiveOrderSet) Empty() bool {
	return s.BidOrderID == "" && s.AskOrderID == ""
}

// OrderFields son los campos normalizados de una orden antes de firmar.
// Los amounts van en unidades base (6 decimales) como string decimal.
type OrderFields struct {
	Maker         string
	Signer        string
	Taker         string
	TokenID       string
	MakerAmount   string
	TakerAmount   string
	Expiration    string
	Nonce         string
	FeeRateBps    string
	Side          Side
	SignatureType int
	NegRisk       bool // selecciona el exchange de neg-risk como dominio EIP-712
}

// SignedOrder es una orden lista para enviar. Price/Size quedan para trazabilidad local.
type SignedOrder struct {
	Fields    OrderFields
	Salt      string
	Signature string
	Price     float64
	Size      float64
}

// OrderResult es el resultado por orden de un submit.
type OrderResult struct {
	OrderID  string
	Status   string
	Success  bool
	ErrorMsg string
}

// OK reports whether the venue accepted the order.
func (r OrderResult) OK() bool {
	return r.Success && r.ErrorMsg == "" && r.OrderID != ""
}

// CycleTimings mide las fases de un ciclo cancel-and-replace.
type CycleTimings struct {
	CycleID  string
	Sign     time.Duration // max de las dos firmas
	Cancel   time.Duration
	Submit   time.Duration
	Total    time.Duration
	Fallback bool
}
