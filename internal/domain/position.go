package domain

import "math"

const positionEpsilon = 1e-9

// Position es el inventario neto del token Up para la ventana activa.
// NetDelta es siempre el número neto de shares con signo (positivo = largo).
type Position struct {
	NetDelta      float64
	AvgEntryPrice float64
	RealizedPnL   float64
	UnrealizedPnL float64
	Fills         int
}

// LongShares devuelve las shares largas (0 si estamos cortos).
func (p Position) LongShares() float64 {
	return math.Max(p.NetDelta, 0)
}

// ShortShares devuelve las shares cortas en valor absoluto, derivado de NetDelta.
func (p Position) ShortShares() float64 {
	return math.Max(-p.NetDelta, 0)
}

// TotalPnL es realized + unrealized.
func (p Position) TotalPnL() float64 {
	return p.RealizedPnL + p.UnrealizedPnL
}

// Flat reports whether there is no open inventory.
func (p Position) Flat() bool {
	return math.Abs(p.NetDelta) < positionEpsilon
}

// ApplyFill actualiza la posición con un fill y devuelve el PnL realizado por él.
//
// Un fill que aumenta |NetDelta| promedia el precio de entrada por volumen.
// Un fill que la reduce realiza (precio - avg) × tamaño en la dirección de la posición
// y deja el avg intacto. Si cruza cero, la parte sobrante abre posición al precio del fill.
func (p *Position) ApplyFill(side Side, price, size float64) float64 {
	if size <= 0 {
		return 0
	}
	p.Fills++

	signed := size
	if side == Sell {
		signed = -size
	}

	if p.Flat() || sameSign(p.NetDelta, signed) {
		held := math.Abs(p.NetDelta)
		p.AvgEntryPrice = (held*p.AvgEntryPrice + size*price) / (held + size)
		p.NetDelta += signed
		return 0
	}

	direction := 1.0
	if p.NetDelta < 0 {
		direction = -1
	}
	closed := math.Min(size, math.Abs(p.NetDelta))
	realized := (price - p.AvgEntryPrice) * closed * direction
	p.RealizedPnL += realized
	p.NetDelta += signed

	switch {
	case p.Flat():
		p.NetDelta = 0
		p.AvgEntryPrice = 0
	case !sameSign(p.NetDelta, direction):
		p.AvgEntryPrice = price
	}
	return realized
}

// MarkToMarket recalcula el PnL no realizado contra el fair value actual.
func (p *Position) MarkToMarket(fairValue float64) {
	if p.Flat() {
		p.UnrealizedPnL = 0
		return
	}
	p.UnrealizedPnL = p.NetDelta * (fairValue - p.AvgEntryPrice)
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
