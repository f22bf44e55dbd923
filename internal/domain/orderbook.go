package domain

import (
	"cmp"
	"slices"
	"strconv"
	"time"
)

// OrderBook es el libro de un token: Bids de mayor a menor, Asks de menor a mayor.
type OrderBook struct {
	TokenID   string
	Bids      []BookEntry
	Asks      []BookEntry
	UpdatedAt time.Time
}

// BookEntry es un nivel de precio.
type BookEntry struct {
	Price float64
	Size  float64
}

// priceEpsilon iguala precios que llegan como strings distintos ("0.5" y "0.50").
const priceEpsilon = 1e-9

// NewOrderBook builds a book from unsorted levels, dropping non-positive entries.
func NewOrderBook(tokenID string, bids, asks []BookEntry) OrderBook {
	ob := OrderBook{TokenID: tokenID}
	for _, l := range bids {
		ob.SetLevel(Buy, l.Price, l.Size)
	}
	for _, l := range asks {
		ob.SetLevel(Sell, l.Price, l.Size)
	}
	return ob
}

// SetLevel applies an incremental change. Size zero removes the level;
// a positive size updates an existing level or inserts a new one.
func (ob *OrderBook) SetLevel(side Side, price, size float64) {
	if price <= 0 {
		return
	}
	levels, better := &ob.Asks, cmp.Compare[float64]
	if side == Buy {
		levels = &ob.Bids
		better = func(a, b float64) int { return cmp.Compare(b, a) }
	}

	i, found := slices.BinarySearchFunc(*levels, price, func(l BookEntry, p float64) int {
		if d := l.Price - p; d < priceEpsilon && d > -priceEpsilon {
			return 0
		}
		return better(l.Price, p)
	})
	switch {
	case found && size <= 0:
		*levels = slices.Delete(*levels, i, i+1)
	case found:
		(*levels)[i].Size = size
	case size > 0:
		*levels = slices.Insert(*levels, i, BookEntry{Price: price, Size: size})
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (ob OrderBook) Clone() OrderBook {
	out := ob
	out.Bids = slices.Clone(ob.Bids)
	out.Asks = slices.Clone(ob.Asks)
	return out
}

// BestBid devuelve el mayor bid, o 0 con el lado vacío.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk devuelve el menor ask, o 0 con el lado vacío.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// ParsePrice convierte un decimal de la API a float64; un valor inválido es 0.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
