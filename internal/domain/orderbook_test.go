package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderBook_SortsAndCleans(t *testing.T) {
	ob := NewOrderBook("up",
		[]BookEntry{{0.40, 10}, {0.45, 5}, {0.30, 0}, {0.42, 1}},
		[]BookEntry{{0.60, 3}, {0.52, 8}, {0, 4}},
	)
	require.Len(t, ob.Bids, 3)
	require.Len(t, ob.Asks, 2)
	assert.Equal(t, 0.45, ob.BestBid())
	assert.Equal(t, 0.52, ob.BestAsk())
	assert.Equal(t, []BookEntry{{0.45, 5}, {0.42, 1}, {0.40, 10}}, ob.Bids)
	assert.Equal(t, []BookEntry{{0.52, 8}, {0.60, 3}}, ob.Asks)
}

func TestOrderBook_SetLevel(t *testing.T) {
	ob := NewOrderBook("up", []BookEntry{{0.40, 10}}, []BookEntry{{0.60, 3}})

	// Inserta y reordena
	ob.SetLevel(Buy, 0.44, 7)
	assert.Equal(t, 0.44, ob.BestBid())

	// Actualiza
	ob.SetLevel(Buy, 0.44, 2)
	assert.Equal(t, 2.0, ob.Bids[0].Size)
	require.Len(t, ob.Bids, 2)

	// Elimina
	ob.SetLevel(Buy, 0.44, 0)
	assert.Equal(t, 0.40, ob.BestBid())

	// Eliminar un nivel inexistente no hace nada
	ob.SetLevel(Sell, 0.70, 0)
	require.Len(t, ob.Asks, 1)

	ob.SetLevel(Sell, 0.55, 1)
	assert.Equal(t, 0.55, ob.BestAsk())

	// "0.5" y "0.50" son el mismo nivel
	ob.SetLevel(Sell, 0.60, 4)
	ob.SetLevel(Sell, ParsePrice("0.600"), 9)
	require.Len(t, ob.Asks, 2)
	assert.Equal(t, 9.0, ob.Asks[1].Size)
}

func TestOrderBook_EmptyBook(t *testing.T) {
	var ob OrderBook
	assert.Equal(t, 0.0, ob.BestBid())
	assert.Equal(t, 0.0, ob.BestAsk())
	ob.SetLevel(Buy, 0, 5)
	assert.Empty(t, ob.Bids, "non-positive prices are ignored")
}

func TestOrderBook_CloneIsIndependent(t *testing.T) {
	ob := NewOrderBook("up", []BookEntry{{0.40, 10}}, nil)
	c := ob.Clone()
	ob.SetLevel(Buy, 0.40, 1)
	assert.Equal(t, 10.0, c.Bids[0].Size)
}
