package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

func TestOrderAmounts(t *testing.T) {
	tests := []struct {
		name         string
		side         domain.Side
		price, size  float64
		tick         float64
		maker, taker string
	}{
		{"buy", domain.Buy, 0.43, 10, 0.01, "4300000", "10000000"},
		{"sell", domain.Sell, 0.43, 10, 0.01, "10000000", "4300000"},
		{"float noise", domain.Buy, 0.43000000000000005, 10, 0.01, "4300000", "10000000"},
		{"fine tick", domain.Buy, 0.123, 7.5, 0.001, "922500", "7500000"},
		{"size truncated", domain.Sell, 0.5, 3.339, 0.01, "3330000", "1665000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maker, taker := orderAmounts(tt.side, tt.price, tt.size, tt.tick)
			assert.Equal(t, tt.maker, maker)
			assert.Equal(t, tt.taker, taker)
		})
	}
}

func TestRoundSize(t *testing.T) {
	assert.Equal(t, 10.0, roundSize(10.005))
	assert.Equal(t, 3.33, roundSize(3.339))
	assert.Equal(t, 7.5, roundSize(7.5))
	assert.Equal(t, 0.0, roundSize(0.004))
}

func TestTickDecimals(t *testing.T) {
	assert.Equal(t, int32(1), tickDecimals(0.1))
	assert.Equal(t, int32(2), tickDecimals(0.01))
	assert.Equal(t, int32(3), tickDecimals(0.001))
	assert.Equal(t, int32(4), tickDecimals(0.0001))
	assert.Equal(t, int32(2), tickDecimals(0))
}
