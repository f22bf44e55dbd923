package execution

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

// usdcDecimals son los decimales de USDC y de los conditional tokens en el CTF exchange.
const usdcDecimals = 6

// sizeDecimals es la precisión de shares que acepta el CLOB.
const sizeDecimals = 2

// orderAmounts convierte precio y tamaño a makerAmount/takerAmount en unidades base.
// BUY: entregamos USDC (precio × tamaño) y recibimos shares.
// SELL: entregamos shares y recibimos USDC.
func orderAmounts(side domain.Side, price, size, tick float64) (maker, taker string) {
	p := decimal.NewFromFloat(price).Round(tickDecimals(tick))
	s := decimal.NewFromFloat(size).RoundDown(sizeDecimals)
	notional := p.Mul(s)

	scale := decimal.New(1, usdcDecimals)
	shares := s.Mul(scale).Truncate(0).String()
	usdc := notional.Mul(scale).Truncate(0).String()

	if side == domain.Buy {
		return usdc, shares
	}
	return shares, usdc
}

// roundSize es el tamaño que de verdad se firma: shares truncadas a sizeDecimals.
func roundSize(size float64) float64 {
	return decimal.NewFromFloat(size).RoundDown(sizeDecimals).InexactFloat64()
}

// tickDecimals devuelve los decimales del tick: 0.01 → 2, 0.001 → 3.
func tickDecimals(tick float64) int32 {
	if tick <= 0 || tick >= 1 {
		return 2
	}
	return int32(math.Round(-math.Log10(tick)))
}
