package quoting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyquoter/internal/application/engine/quoting"
	"github.com/alejandrodnm/polyquoter/internal/domain"
)

func TestCompute_Basic(t *testing.T) {
	e := quoting.New(quoting.DefaultConfig())

	// vol por debajo del floor → spread mínimo (200bps → half 0.01).
	q, requote, ok := e.Compute(0.50, 0.10, 0, 0.01)
	require.True(t, ok)
	assert.True(t, requote, "first quote always requotes")
	assert.Equal(t, 0.49, q.BidPrice)
	assert.Equal(t, 0.51, q.AskPrice)
	assert.Equal(t, 10.0, q.BidSize)
	assert.Equal(t, 0.50, q.FairValue)
}

func TestCompute_RejectsInvalid(t *testing.T) {
	e := quoting.New(quoting.DefaultConfig())
	for _, fv := range []float64{0, 1, -0.1, 1.2} {
		_, _, ok := e.Compute(fv, 0.5, 0, 0.01)
		assert.False(t, ok, "fv=%v", fv)
	}
	_, _, ok := e.Compute(0.5, 0.5, 0, 0)
	assert.False(t, ok, "zero tick")
}

func TestCompute_CrossedRejected(t *testing.T) {
	cfg := quoting.DefaultConfig()
	cfg.MinSpreadBps, cfg.MaxSpreadBps = 0, 0
	e := quoting.New(cfg)

	_, _, ok := e.Compute(0.503, 0.5, 0, 0.01)
	assert.False(t, ok, "zero spread rounds both sides onto the same tick")
}

func TestCompute_TickInvariant(t *testing.T) {
	e := quoting.New(quoting.DefaultConfig())
	for _, tick := range []float64{0.01, 0.001, 0.1} {
		for fv := 0.005; fv < 1; fv += 0.0137 {
			for _, delta := range []float64{-500, 0, 300} {
				q, _, ok := e.Compute(fv, 0.55, delta, tick)
				if !ok {
					continue
				}
				assert.True(t, domain.OnTick(q.BidPrice, tick), "bid %v tick %v", q.BidPrice, tick)
				assert.True(t, domain.OnTick(q.AskPrice, tick), "ask %v tick %v", q.AskPrice, tick)
				assert.Less(t, q.BidPrice, q.AskPrice)
				assert.GreaterOrEqual(t, q.BidPrice, tick-1e-12)
				assert.LessOrEqual(t, q.AskPrice, 1-tick+1e-12)
			}
		}
	}
}

func TestSpreadFor_Bounds(t *testing.T) {
	cfg := quoting.DefaultConfig()
	e := quoting.New(cfg)

	for _, vol := range []float64{0, 0.1, 0.3, 0.42, 0.55, 0.8, 1.5, 10} {
		s := e.SpreadFor(vol)
		assert.GreaterOrEqual(t, s, cfg.MinSpreadBps/10_000, "vol %v", vol)
		assert.LessOrEqual(t, s, cfg.MaxSpreadBps/10_000, "vol %v", vol)
	}
	assert.InDelta(t, 0.02, e.SpreadFor(0.30), 1e-12)
	assert.InDelta(t, 0.05, e.SpreadFor(0.55), 1e-12)
	assert.InDelta(t, 0.08, e.SpreadFor(0.80), 1e-12)
}

func TestCompute_InventorySkew(t *testing.T) {
	cfg := quoting.DefaultConfig()
	cfg.SkewFactor = 0.0001
	e := quoting.New(cfg)

	// Largo 200 → skew -0.02: ambos lados bajan.
	q, _, ok := e.Compute(0.50, 0.10, 200, 0.01)
	require.True(t, ok)
	assert.Equal(t, 0.47, q.BidPrice)
	assert.Equal(t, 0.49, q.AskPrice)

	q, _, ok = e.Compute(0.50, 0.10, -200, 0.01)
	require.True(t, ok)
	assert.Equal(t, 0.51, q.BidPrice)
	assert.Equal(t, 0.53, q.AskPrice)
}

func TestShouldRequote_Threshold(t *testing.T) {
	prev := domain.Quote{BidPrice: 0.40, AskPrice: 0.44}

	assert.False(t, quoting.ShouldRequote(prev, domain.Quote{BidPrice: 0.4002, AskPrice: 0.44}, 50))
	assert.True(t, quoting.ShouldRequote(prev, domain.Quote{BidPrice: 0.403, AskPrice: 0.44}, 50))
	assert.True(t, quoting.ShouldRequote(prev, domain.Quote{BidPrice: 0.40, AskPrice: 0.45}, 50))
}

func TestCompute_BaselineAlwaysUpdated(t *testing.T) {
	cfg := quoting.DefaultConfig()
	cfg.RequoteThresholdBps = 300 // 3%
	e := quoting.New(cfg)

	_, requote, _ := e.Compute(0.50, 0.1, 0, 0.01) // 0.49 / 0.51
	require.True(t, requote)

	_, requote, _ = e.Compute(0.51, 0.1, 0, 0.01) // 0.50 / 0.52, ~2%
	assert.False(t, requote)
	last, ok := e.Last()
	require.True(t, ok)
	assert.Equal(t, 0.50, last.BidPrice, "non-requoted quote becomes the baseline")

	_, requote, _ = e.Compute(0.52, 0.1, 0, 0.01) // 0.51 vs 0.50 = 2%
	assert.False(t, requote, "drift is measured against the latest baseline")

	e.Reset()
	_, requote, _ = e.Compute(0.52, 0.1, 0, 0.01)
	assert.True(t, requote, "reset forces a requote")
}
