package strategy_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/domain/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Registered(t *testing.T) {
	for _, id := range []string{"btc-updown-15m", "eth-updown-15m", "sol-updown-15m", "btc-updown-1h"} {
		s, err := strategy.Get(id)
		require.NoError(t, err, id)
		assert.Equal(t, id, s.ID())
		assert.Greater(t, s.TradesPerYear(), 0.0)
		assert.Greater(t, s.PollInterval(), time.Duration(0))
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := strategy.Get("doge-updown-5m")
	require.Error(t, err)
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)
}

func TestEpochSlugs(t *testing.T) {
	s, err := strategy.Get("btc-updown-15m")
	require.NoError(t, err)

	now := time.Date(2025, 10, 19, 13, 7, 30, 0, time.UTC)
	slugs := s.Slugs(now)
	start := time.Date(2025, 10, 19, 13, 0, 0, 0, time.UTC).Unix()

	require.Len(t, slugs, 2)
	assert.Equal(t, "btc-updown-15m-"+strconv.FormatInt(start, 10), slugs[0])
	assert.Equal(t, "btc-updown-15m-"+strconv.FormatInt(start+900, 10), slugs[1])
	assert.Equal(t, "btcusdt", s.Asset())
	assert.Equal(t, 15*time.Minute, s.Window())
}

func TestHourlySlugs(t *testing.T) {
	s, err := strategy.Get("btc-updown-1h")
	require.NoError(t, err)

	// 19:20 UTC = 15:20 EDT
	now := time.Date(2025, 10, 19, 19, 20, 0, 0, time.UTC)
	slugs := s.Slugs(now)
	require.Len(t, slugs, 2)
	assert.Equal(t, "bitcoin-up-or-down-october-19-3pm-et", slugs[0])
	assert.Equal(t, "bitcoin-up-or-down-october-19-4pm-et", slugs[1])
}

func TestIDs_Sorted(t *testing.T) {
	ids := strategy.IDs()
	assert.IsIncreasing(t, ids)
}
