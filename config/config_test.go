package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "btc-updown-15m", cfg.Quoter.Strategy)
	assert.Equal(t, 10.0, cfg.Quoting.OrderSize)
	assert.Equal(t, 200.0, cfg.Quoting.MinSpreadBps)
	assert.Equal(t, 800.0, cfg.Quoting.MaxSpreadBps)
	assert.Equal(t, 0.06, cfg.Quoting.EWMAAlpha)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.Zero(t, cfg.PollInterval())
	assert.Zero(t, cfg.StatusInterval(), "notify disabled by default")
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestParse_YAMLValues(t *testing.T) {
	cfg, err := Parse([]byte(`
quoter:
  strategy: eth-updown-15m
market:
  slug: eth-updown-15m-1760880600
  poll_interval_seconds: 2
risk:
  max_position: 50
  max_notional: 25
  max_loss: 5
execution:
  heartbeat_seconds: -1
notify:
  enabled: true
  interval_seconds: 3
`))
	require.NoError(t, err)

	assert.Equal(t, "eth-updown-15m", cfg.Quoter.Strategy)
	assert.Equal(t, "eth-updown-15m-1760880600", cfg.Market.Slug)
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, 5.0, cfg.Risk.MaxLoss)
	assert.Negative(t, cfg.HeartbeatInterval())
	assert.Equal(t, 3*time.Second, cfg.StatusInterval())
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("POLY_PRIVATE_KEY", "0xabc")
	t.Setenv("POLY_FUNDER", "0xfunder")
	t.Setenv("POLY_SIGNATURE_TYPE", "2")
	t.Setenv("QUOTER_STRATEGY", "sol-updown-15m")
	t.Setenv("QUOTER_SLUG", "sol-updown-15m-1")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Parse([]byte("quoter:\n  strategy: btc-updown-15m\n"))
	require.NoError(t, err)

	assert.Equal(t, "0xabc", cfg.Wallet.PrivateKey)
	assert.Equal(t, "0xfunder", cfg.Wallet.Funder)
	assert.Equal(t, 2, cfg.Wallet.SignatureType)
	assert.Equal(t, "sol-updown-15m", cfg.Quoter.Strategy)
	assert.Equal(t, "sol-updown-15m-1", cfg.Market.Slug)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParse_PrivateKeyNotReadFromYAML(t *testing.T) {
	cfg, err := Parse([]byte("wallet:\n  private_key: 0xleaked\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Wallet.PrivateKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative order size", "quoting:\n  order_size: -1\n"},
		{"order size below one cent of a share", "quoting:\n  order_size: 0.004\n"},
		{"inverted spreads", "quoting:\n  min_spread_bps: 500\n  max_spread_bps: 100\n"},
		{"inverted vol band", "quoting:\n  vol_floor: 0.9\n  vol_ceiling: 0.1\n"},
		{"alpha above one", "quoting:\n  ewma_alpha: 1.5\n"},
		{"negative loss", "risk:\n  max_loss: -3\n"},
		{"bad signature type", "wallet:\n  signature_type: 7\n"},
		{"bad log format", "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "btc-updown-15m", cfg.Quoter.Strategy)
	assert.True(t, cfg.Execution.PostOnly)
	assert.Equal(t, "quoter.db", cfg.Storage.DSN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
