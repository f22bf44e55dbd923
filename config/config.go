package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid envuelve todos los errores de validación.
var ErrInvalid = errors.New("invalid config")

// Config es la configuración completa del quoter.
type Config struct {
	Quoter    QuoterConfig    `yaml:"quoter"`
	Market    MarketConfig    `yaml:"market"`
	Quoting   QuotingConfig   `yaml:"quoting"`
	Risk      RiskConfig      `yaml:"risk"`
	Execution ExecutionConfig `yaml:"execution"`
	Wallet    WalletConfig    `yaml:"wallet"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// QuoterConfig controla el proceso.
type QuoterConfig struct {
	Strategy               string `yaml:"strategy"` // btc-updown-15m | eth-updown-15m | sol-updown-15m | btc-updown-1h
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// MarketConfig controla el descubrimiento de ventanas.
type MarketConfig struct {
	Slug                string `yaml:"slug"`                  // fija un mercado concreto, vacío = generador de la estrategia
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"` // 0 = el de la estrategia
}

// QuotingConfig son los parámetros del motor de quotes y del estimador de volatilidad.
type QuotingConfig struct {
	OrderSize           float64 `yaml:"order_size"` // shares por lado
	MinSpreadBps        float64 `yaml:"min_spread_bps"`
	MaxSpreadBps        float64 `yaml:"max_spread_bps"`
	VolFloor            float64 `yaml:"vol_floor"`
	VolCeiling          float64 `yaml:"vol_ceiling"`
	SkewFactor          float64 `yaml:"skew_factor"`
	RequoteThresholdBps float64 `yaml:"requote_threshold_bps"`
	EWMAAlpha           float64 `yaml:"ewma_alpha"`
}

// RiskConfig son los límites por ventana.
type RiskConfig struct {
	MaxPosition float64 `yaml:"max_position"` // shares netas
	MaxNotional float64 `yaml:"max_notional"` // USDC
	MaxLoss     float64 `yaml:"max_loss"`     // USDC
}

// ExecutionConfig controla el envío de órdenes.
type ExecutionConfig struct {
	HeartbeatSeconds int  `yaml:"heartbeat_seconds"` // <0 desactiva el heartbeat
	PostOnly         bool `yaml:"post_only"`
}

// WalletConfig identifica la cuenta. La clave privada solo se lee del entorno.
type WalletConfig struct {
	PrivateKey    string `yaml:"-"`
	Funder        string `yaml:"funder"`
	SignatureType int    `yaml:"signature_type"` // 0 EOA | 1 proxy | 2 gnosis safe
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	CLOBBase    string `yaml:"clob_base"`
	GammaBase   string `yaml:"gamma_base"`
	WSBase      string `yaml:"ws_base"`
	BinanceBase string `yaml:"binance_base"`
}

// StorageConfig controla dónde se persiste el journal.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"; vacío desactiva el journal
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// NotifyConfig controla el status por consola.
type NotifyConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
	Table           bool `yaml:"table"` // añade órdenes y latencias bajo la línea de status
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse interpreta el YAML, aplica overrides del entorno y defaults, y valida.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// PollInterval devuelve el override del tick del lifecycle, 0 si no hay.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Market.PollIntervalSeconds) * time.Second
}

// HeartbeatInterval devuelve el intervalo del heartbeat; negativo si está desactivado.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Execution.HeartbeatSeconds) * time.Second
}

// StatusInterval devuelve el intervalo del status por consola; 0 si está desactivado.
func (c *Config) StatusInterval() time.Duration {
	if !c.Notify.Enabled {
		return 0
	}
	return time.Duration(c.Notify.IntervalSeconds) * time.Second
}

// ShutdownTimeout es el límite del cancel-all de salida.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Quoter.ShutdownTimeoutSeconds) * time.Second
}

// Validate comprueba rangos y coherencia. La clave privada no se exige aquí:
// el modo -report no la necesita.
func (c *Config) Validate() error {
	var errs []error
	q := c.Quoting
	if q.OrderSize < 0.01 {
		errs = append(errs, fmt.Errorf("quoting.order_size must be at least 0.01 shares, got %v", q.OrderSize))
	}
	if q.MinSpreadBps <= 0 || q.MaxSpreadBps < q.MinSpreadBps {
		errs = append(errs, fmt.Errorf("quoting spread bps must satisfy 0 < min <= max, got %v/%v", q.MinSpreadBps, q.MaxSpreadBps))
	}
	if q.VolCeiling < q.VolFloor {
		errs = append(errs, fmt.Errorf("quoting.vol_ceiling %v below vol_floor %v", q.VolCeiling, q.VolFloor))
	}
	if q.EWMAAlpha <= 0 || q.EWMAAlpha > 1 {
		errs = append(errs, fmt.Errorf("quoting.ewma_alpha must be in (0,1], got %v", q.EWMAAlpha))
	}
	r := c.Risk
	if r.MaxPosition <= 0 || r.MaxNotional <= 0 || r.MaxLoss <= 0 {
		errs = append(errs, fmt.Errorf("risk limits must be > 0, got position=%v notional=%v loss=%v", r.MaxPosition, r.MaxNotional, r.MaxLoss))
	}
	if st := c.Wallet.SignatureType; st < 0 || st > 2 {
		errs = append(errs, fmt.Errorf("wallet.signature_type must be 0, 1 or 2, got %d", st))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POLY_PRIVATE_KEY"); v != "" {
		cfg.Wallet.PrivateKey = v
	}
	if v := os.Getenv("POLY_FUNDER"); v != "" {
		cfg.Wallet.Funder = v
	}
	if v := os.Getenv("POLY_SIGNATURE_TYPE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Wallet.SignatureType = n
		}
	}
	if v := os.Getenv("QUOTER_STRATEGY"); v != "" {
		cfg.Quoter.Strategy = v
	}
	if v := os.Getenv("QUOTER_SLUG"); v != "" {
		cfg.Market.Slug = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Quoter.Strategy == "" {
		cfg.Quoter.Strategy = "btc-updown-15m"
	}
	if cfg.Quoter.ShutdownTimeoutSeconds <= 0 {
		cfg.Quoter.ShutdownTimeoutSeconds = 10
	}
	if cfg.Quoting.OrderSize == 0 {
		cfg.Quoting.OrderSize = 10
	}
	if cfg.Quoting.MinSpreadBps == 0 {
		cfg.Quoting.MinSpreadBps = 200
	}
	if cfg.Quoting.MaxSpreadBps == 0 {
		cfg.Quoting.MaxSpreadBps = 800
	}
	if cfg.Quoting.VolFloor == 0 && cfg.Quoting.VolCeiling == 0 {
		cfg.Quoting.VolFloor = 0.30
		cfg.Quoting.VolCeiling = 0.80
	}
	if cfg.Quoting.SkewFactor == 0 {
		cfg.Quoting.SkewFactor = 0.0001
	}
	if cfg.Quoting.RequoteThresholdBps == 0 {
		cfg.Quoting.RequoteThresholdBps = 50
	}
	if cfg.Quoting.EWMAAlpha == 0 {
		cfg.Quoting.EWMAAlpha = 0.06
	}
	if cfg.Risk.MaxPosition == 0 {
		cfg.Risk.MaxPosition = 100
	}
	if cfg.Risk.MaxNotional == 0 {
		cfg.Risk.MaxNotional = 50
	}
	if cfg.Risk.MaxLoss == 0 {
		cfg.Risk.MaxLoss = 20
	}
	if cfg.Execution.HeartbeatSeconds == 0 {
		cfg.Execution.HeartbeatSeconds = 5
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.WSBase == "" {
		cfg.API.WSBase = "wss://ws-subscriptions-clob.polymarket.com/ws"
	}
	if cfg.API.BinanceBase == "" {
		cfg.API.BinanceBase = "wss://stream.binance.com:9443/ws"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Notify.IntervalSeconds <= 0 {
		cfg.Notify.IntervalSeconds = 5
	}
}
