package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/polyquoter/config"
	"github.com/alejandrodnm/polyquoter/internal/adapters/binance"
	"github.com/alejandrodnm/polyquoter/internal/adapters/notify"
	"github.com/alejandrodnm/polyquoter/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyquoter/internal/adapters/storage"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/coordinator"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/execution"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/latency"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/lifecycle"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/marketdata"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/orderbook"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/quoting"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/risk"
	"github.com/alejandrodnm/polyquoter/internal/domain"
	"github.com/alejandrodnm/polyquoter/internal/domain/strategy"
	"github.com/alejandrodnm/polyquoter/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print orders + latency table under each status line")
	slug := flag.String("slug", "", "quote this market slug only (overrides config)")
	report := flag.Bool("report", false, "print the journal report and exit")
	since := flag.Duration("since", 24*time.Hour, "report window, used with -report")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *slug != "" {
		cfg.Market.Slug = *slug
	}
	if *table {
		cfg.Notify.Table = true
	}
	setupLogger(cfg.Log)

	var journal ports.Journal
	if cfg.Storage.DSN != "" {
		j, err := storage.NewSQLiteJournal(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open journal", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer j.Close()
		journal = j
	}

	if *report {
		if journal == nil {
			slog.Error("report needs storage.dsn configured")
			os.Exit(1)
		}
		runReport(journal, *since)
		return
	}

	strat, err := strategy.Get(cfg.Quoter.Strategy)
	if err != nil {
		slog.Error("invalid strategy", "err", err)
		os.Exit(1)
	}
	if cfg.Wallet.PrivateKey == "" {
		slog.Error("POLY_PRIVATE_KEY is required")
		os.Exit(1)
	}

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)
	auth, err := polymarket.NewAuthClient(client, cfg.Wallet.PrivateKey, cfg.Wallet.Funder, cfg.Wallet.SignatureType)
	if err != nil {
		slog.Error("invalid wallet configuration", "err", err)
		os.Exit(1)
	}
	signer, err := polymarket.NewOrderSigner(cfg.Wallet.PrivateKey)
	if err != nil {
		slog.Error("failed to create order signer", "err", err)
		os.Exit(1)
	}

	slog.Info("polyquoter starting",
		"config", *configPath,
		"strategy", strat.ID(),
		"slug", cfg.Market.Slug,
		"signer", auth.Address(),
		"funder", auth.Funder(),
		"signature_type", auth.SignatureType(),
		"order_size", cfg.Quoting.OrderSize,
		"max_loss", cfg.Risk.MaxLoss,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := auth.EnsureCreds(ctx); err != nil {
		slog.Error("failed to derive API credentials", "err", err)
		os.Exit(1)
	}

	ws := polymarket.NewWSClient(cfg.API.WSBase, auth)

	var notifier ports.StatusNotifier
	if cfg.Notify.Enabled {
		notifier = notify.NewConsole(cfg.Notify.Table)
	}

	coord := coordinator.New(coordinator.Config{
		StatusInterval:  cfg.StatusInterval(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
	}, coordinator.Deps{
		Lifecycle: lifecycle.New(client, strat, lifecycle.Config{
			Slug:         cfg.Market.Slug,
			PollInterval: cfg.PollInterval(),
		}),
		MarketData: marketdata.New(binance.NewTradeStream(cfg.API.BinanceBase), marketdata.Config{
			Symbol:        strat.Asset(),
			Alpha:         cfg.Quoting.EWMAAlpha,
			TradesPerYear: strat.TradesPerYear(),
		}),
		Books: orderbook.New(ws, ws, orderbook.DefaultReconnectDelay),
		Quoting: quoting.New(quoting.Config{
			OrderSize:           cfg.Quoting.OrderSize,
			MinSpreadBps:        cfg.Quoting.MinSpreadBps,
			MaxSpreadBps:        cfg.Quoting.MaxSpreadBps,
			VolFloor:            cfg.Quoting.VolFloor,
			VolCeiling:          cfg.Quoting.VolCeiling,
			SkewFactor:          cfg.Quoting.SkewFactor,
			RequoteThresholdBps: cfg.Quoting.RequoteThresholdBps,
		}),
		Risk: risk.New(domain.RiskLimits{
			MaxPosition: cfg.Risk.MaxPosition,
			MaxNotional: cfg.Risk.MaxNotional,
			MaxLoss:     cfg.Risk.MaxLoss,
		}),
		Execution: execution.New(polymarket.NewTradingClient(auth, cfg.Execution.PostOnly), signer, execution.Config{
			Maker:             auth.Funder(),
			Signer:            auth.Address(),
			SignatureType:     auth.SignatureType(),
			HeartbeatInterval: cfg.HeartbeatInterval(),
		}),
		Latency:  latency.New(latency.DefaultWindow),
		Journal:  journal,
		Notifier: notifier,
	})

	go watchUnhalt(ctx, coord)

	if err := coord.Run(ctx); err != nil {
		slog.Error("quoter exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("polyquoter stopped cleanly")
}

// watchUnhalt traduce SIGUSR1 en un unhalt del operador.
func watchUnhalt(ctx context.Context, coord *coordinator.Coordinator) {
	usr := make(chan os.Signal, 1)
	signal.Notify(usr, syscall.SIGUSR1)
	defer signal.Stop(usr)

	for {
		select {
		case <-ctx.Done():
			return
		case <-usr:
			slog.Warn("SIGUSR1 received, clearing risk halt")
			coord.Unhalt(ctx)
		}
	}
}

func runReport(journal ports.Journal, since time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	from := time.Now().Add(-since)
	reports, err := journal.Report(ctx, from)
	if err != nil {
		slog.Error("report failed", "err", err)
		os.Exit(1)
	}
	notify.NewConsole(true).PrintReport(reports, from)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
