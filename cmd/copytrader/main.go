// Command copytrader runs the copy-trading event pipeline: it polls a
// set of leader addresses, mirrors their trades across a pool of
// workers, and either paper-trades or hands orders to an external
// submission client.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/polycopy/pipeline/config"
	"github.com/polycopy/pipeline/internal/adapters/polymarket"
	"github.com/polycopy/pipeline/internal/diagnostics"
	"github.com/polycopy/pipeline/internal/distributor"
	"github.com/polycopy/pipeline/internal/executor"
	"github.com/polycopy/pipeline/internal/monitor"
	"github.com/polycopy/pipeline/internal/papertrader"
)

// diagnosticsInterval is how often the console report renders.
const diagnosticsInterval = 30 * time.Second

// fallbackPaperBalanceUSD seeds the paper trader this binary falls back to
// when the operator has configured neither paper trading nor a live order
// submitter. There is no in-tree OrderSubmitter implementation — CLOB order
// signing and submission is an external collaborator — so without this
// fallback a misconfigured deployment would silently no-op on every
// activity instead of doing anything observable.
const fallbackPaperBalanceUSD = 1000.0

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
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
	setupLogger(cfg.Log)

	slog.Info("copytrader starting",
		"config", *configPath,
		"leaders", len(cfg.Monitor.UserAddresses),
		"workers", cfg.Workers.Count,
		"paper", cfg.Paper.Enabled,
		"aggregation", cfg.Aggregation.Enabled,
	)

	client := polymarket.NewClient(cfg.API.DataAPIBase)
	dist := distributor.New(0)

	// A zero MinTotalUSD makes IsAggregationCandidate always false (no
	// BUY has a negative USDCSize), so disabling aggregation in config
	// routes every activity straight to execution instead of the buffer.
	minTotalUSD := 0.0
	if cfg.Aggregation.Enabled {
		minTotalUSD = cfg.Aggregation.MinTotalUSDOrDefault()
	}

	// This binary does not carry a live OrderSubmitter (CLOB order signing
	// and submission is an external collaborator); executor.Config.Submitter
	// is left for deployment-specific wiring. Without either a submitter or
	// paper trading enabled, the executor's live path has nothing to hand
	// orders to, so fall back to paper trading rather than let every
	// activity silently no-op.
	paperEnabled := cfg.Paper.Enabled
	paperBalance := cfg.Paper.BalanceUSD
	if !paperEnabled {
		slog.Warn("no live order submitter and paper trading disabled; falling back to paper trading so activity is executed somewhere",
			"fallback_balance_usd", fallbackPaperBalanceUSD)
		paperEnabled = true
		paperBalance = fallbackPaperBalanceUSD
	}

	workers := make([]*executor.Executor, 0, cfg.Workers.Count)
	workerIDs := make([]string, 0, cfg.Workers.Count)
	for i := 0; i < cfg.Workers.Count; i++ {
		id := uuid.NewString()

		var trader *papertrader.PaperTrader
		if paperEnabled {
			trader = papertrader.New(paperBalance)
		}

		ex := executor.New(executor.Config{
			ID:             id,
			ProxyWallet:    cfg.Monitor.ProxyWallet,
			MinTotalUSD:    minTotalUSD,
			AggregationWin: cfg.Aggregation.Window(),
			AggCheckEvery:  cfg.Aggregation.CheckIntervalDuration(),
			Positions:      client,
			Balance:        client,
			Paper:          trader,
		})
		workers = append(workers, ex)
		workerIDs = append(workerIDs, id)
		dist.Register(id, ex)
	}

	mon := monitor.New(monitor.Config{
		UserAddresses: cfg.Monitor.UserAddresses,
		FetchInterval: cfg.Monitor.FetchInterval(),
		TooOld:        cfg.Monitor.TooOld(),
		DedupCacheTTL: cfg.Monitor.DedupTTL(),
		DedupCacheMax: cfg.Monitor.DedupCacheMaxEntries,
	}, client, client, dist)

	reporter := diagnostics.NewReporter(func() []diagnostics.WorkerSnapshot {
		out := make([]diagnostics.WorkerSnapshot, len(workers))
		for i, w := range workers {
			out[i] = diagnostics.WorkerSnapshot{ID: workerIDs[i], Counters: w.Counters(), BufferLen: w.BufferLen()}
		}
		return out
	}, mon.CacheSize)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, w := range workers {
		go func(w *executor.Executor) {
			if err := w.Run(ctx); err != nil {
				slog.Error("worker exited with error", "err", err)
			}
		}(w)
	}
	go reporter.Run(ctx, diagnosticsInterval)

	if err := mon.Run(ctx); err != nil {
		slog.Error("monitor exited with error", "err", err)
		os.Exit(1)
	}

	dist.BroadcastShutdown()
	for _, w := range workers {
		<-w.Done()
		w.Close()
	}

	slog.Info("copytrader stopped cleanly")
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
