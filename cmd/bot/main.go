// standx-maker-bot is an automated maker-farming quoting bot for a
// perpetual-futures DEX: it rests a cross-interleaved ladder of
// non-marketable limit orders around the mark price on a fixed set of
// symbols, flattens any fill immediately, and leans on a three-tier safety
// gate (OK / PAUSE_NEW / KILL_ALL) to pull back or go flat under stress.
//
// Architecture:
//
//	main.go             — entry point: loads config, starts the engine, waits for SIGINT/SIGTERM
//	engine/engine.go    — orchestrator: one strategy.Strategy goroutine per symbol, shared price feed
//	strategy/maker.go   — the tick loop: gate check, reconciliation, fill handling, ladder rebalance
//	band/band.go        — band classification and cross-interleaved ladder construction
//	safety/guard.go      — the three-tier gate: volatility, divergence, staleness, position limits
//	orders/manager.go   — per-symbol order bookkeeping: place/cancel/sync/reconcile against the venue
//	price/tracker.go    — push-fed price snapshots with a REST fallback on silence
//	exchange/client.go  — REST client for the venue's order/position/ticker endpoints
//	exchange/auth.go    — L1 (EIP-712) session handshake and L2 (HMAC) request signing
//	exchange/ws.go      — push price feed with auto-reconnect
//	store/store.go      — JSON file persistence for per-symbol stats (survives restarts)
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/londonpotato1/standx-maker-bot/internal/api"
	"github.com/londonpotato1/standx-maker-bot/internal/config"
	"github.com/londonpotato1/standx-maker-bot/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("MAKER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, *cfg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("maker bot started",
		"symbols", cfg.Strategy.Symbols,
		"order_size", cfg.Strategy.OrderSizeUSD,
		"max_position_usd", cfg.Safety.MaxPositionUSD,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
