// Pump Sentinel — an automated trading agent for a bonding-curve token
// launchpad.
//
// Architecture:
//
//	main.go                — entry point: loads config, starts the orchestrator, waits for SIGINT/SIGTERM
//	internal/orchestrator  — wires Log Source -> Event Decoder -> Market Engine/Session Controller, schedules Leaderboard refresh
//	internal/decode        — decodes base64 program-data payloads into Creation/Swap records
//	internal/logsource     — websocket logsSubscribe feed with reconnect/backoff
//	internal/market        — in-memory per-mint state, Stagnancy Monitor, Store write-through
//	internal/reputation    — chunked creator-aggregate analysis, Leaderboard gate
//	internal/session       — per-mint trading state machine (buy once, profit ladder, exit predicates)
//	internal/swapexec      — Swap Executor collaborator (buy/sell/get_swap_tx/balance_of_wallet)
//	internal/store         — Postgres-backed mints/stagnant_mints tables
//	internal/solprice      — periodically refreshed SOL/USD quote
//	internal/wallet        — process-wide wallet balance + single-session lock gate
//	internal/blacklist     — append-only malicious-creator list
//	internal/api           — optional dashboard HTTP/WebSocket server
//
// How it makes money:
//
//	The bot buys once into a newly minted token whose creator has a
//	track record of successful prior launches, rides the price up a
//	dynamically advancing profit ladder driven by price trend and swap
//	momentum, and exits on profit-take, stagnation, or a malicious-drop
//	signal.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pumpsentinel/internal/api"
	"pumpsentinel/internal/config"
	"pumpsentinel/internal/orchestrator"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("SENTINEL_CONFIG"); p != "" {
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

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// Create and start the orchestrator
	orch, err := orchestrator.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create orchestrator", "error", err)
		os.Exit(1)
	}

	// Start dashboard API server if enabled
	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, orch, *cfg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if err := orch.Start(); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real swaps will be submitted")
	}

	logger.Info("pump sentinel started",
		"program_id", cfg.Chain.ProgramID,
		"single_lock", cfg.Session.SingleLock,
		"dry_run", cfg.DryRun,
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	// Stop dashboard first
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	orch.Stop()
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
