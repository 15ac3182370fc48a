// Kite - Dropshipping operations that run themselves.
// Copyright (c) 2025 opensource.commerce
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-commerce/kite/internal/api"
	"github.com/opensource-commerce/kite/internal/bus"
	"github.com/opensource-commerce/kite/internal/cache"
	"github.com/opensource-commerce/kite/internal/domain"
	"github.com/opensource-commerce/kite/internal/marketplace"
	"github.com/opensource-commerce/kite/internal/notify"
	"github.com/opensource-commerce/kite/internal/pipeline"
	"github.com/opensource-commerce/kite/internal/repository"
	"github.com/opensource-commerce/kite/internal/rules"
	"github.com/opensource-commerce/kite/internal/supplier"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KITE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kite",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KITE_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"mode", cfg.AdapterMode,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load and validate the policy document. Nothing runs without it.
	rulesCfg, err := rules.Load(cfg.RulesPath)
	if err != nil {
		slog.Error("failed to load policy", "path", cfg.RulesPath, "error", err)
		os.Exit(1)
	}
	risk, err := rules.NewRiskEngine(rulesCfg.CustomRiskRules)
	if err != nil {
		slog.Error("failed to compile custom risk rules", "error", err)
		os.Exit(1)
	}
	holder := rules.NewHolder(rulesCfg, risk)
	slog.Info("policy loaded", "path", cfg.RulesPath, "custom_risk_rules", risk.RuleCount())

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize collaborators. The pipeline only sees the interfaces; the
	// mode decides the implementation here and nowhere else.
	market, err := marketplace.New(cfg.AdapterMode, cfg.DataDir, cfg.Marketplace)
	if err != nil {
		slog.Error("failed to initialize marketplace adapter", "error", err)
		os.Exit(1)
	}
	supp, err := supplier.New(cfg.AdapterMode, cfg.DataDir, cfg.Supplier)
	if err != nil {
		slog.Error("failed to initialize supplier adapter", "error", err)
		os.Exit(1)
	}
	slog.Info("collaborators initialized", "mode", cfg.AdapterMode)

	// Initialize notifiers: the local log always, the webhook when configured.
	notifiers := []domain.Notifier{notify.NewLogNotifier(cfg.Notify.LogPath)}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notify.WebhookURL, string(cfg.AdapterMode)))
	}

	// Initialize pipeline runner
	runner := pipeline.New(pipeline.Deps{
		Supplier:    supp,
		Marketplace: market,
		Repository:  repo,
		Bus:         busImpl,
		Notifiers:   notifiers,
		Mode:        cfg.AdapterMode,
	})

	if os.Getenv("KITE_SERVE") != "true" {
		runOnce(ctx, runner, holder)
		return
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, runner.Run, holder,
		cfg.RulesPath, Version, cfg.AdapterMode, cfg.Cache.LocalTTL)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kite is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kite shutdown complete")
}

// runOnce executes a single pipeline pass and writes the summary to stdout.
func runOnce(ctx context.Context, runner *pipeline.Runner, holder *rules.Holder) {
	cfg, risk := holder.Get()

	result, err := runner.Run(ctx, cfg, risk)
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result.Summary, "", "  ")
	fmt.Println(string(out))
}

// applyEnvOverrides lets single settings be changed without a config file.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("KITE_MODE"); v != "" {
		cfg.AdapterMode = domain.AdapterMode(v)
	}
	if v := os.Getenv("KITE_RULES_PATH"); v != "" {
		cfg.RulesPath = v
	}
	if v := os.Getenv("KITE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("KITE_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("KITE_MARKETPLACE_URL"); v != "" {
		cfg.Marketplace.BaseURL = v
	}
	if v := os.Getenv("KITE_MARKETPLACE_TOKEN"); v != "" {
		cfg.Marketplace.Token = v
	}
	if v := os.Getenv("KITE_SUPPLIER_URL"); v != "" {
		cfg.Supplier.BaseURL = v
	}
	if v := os.Getenv("KITE_SUPPLIER_TOKEN"); v != "" {
		cfg.Supplier.Token = v
	}
	if v := os.Getenv("KITE_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("KITE_NOTIFY_LOG"); v != "" {
		cfg.Notify.LogPath = v
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                    KITE")
	fmt.Println("       Dropshipping operations engine")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Mode:     %s\n", cfg.AdapterMode)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /runs                   - Execute a pipeline run")
	fmt.Println("    GET  /runs/latest            - Latest run summary")
	fmt.Println("    GET  /approval-queue/latest  - Latest approval queue")
	fmt.Println("    GET  /decisions              - Triage decision history")
	fmt.Println("    GET  /rules                  - Active policy")
	fmt.Println("    POST /rules/reload           - Hot-reload the policy file")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println()
}
