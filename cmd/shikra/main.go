// Shikra - district-level enrolment fraud signals.
// Copyright (c) 2026 opensource.identity
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-identity/shikra/internal/api"
	"github.com/opensource-identity/shikra/internal/bus"
	"github.com/opensource-identity/shikra/internal/cache"
	"github.com/opensource-identity/shikra/internal/config"
	"github.com/opensource-identity/shikra/internal/domain"
	"github.com/opensource-identity/shikra/internal/engine"
	"github.com/opensource-identity/shikra/internal/policy"
	"github.com/opensource-identity/shikra/internal/repository"
	"github.com/opensource-identity/shikra/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	setupLogger(cfg.Logging)

	slog.Info("starting shikra",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
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

	// Initialize Policy Engine
	policies, err := policy.NewEngine()
	if err != nil {
		slog.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}
	if err := loadAlertRules(ctx, repo, policies); err != nil {
		slog.Error("failed to load alert rules", "error", err)
		os.Exit(1)
	}
	slog.Info("policy engine initialized", "rules_count", policies.RuleCount())

	// Initialize Analysis Engine
	eng := engine.New(cfg.Engine, cacheImpl, repo, busImpl, policies)
	slog.Info("analysis engine initialized",
		"trees", cfg.Engine.Trees,
		"contamination", cfg.Engine.Contamination,
		"seed", cfg.Engine.Seed,
	)

	// Initialize async Worker
	asyncWorker := worker.NewWorker(busImpl, repo, eng)
	if err := asyncWorker.Start(); err != nil {
		slog.Error("failed to start analysis worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, eng, policies, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("shikra is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop analysis worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("shikra shutdown complete")
}

func setupLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// loadAlertRules loads alert rules from the database, falling back to the
// built-in defaults when none are configured.
func loadAlertRules(ctx context.Context, repo domain.Repository, policies *policy.Engine) error {
	dbRules, err := repo.ListAlertRules(ctx)
	if err != nil {
		slog.Warn("failed to list alert rules from database", "error", err)
		return policies.LoadRules(domain.DefaultAlertRules())
	}

	if len(dbRules) > 0 {
		slog.Info("loading alert rules from database", "count", len(dbRules))
		return policies.LoadRules(dbRules)
	}

	slog.Info("no alert rules in database, loading defaults")
	return policies.LoadRules(domain.DefaultAlertRules())
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 SHIKRA                   ║")
	fmt.Println("  ║      Enrolment Fraud Signal Engine        ║")
	fmt.Println("  ║      Every district, every digit.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /records              - Ingest dataset (JSON or CSV)")
	fmt.Println("    GET    /records              - List stored records")
	fmt.Println("    DELETE /records              - Drop the dataset")
	fmt.Println("    POST   /runs                 - Run the analysis pipeline")
	fmt.Println("    GET    /runs                 - List completed runs")
	fmt.Println("    GET    /runs/{id}            - Get a run result")
	fmt.Println("    GET    /runs/{id}/benford    - Digit-conformance assessments")
	fmt.Println("    GET    /runs/{id}/anomalies  - Outlier assessments")
	fmt.Println("    GET    /runs/{id}/suspects   - Ranked fused risk records")
	fmt.Println("    GET    /alerts               - List alert rules")
	fmt.Println("    POST   /alerts               - Create an alert rule")
	fmt.Println("    POST   /alerts/reload        - Hot-reload alert rules")
	fmt.Println("    GET    /health               - Health check")
	fmt.Println()
}
