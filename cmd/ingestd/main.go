package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/astrodock/fuel-exports-tracker/internal/common"
	"github.com/astrodock/fuel-exports-tracker/internal/health"
	"github.com/astrodock/fuel-exports-tracker/internal/ingest"
	"github.com/astrodock/fuel-exports-tracker/internal/parser"
	repo "github.com/astrodock/fuel-exports-tracker/internal/repository"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file (env vars take precedence)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := common.LoadConfigFile(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	if err := repo.HealthCheck(ctx, db, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}
	if err := repo.Migrate(ctx, db, logger); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	healthSrv := health.NewServer(cfg.Health.Addr, logger)
	healthSrv.Start()
	logger.Info("health endpoint serving", "addr", cfg.Health.Addr)

	txRepo := repo.NewTransactionRepository(db, cfg.Ingest.ChunkSize, logger)
	ledger := repo.NewProcessedFileRepository(db, logger)
	p := parser.New(cfg.Parser.Strictness, logger)
	orch := ingest.NewOrchestrator(ingest.Config{
		SourceDir:  cfg.Ingest.SourceDir,
		SkipHidden: cfg.Ingest.SkipHidden,
	}, p, txRepo, ledger, healthSrv, logger)

	// Optional watch mode: newly arrived files are ingested without waiting
	// for the next interval tick. Events go through a small worker queue so a
	// slow file never stalls the interval loop.
	var watchCh <-chan string
	var watchErrCh <-chan error
	var queue *ingest.Queue
	if cfg.Ingest.Watch {
		queue = ingest.NewQueue(orch.IngestFile, logger)
		watchCh, watchErrCh, err = ingest.StartWatcher(ctx, ingest.WatchConfig{
			Root:     cfg.Ingest.SourceDir,
			Debounce: cfg.Ingest.WatchDebounce,
		}, logger)
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}
		logger.Info("watching source directory", "dir", cfg.Ingest.SourceDir)
	}

	// Initial sweep, then interval-driven runs. Overlap with an external
	// trigger is safe: the ledger arbitrates.
	if _, err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("ingestion run failed", "error", err)
	}

	ticker := time.NewTicker(cfg.Ingest.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if queue != nil {
				queue.Shutdown(shutdownCtx)
			}
			if err := healthSrv.Stop(shutdownCtx); err != nil {
				logger.Warn("health server shutdown failed", "error", err)
			}
			return
		case <-ticker.C:
			if _, err := orch.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("ingestion run failed", "error", err)
			}
		case path, ok := <-watchCh:
			if !ok {
				watchCh = nil
				continue
			}
			_ = queue.Enqueue(ctx, ingest.Job{Path: path, SubmittedAt: time.Now()})
		case err, ok := <-watchErrCh:
			if !ok {
				watchErrCh = nil
				continue
			}
			logger.Error("watcher error", "error", err)
		}
	}
}
