package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/astrodock/fuel-exports-tracker/internal/common"
	"github.com/astrodock/fuel-exports-tracker/internal/ingest"
	"github.com/astrodock/fuel-exports-tracker/internal/parser"
	repo "github.com/astrodock/fuel-exports-tracker/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// One-shot ingestion run: the entry point an external scheduler invokes.
// A file-level failure is not a process failure — the file stays unmarked and
// the next trigger retries it.
func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file (env vars take precedence)")
		dir        = flag.String("dir", "", "source directory override")
		strictness = flag.String("strictness", "", "parser strictness override (lenient|strict)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := common.LoadConfigFile(*configPath)
	if err != nil {
		printError("Error: loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.Ingest.SourceDir = *dir
	}
	if *strictness != "" {
		cfg.Parser.Strictness = *strictness
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: invalid configuration: %v\n", err)
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

	if err := repo.Migrate(ctx, db, logger); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	txRepo := repo.NewTransactionRepository(db, cfg.Ingest.ChunkSize, logger)
	ledger := repo.NewProcessedFileRepository(db, logger)
	p := parser.New(cfg.Parser.Strictness, logger)
	orch := ingest.NewOrchestrator(ingest.Config{
		SourceDir:  cfg.Ingest.SourceDir,
		SkipHidden: cfg.Ingest.SkipHidden,
	}, p, txRepo, ledger, nil, logger)

	report, err := orch.Run(ctx)
	if err != nil {
		logger.Error("ingestion run failed", "run_id", report.RunID, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Ingestion run %s complete!\n", report.RunID)
	fmt.Printf("- Files processed: %d\n", report.FilesProcessed)
	fmt.Printf("- Files skipped (already processed): %d\n", report.FilesSkipped)
	fmt.Printf("- Files failed (will retry): %d\n", report.FilesFailed)
	fmt.Printf("- Rows inserted: %d\n", report.RowsInserted)
	fmt.Printf("- Rows skipped as duplicates: %d\n", report.RowsDuplicate)
	fmt.Printf("- Rows rejected by parser: %d\n", report.RowsRejected)
}
