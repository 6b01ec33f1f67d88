package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/astrodock/fuel-exports-tracker/internal/common"
	"github.com/astrodock/fuel-exports-tracker/internal/export"
	repo "github.com/astrodock/fuel-exports-tracker/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		out     = flag.String("out", "fuel-exports.xlsx", "output XLSX file path")
		fromStr = flag.String("from", "", "from date YYYY-MM-DD (visited_at)")
		toStr   = flag.String("to", "", "to date YYYY-MM-DD (visited_at)")
	)
	flag.Parse()

	// Parse date filters
	var from, to *time.Time
	if *fromStr != "" {
		if parsed, err := time.Parse("2006-01-02", *fromStr); err != nil {
			printError("Error: invalid --from date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		} else {
			from = &parsed
		}
	}
	if *toStr != "" {
		if parsed, err := time.Parse("2006-01-02", *toStr); err != nil {
			printError("Error: invalid --to date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		} else {
			to = &parsed
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		printError("Error: DB_URL is required\n")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := repo.Open(ctx, repo.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	txRepo := repo.NewTransactionRepository(db, cfg.Ingest.ChunkSize, logger)
	svc := export.NewService(txRepo, logger)

	xlsxBytes, err := svc.ExportTransactionsXLSX(ctx, from, to)
	if err != nil {
		logger.Error("failed to export transactions", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Export complete: %s\n", *out)
}
