package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/astrodock/fuel-exports-tracker/internal/common"
	"github.com/astrodock/fuel-exports-tracker/internal/entity"
)

// ProcessedFileRepository is the dedup ledger: which source files have been
// fully ingested.
type ProcessedFileRepository interface {
	IsProcessed(ctx context.Context, filename string) (bool, error)
	// MarkProcessed records a file as done. A duplicate filename returns
	// common.ErrAlreadyProcessed — the uniqueness constraint is the
	// concurrency-safety mechanism, so exactly one concurrent caller wins.
	MarkProcessed(ctx context.Context, filename string, processedAt time.Time) error
	// ListProcessed returns ledger entries with processed_at inside the
	// window; nil bounds are open. Used for operational auditing.
	ListProcessed(ctx context.Context, from, to *time.Time) ([]entity.ProcessedFile, error)
}

type processedFileRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewProcessedFileRepository(db *DB, logger *slog.Logger) ProcessedFileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &processedFileRepo{db: db, logger: logger}
}

func (r *processedFileRepo) IsProcessed(ctx context.Context, filename string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM processed_files WHERE filename = %s)", r.db.placeholder(1))
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, filename).Scan(&exists); err != nil {
		r.logger.Error("failed to check processed file", "filename", filename, "error", err)
		return false, fmt.Errorf("check processed: %w", err)
	}
	return exists, nil
}

func (r *processedFileRepo) MarkProcessed(ctx context.Context, filename string, processedAt time.Time) error {
	query := fmt.Sprintf(
		"INSERT INTO processed_files (filename, processed_at) VALUES (%s, %s)",
		r.db.placeholder(1), r.db.placeholder(2),
	)
	if _, err := r.db.ExecContext(ctx, query, filename, processedAt); err != nil {
		if isUniqueViolation(err) {
			return common.ErrAlreadyProcessed
		}
		r.logger.Error("failed to mark file processed", "filename", filename, "error", err)
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (r *processedFileRepo) ListProcessed(ctx context.Context, from, to *time.Time) ([]entity.ProcessedFile, error) {
	var sb strings.Builder
	sb.WriteString("SELECT filename, processed_at FROM processed_files")

	var args []any
	var conds []string
	if from != nil {
		args = append(args, *from)
		conds = append(conds, fmt.Sprintf("processed_at >= %s", r.db.placeholder(len(args))))
	}
	if to != nil {
		args = append(args, *to)
		conds = append(conds, fmt.Sprintf("processed_at <= %s", r.db.placeholder(len(args))))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY processed_at")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		r.logger.Error("failed to list processed files", "error", err)
		return nil, fmt.Errorf("list processed: %w", err)
	}
	defer rows.Close()

	var out []entity.ProcessedFile
	for rows.Next() {
		var pf entity.ProcessedFile
		if err := rows.Scan(&pf.Filename, &pf.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan processed file: %w", err)
		}
		out = append(out, pf)
	}
	return out, rows.Err()
}
