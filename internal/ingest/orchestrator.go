package ingest

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/astrodock/fuel-exports-tracker/constants"
	"github.com/astrodock/fuel-exports-tracker/internal/common"
	"github.com/astrodock/fuel-exports-tracker/internal/parser"
	"github.com/astrodock/fuel-exports-tracker/internal/repository"
)

// Config holds the orchestrator's knobs.
type Config struct {
	SourceDir  string
	SkipHidden bool
}

// Orchestrator coordinates one run over the discoverable export files.
//
// Safety comes from the store, not from locking: the ledger's filename
// uniqueness and the transaction store's id uniqueness make overlapping runs
// and crash-retries harmless.
type Orchestrator struct {
	cfg     Config
	parser  *parser.Parser
	txRepo  repository.TransactionRepository
	ledger  repository.ProcessedFileRepository
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewOrchestrator(
	cfg Config,
	p *parser.Parser,
	txRepo repository.TransactionRepository,
	ledger repository.ProcessedFileRepository,
	metrics Metrics,
	logger *slog.Logger,
) *Orchestrator {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:     cfg,
		parser:  p,
		txRepo:  txRepo,
		ledger:  ledger,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Run ingests every unprocessed file under the source directory. One file's
// failure never aborts the others; failures are reported and retried on the
// next run because the file stays out of the ledger.
func (o *Orchestrator) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{
		RunID:     uuid.NewString(),
		StartedAt: o.now().UTC(),
	}
	ctx = common.WithRunID(ctx, report.RunID)
	log := o.logger.With("run_id", report.RunID)

	paths, err := o.Discover(ctx)
	if err != nil {
		return report, common.WrapError(err, "discover files")
	}
	log.Info("ingest.run.start", "candidates", len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			// Cancelled mid-run: everything not yet marked is retried next
			// run.
			report.FinishedAt = o.now().UTC()
			o.metrics.RecordRun(report)
			return report, err
		}
		fr := o.IngestFile(ctx, path)
		report.observe(fr)
		o.metrics.RecordFile(fr)
	}

	report.FinishedAt = o.now().UTC()
	o.metrics.RecordRun(report)
	log.Info("ingest.run.ok",
		"files_processed", report.FilesProcessed,
		"files_skipped", report.FilesSkipped,
		"files_failed", report.FilesFailed,
		"rows_inserted", report.RowsInserted,
		"rows_duplicate", report.RowsDuplicate,
		"rows_rejected", report.RowsRejected,
		"elapsed_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report, nil
}

// IngestFile runs the per-file pipeline: ledger check, parse, chunked insert,
// ledger mark. The ledger mark comes strictly last; a crash before it leaves
// the file unmarked and the duplicate-id skip makes the retry harmless.
func (o *Orchestrator) IngestFile(ctx context.Context, path string) FileResult {
	filename := filepath.Base(path)
	log := o.logger.With("run_id", common.RunIDFromContext(ctx), "file", filename)
	fr := FileResult{Filename: filename}

	done, err := o.ledger.IsProcessed(ctx, filename)
	if err != nil {
		fr.Status = constants.FileStatusFailed
		fr.Err = err.Error()
		log.Error("ingest.file.ledger_check_failed", "error", err)
		return fr
	}
	if done {
		fr.Status = constants.FileStatusSkipped
		log.Info("ingest.file.skipped")
		return fr
	}

	res, err := o.parser.ParseFile(ctx, path)
	if err != nil {
		// Fatal parse failure: leave the file unmarked so the next run
		// retries it.
		fr.Status = constants.FileStatusFailed
		fr.Err = err.Error()
		log.Error("ingest.file.parse_failed", "error", err)
		return fr
	}
	fr.RowsRejected = len(res.Rejected)

	batch, err := o.txRepo.InsertBatch(ctx, res.Records)
	fr.RowsInserted = batch.Inserted
	fr.RowsDuplicate = len(batch.DuplicateIDs)
	if err != nil {
		// Partially inserted chunks stay behind; on retry they surface as
		// duplicates and are skipped.
		fr.Status = constants.FileStatusFailed
		fr.Err = err.Error()
		log.Error("ingest.file.insert_failed",
			"rows_inserted", batch.Inserted, "error", err)
		return fr
	}
	if len(batch.DuplicateIDs) > 0 {
		log.Warn("ingest.file.duplicates_skipped", "transaction_ids", batch.DuplicateIDs)
	}

	if err := o.ledger.MarkProcessed(ctx, filename, o.now().UTC()); err != nil {
		if errors.Is(err, common.ErrAlreadyProcessed) {
			// A concurrent run marked it first; the work is redundant-safe,
			// so this is success, not an error.
			fr.Status = constants.FileStatusProcessed
			log.Info("ingest.file.already_marked")
			return fr
		}
		fr.Status = constants.FileStatusFailed
		fr.Err = err.Error()
		log.Error("ingest.file.mark_failed", "error", err)
		return fr
	}

	fr.Status = constants.FileStatusProcessed
	log.Info("ingest.file.ok",
		"rows_inserted", fr.RowsInserted,
		"rows_duplicate", fr.RowsDuplicate,
		"rows_rejected", fr.RowsRejected,
	)
	return fr
}
