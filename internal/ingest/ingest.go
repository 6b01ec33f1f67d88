package ingest

import (
	"time"

	"github.com/astrodock/fuel-exports-tracker/constants"
)

// FileResult is the per-file ingest outcome.
type FileResult struct {
	Filename      string
	Status        constants.FileStatus
	RowsInserted  int
	RowsDuplicate int
	RowsRejected  int
	Err           string
}

// RunReport summarizes one orchestrator run. Counts follow the operator
// contract: files processed / skipped / failed, rows inserted / skipped as
// duplicates / rejected by the parser.
type RunReport struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	FilesProcessed uint32
	FilesSkipped   uint32
	FilesFailed    uint32
	RowsInserted   uint32
	RowsDuplicate  uint32
	RowsRejected   uint32
	Results        []FileResult
}

func (r *RunReport) observe(fr FileResult) {
	r.Results = append(r.Results, fr)
	switch fr.Status {
	case constants.FileStatusProcessed:
		r.FilesProcessed++
	case constants.FileStatusSkipped:
		r.FilesSkipped++
	case constants.FileStatusFailed:
		r.FilesFailed++
	}
	r.RowsInserted += uint32(fr.RowsInserted)
	r.RowsDuplicate += uint32(fr.RowsDuplicate)
	r.RowsRejected += uint32(fr.RowsRejected)
}

// Metrics is the observability hook the orchestrator reports through.
type Metrics interface {
	RecordFile(fr FileResult)
	RecordRun(report RunReport)
}

// NopMetrics satisfies Metrics when no observability surface is wired.
type NopMetrics struct{}

func (NopMetrics) RecordFile(FileResult) {}
func (NopMetrics) RecordRun(RunReport)   {}
