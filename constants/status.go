package constants

// FileStatus is the canonical per-file outcome of an ingestion run.
type FileStatus string

// Stable values (these exact strings appear in run reports and logs).
const (
	FileStatusProcessed FileStatus = "PROCESSED" // parsed, inserted, ledger marked
	FileStatusSkipped   FileStatus = "SKIPPED"   // already in the ledger, idempotent no-op
	FileStatusFailed    FileStatus = "FAILED"    // left unmarked, retried next run
)
