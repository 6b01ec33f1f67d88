package entity

import "time"

// ProcessedFile represents a dedup-ledger entry: a source file whose rows have
// all been committed to the transaction store.
type ProcessedFile struct {
	Filename    string    `json:"filename"`
	ProcessedAt time.Time `json:"processed_at"`
}
