package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/astrodock/fuel-exports-tracker/constants"
	"github.com/astrodock/fuel-exports-tracker/internal/common"
	"github.com/astrodock/fuel-exports-tracker/internal/entity"
)

// ParseError identifies the offending row and field of a malformed input.
type ParseError struct {
	File    string
	Line    int
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s:%d: field %q: %s", e.File, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Result is the outcome of parsing one source file.
type Result struct {
	Records []entity.TransactionRecord
	// Rejected holds per-row failures in lenient mode, surfaced for
	// observability. Rejected rows never abort the file.
	Rejected []*ParseError
	// Recomputed counts rows whose total_cost disagreed with
	// fuel_units * price_per_unit beyond tolerance and was recomputed.
	Recomputed int
}

// Parser converts raw export files into candidate transaction records.
// It performs no database access.
type Parser struct {
	strictness string
	logger     *slog.Logger
	now        func() time.Time
}

func New(strictness string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if strictness == "" {
		strictness = common.StrictnessLenient
	}
	return &Parser{strictness: strictness, logger: logger, now: time.Now}
}

func (p *Parser) strict() bool {
	return p.strictness == common.StrictnessStrict
}

// ParseFile parses one export file, dispatching on extension.
func (p *Parser) ParseFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			p.logger.Warn("close file error", "path", path, "error", err)
		}
	}(f)

	name := filepath.Base(path)
	var res Result
	switch constants.NormalizeExt(filepath.Ext(path)) {
	case "csv":
		res, err = p.parseCSV(ctx, f, name)
	case "jsonl":
		res, err = p.parseJSONL(ctx, f, name)
	default:
		return Result{}, &ParseError{File: name, Message: "unsupported file format"}
	}
	if err != nil {
		return Result{}, err
	}

	p.logger.Info("parse.file.ok",
		"file", name,
		"records", len(res.Records),
		"rejected", len(res.Rejected),
		"recomputed", res.Recomputed,
	)
	return res, nil
}

// reject routes a row failure according to strictness: strict mode fails the
// whole file, lenient mode records it and moves on.
func (p *Parser) reject(res *Result, perr *ParseError) error {
	if p.strict() {
		return perr
	}
	p.logger.Warn("parse.row.rejected", "file", perr.File, "line", perr.Line, "field", perr.Field, "reason", perr.Message)
	res.Rejected = append(res.Rejected, perr)
	return nil
}
