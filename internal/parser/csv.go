package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// parseCSV reads a header-first CSV export. Cell values stay strings; the
// shared coercion in fromRaw handles typing.
func (p *Parser) parseCSV(ctx context.Context, r io.Reader, file string) (Result, error) {
	var res Result

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are a row-level failure, not a reader failure
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return res, nil // empty file yields zero records
		}
		return Result{}, &ParseError{File: file, Line: 1, Message: "reading header", Cause: err}
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(h))
	}

	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			if perr := p.reject(&res, &ParseError{File: file, Line: line, Message: "malformed csv row", Cause: err}); perr != nil {
				return Result{}, perr
			}
			continue
		}
		if len(cells) != len(cols) {
			perr := &ParseError{File: file, Line: line, Message: fmt.Sprintf("expected %d columns, got %d", len(cols), len(cells))}
			if err := p.reject(&res, perr); err != nil {
				return Result{}, err
			}
			continue
		}

		row := make(rawRow, len(cols))
		for i, c := range cols {
			row[c] = cells[i]
		}
		rec, perr := p.fromRaw(file, line, row, &res)
		if perr != nil {
			if err := p.reject(&res, perr); err != nil {
				return Result{}, err
			}
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}
