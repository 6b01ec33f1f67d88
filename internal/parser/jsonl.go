package parser

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
)

// jsonlRowSchema constrains one JSONL row before coercion. Shape mirrors what
// the export generator emits: flattened dock fields or a nested dock object,
// services as an array or a delimited string.
func jsonlRowSchema() map[string]any {
	number := map[string]any{"type": []string{"number", "string"}}
	return map[string]any{
		"type":     "object",
		"required": []string{"transaction_id", "station_id", "fuel_type", "fuel_units"},
		"properties": map[string]any{
			"transaction_id": map[string]any{"type": "string", "minLength": 1},
			"station_id":     map[string]any{"type": []string{"integer", "string"}},
			"dock": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"bay":   map[string]any{"type": []string{"string", "null"}},
					"level": map[string]any{"type": []string{"integer", "null"}},
				},
			},
			"dock_bay":       map[string]any{"type": []string{"string", "null"}},
			"dock_level":     map[string]any{"type": []string{"integer", "null"}},
			"ship_name":      map[string]any{"type": []string{"string", "null"}},
			"franchise":      map[string]any{"type": []string{"string", "null"}},
			"captain_name":   map[string]any{"type": []string{"string", "null"}},
			"species":        map[string]any{"type": []string{"string", "null"}},
			"fuel_type":      map[string]any{"type": "string", "minLength": 1},
			"fuel_units":     map[string]any{"type": []string{"number", "string"}},
			"price_per_unit": number,
			"total_cost":     number,
			"services": map[string]any{
				"type":  []string{"array", "string"},
				"items": map[string]any{"type": "string"},
			},
			"is_emergency": map[string]any{"type": []string{"boolean", "string"}},
			"visited_at":   map[string]any{"type": "string"},
			"arrival_date": map[string]any{"type": "string"},
			"coords_x":     map[string]any{"type": []string{"number", "string"}},
			"coords_y":     map[string]any{"type": []string{"number", "string"}},
		},
	}
}

var compileRowSchema = sync.OnceValues(func() (schemaValidator, error) {
	return newSchemaValidator(jsonlRowSchema())
})

// parseJSONL reads one JSON object per line, validating each against the row
// schema before coercion.
func (p *Parser) parseJSONL(ctx context.Context, r io.Reader, file string) (Result, error) {
	var res Result

	schema, err := compileRowSchema()
	if err != nil {
		return Result{}, err
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}

		if err := schema.Validate([]byte(raw)); err != nil {
			if perr := p.reject(&res, &ParseError{File: file, Line: line, Message: "row does not match schema", Cause: err}); perr != nil {
				return Result{}, perr
			}
			continue
		}

		var row rawRow
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			if perr := p.reject(&res, &ParseError{File: file, Line: line, Message: "invalid json", Cause: err}); perr != nil {
				return Result{}, perr
			}
			continue
		}
		flattenDock(row)

		rec, perr := p.fromRaw(file, line, row, &res)
		if perr != nil {
			if err := p.reject(&res, perr); err != nil {
				return Result{}, err
			}
			continue
		}
		res.Records = append(res.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return Result{}, &ParseError{File: file, Line: line, Message: "reading file", Cause: err}
	}
	return res, nil
}

// flattenDock lifts the generator's nested dock struct into the flat
// dock_bay/dock_level columns the store uses.
func flattenDock(row rawRow) {
	d, ok := row["dock"].(map[string]any)
	if !ok {
		return
	}
	if _, have := row["dock_bay"]; !have {
		row["dock_bay"] = d["bay"]
	}
	if _, have := row["dock_level"]; !have {
		row["dock_level"] = d["level"]
	}
	delete(row, "dock")
}
