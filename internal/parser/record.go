package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/astrodock/fuel-exports-tracker/internal/common"
	"github.com/astrodock/fuel-exports-tracker/internal/entity"
)

// totalCostTolerance is the rounding slack allowed between the reported
// total_cost and fuel_units * price_per_unit before we recompute.
var totalCostTolerance = decimal.NewFromFloat(0.01)

// timestampLayouts accepted for visited_at, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

const dateLayout = "2006-01-02"

// Plausibility bounds. Values outside them are ingested anyway (generators
// occasionally ship legitimate outliers) but logged for operator review.
const (
	maxPlausibleFuelUnits = 10000.0
	minStationID          = 1000
	maxStationID          = 9999
)

// rawRow is a format-independent view of one input row. CSV cells arrive as
// strings, JSONL values keep their decoded types; the coercion helpers below
// accept both.
type rawRow map[string]any

// fromRaw validates and coerces one raw row into a TransactionRecord.
func (p *Parser) fromRaw(file string, line int, row rawRow, res *Result) (entity.TransactionRecord, *ParseError) {
	var rec entity.TransactionRecord
	fail := func(field, msg string, cause error) (entity.TransactionRecord, *ParseError) {
		if cause == nil {
			cause = common.ErrInvalidInput
		}
		return entity.TransactionRecord{}, &ParseError{File: file, Line: line, Field: field, Message: msg, Cause: cause}
	}

	// Required fields.
	id, ok := stringField(row, "transaction_id")
	if !ok || id == "" {
		return fail("transaction_id", "is required", nil)
	}
	rec.TransactionID = id

	station, ok, err := intField(row, "station_id")
	if err != nil {
		return fail("station_id", "must be an integer", err)
	}
	if !ok {
		return fail("station_id", "is required", nil)
	}
	rec.StationID = station

	fuelType, ok := stringField(row, "fuel_type")
	if !ok || fuelType == "" {
		return fail("fuel_type", "is required", nil)
	}
	rec.FuelType = fuelType

	units, ok, err := floatField(row, "fuel_units")
	if err != nil {
		return fail("fuel_units", "must be a number", err)
	}
	if !ok {
		return fail("fuel_units", "is required", nil)
	}
	if units < 0 {
		return fail("fuel_units", "must be >= 0", nil)
	}
	rec.FuelUnits = units

	if units > maxPlausibleFuelUnits {
		p.logger.Warn("parse.row.suspect_fuel_units", "file", file, "line", line, "fuel_units", units)
	}
	if station < minStationID || station > maxStationID {
		p.logger.Warn("parse.row.suspect_station_id", "file", file, "line", line, "station_id", station)
	}

	// Optional location and descriptive attributes.
	if v, ok := stringField(row, "dock_bay"); ok && v != "" {
		rec.DockBay = &v
	}
	if v, ok, err := intField(row, "dock_level"); err != nil {
		return fail("dock_level", "must be an integer", err)
	} else if ok {
		rec.DockLevel = &v
	}
	for field, dst := range map[string]**string{
		"ship_name":    &rec.ShipName,
		"franchise":    &rec.Franchise,
		"captain_name": &rec.CaptainName,
		"species":      &rec.Species,
	} {
		if v, ok := stringField(row, field); ok && v != "" {
			s := v
			*dst = &s
		}
	}

	// Money.
	price, _, err := decimalField(row, "price_per_unit")
	if err != nil {
		return fail("price_per_unit", "must be a decimal", err)
	}
	rec.PricePerUnit = price
	total, _, err := decimalField(row, "total_cost")
	if err != nil {
		return fail("total_cost", "must be a decimal", err)
	}
	rec.TotalCost = total
	if recomputed := reconcileTotal(&rec); recomputed {
		res.Recomputed++
	}

	// Services.
	rec.Services = servicesField(row)

	if v, ok, err := boolField(row, "is_emergency"); err != nil {
		return fail("is_emergency", "must be a boolean", err)
	} else if ok {
		rec.IsEmergency = v
	}

	if v, ok, err := timestampField(row, "visited_at"); err != nil {
		return fail("visited_at", "must be a timezone-aware timestamp", err)
	} else if ok {
		rec.VisitedAt = v.UTC()
	}
	// arrival_date is independently supplied, not derived from visited_at.
	if v, ok, err := dateField(row, "arrival_date"); err != nil {
		return fail("arrival_date", "must be a YYYY-MM-DD date", err)
	} else if ok {
		rec.ArrivalDate = v
	}

	if v, ok, err := floatField(row, "coords_x"); err != nil {
		return fail("coords_x", "must be a number", err)
	} else if ok {
		rec.CoordsX = v
	}
	if v, ok, err := floatField(row, "coords_y"); err != nil {
		return fail("coords_y", "must be a number", err)
	} else if ok {
		rec.CoordsY = v
	}

	rec.CreatedAt = p.now().UTC()
	return rec, nil
}

// reconcileTotal recomputes total_cost when it drifts from
// fuel_units * price_per_unit beyond tolerance. Storage does not enforce the
// relation, so the parser is the last place to catch generator bugs.
func reconcileTotal(rec *entity.TransactionRecord) bool {
	if rec.PricePerUnit.IsZero() {
		return false
	}
	expected := rec.PricePerUnit.Mul(decimal.NewFromFloat(rec.FuelUnits)).Round(2)
	if rec.TotalCost.Sub(expected).Abs().LessThanOrEqual(totalCostTolerance) {
		return false
	}
	rec.TotalCost = expected
	return true
}

func stringField(row rawRow, key string) (string, bool) {
	v, ok := row[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t)), true
	}
}

func intField(row rawRow, key string) (int, bool, error) {
	v, ok := row[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case int:
		return t, true, nil
	case int64:
		return int(t), true, nil
	case float64:
		if t != float64(int(t)) {
			return 0, false, fmt.Errorf("non-integral value %v", t)
		}
		return int(t), true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false, err
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("unexpected type %T", v)
	}
}

func floatField(row rawRow, key string) (float64, bool, error) {
	v, ok := row[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		return t, true, nil
	case int:
		return float64(t), true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, err
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("unexpected type %T", v)
	}
}

func decimalField(row rawRow, key string) (decimal.Decimal, bool, error) {
	v, ok := row[key]
	if !ok || v == nil {
		return decimal.Zero, false, nil
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, false, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false, err
		}
		return d, true, nil
	default:
		return decimal.Zero, false, fmt.Errorf("unexpected type %T", v)
	}
}

func boolField(row rawRow, key string) (bool, bool, error) {
	v, ok := row[key]
	if !ok || v == nil {
		return false, false, nil
	}
	switch t := v.(type) {
	case bool:
		return t, true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return false, false, nil
		}
		b, err := strconv.ParseBool(strings.ToLower(s))
		if err != nil {
			return false, false, err
		}
		return b, true, nil
	default:
		return false, false, fmt.Errorf("unexpected type %T", v)
	}
}

func timestampField(row rawRow, key string) (time.Time, bool, error) {
	s, ok := stringField(row, key)
	if !ok || s == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized timestamp %q", s)
}

func dateField(row rawRow, key string) (time.Time, bool, error) {
	s, ok := stringField(row, key)
	if !ok || s == "" {
		return time.Time{}, false, nil
	}
	// Tolerate a full timestamp in the date column; keep the date part.
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	if t, ok, err := timestampField(row, key); err == nil && ok {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true, nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date %q", s)
}

// servicesField accepts the delimited text form (CSV) or a JSON array (JSONL),
// plus the generator's nested variants, and normalizes into a ServiceSet.
func servicesField(row rawRow) entity.ServiceSet {
	v, ok := row["services"]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		return entity.ParseServiceSet(t)
	case []any:
		tokens := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				tokens = append(tokens, s)
			}
		}
		return entity.NewServiceSet(tokens)
	case []string:
		return entity.NewServiceSet(t)
	default:
		return nil
	}
}
