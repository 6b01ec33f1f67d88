package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/astrodock/fuel-exports-tracker/internal/entity"
)

// insertColumns is the column order used by InsertBatch.
var insertColumns = []string{
	"transaction_id", "station_id", "dock_bay", "dock_level",
	"ship_name", "franchise", "captain_name", "species",
	"fuel_type", "fuel_units", "price_per_unit", "total_cost",
	"services", "is_emergency", "visited_at", "arrival_date",
	"coords_x", "coords_y", "created_at",
}

// BatchResult reports what InsertBatch did: rows newly inserted, and the ids
// that were skipped because they already exist in the store.
type BatchResult struct {
	Inserted     int
	DuplicateIDs []string
}

type TransactionRepository interface {
	// InsertBatch inserts records in bounded chunks, deduplicated by
	// transaction_id. Existing ids are skipped, never overwritten, and
	// reported back instead of failing the batch.
	InsertBatch(ctx context.Context, records []entity.TransactionRecord) (BatchResult, error)
	// ListByVisitedRange returns records with visited_at inside the given
	// window; nil bounds are open.
	ListByVisitedRange(ctx context.Context, from, to *time.Time) ([]entity.TransactionRecord, error)
	CountAll(ctx context.Context) (int, error)
}

type transactionRepo struct {
	db        *DB
	chunkSize int
	logger    *slog.Logger
}

// postgresMaxBindParams is the wire-protocol ceiling on bind parameters per
// statement; a chunk may not use more than that across all its rows.
const postgresMaxBindParams = 65535

func NewTransactionRepository(db *DB, chunkSize int, logger *slog.Logger) TransactionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if limit := postgresMaxBindParams / len(insertColumns); chunkSize > limit {
		logger.Warn("chunk size exceeds bind parameter budget, clamping", "requested", chunkSize, "max", limit)
		chunkSize = limit
	}
	return &transactionRepo{db: db, chunkSize: chunkSize, logger: logger}
}

func (r *transactionRepo) InsertBatch(ctx context.Context, records []entity.TransactionRecord) (BatchResult, error) {
	var out BatchResult
	for start := 0; start < len(records); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(records) {
			end = len(records)
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := r.insertChunk(ctx, records[start:end], &out); err != nil {
			return out, err
		}
	}
	return out, nil
}

// insertChunk is one multi-row INSERT ... ON CONFLICT DO NOTHING; a single
// statement, so a chunk commits or fails as a unit. RETURNING yields only the
// rows actually inserted, which is how duplicates are detected.
func (r *transactionRepo) insertChunk(ctx context.Context, chunk []entity.TransactionRecord, out *BatchResult) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO fuel_exports (%s) VALUES ", strings.Join(insertColumns, ", "))

	args := make([]any, 0, len(chunk)*len(insertColumns))
	for i, rec := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := range insertColumns {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.db.placeholder(i*len(insertColumns) + j + 1))
		}
		sb.WriteString(")")
		args = append(args,
			rec.TransactionID,
			rec.StationID,
			rec.DockBay,
			rec.DockLevel,
			rec.ShipName,
			rec.Franchise,
			rec.CaptainName,
			rec.Species,
			rec.FuelType,
			rec.FuelUnits,
			rec.PricePerUnit,
			rec.TotalCost,
			rec.Services.String(),
			rec.IsEmergency,
			nullableTime(rec.VisitedAt),
			nullableTime(rec.ArrivalDate),
			rec.CoordsX,
			rec.CoordsY,
			rec.CreatedAt,
		)
	}
	sb.WriteString(" ON CONFLICT (transaction_id) DO NOTHING RETURNING transaction_id")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		r.logger.Error("failed to insert transaction chunk", "size", len(chunk), "error", err)
		return fmt.Errorf("insert chunk: %w", err)
	}
	defer rows.Close()

	inserted := make(map[string]bool, len(chunk))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan inserted id: %w", err)
		}
		inserted[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("insert chunk rows: %w", err)
	}

	out.Inserted += len(inserted)
	consumed := make(map[string]bool, len(inserted))
	for _, rec := range chunk {
		if inserted[rec.TransactionID] && !consumed[rec.TransactionID] {
			consumed[rec.TransactionID] = true
			continue
		}
		out.DuplicateIDs = append(out.DuplicateIDs, rec.TransactionID)
	}
	return nil
}

func (r *transactionRepo) ListByVisitedRange(ctx context.Context, from, to *time.Time) ([]entity.TransactionRecord, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM fuel_exports", strings.Join(insertColumns, ", "))

	var args []any
	var conds []string
	if from != nil {
		args = append(args, *from)
		conds = append(conds, fmt.Sprintf("visited_at >= %s", r.db.placeholder(len(args))))
	}
	if to != nil {
		args = append(args, *to)
		conds = append(conds, fmt.Sprintf("visited_at <= %s", r.db.placeholder(len(args))))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY visited_at, transaction_id")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		r.logger.Error("failed to list transactions", "error", err)
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []entity.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *transactionRepo) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fuel_exports").Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func scanTransaction(rows *sql.Rows) (entity.TransactionRecord, error) {
	var (
		rec          entity.TransactionRecord
		dockBay      sql.NullString
		dockLevel    sql.NullInt64
		shipName     sql.NullString
		franchise    sql.NullString
		captainName  sql.NullString
		species      sql.NullString
		price, total decimal.NullDecimal
		services     sql.NullString
		visitedAt    sql.NullTime
		arrivalDate  sql.NullTime
		coordsX      sql.NullFloat64
		coordsY      sql.NullFloat64
	)
	err := rows.Scan(
		&rec.TransactionID, &rec.StationID, &dockBay, &dockLevel,
		&shipName, &franchise, &captainName, &species,
		&rec.FuelType, &rec.FuelUnits, &price, &total,
		&services, &rec.IsEmergency, &visitedAt, &arrivalDate,
		&coordsX, &coordsY, &rec.CreatedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("scan transaction: %w", err)
	}
	if dockBay.Valid {
		rec.DockBay = &dockBay.String
	}
	if dockLevel.Valid {
		lvl := int(dockLevel.Int64)
		rec.DockLevel = &lvl
	}
	if shipName.Valid {
		rec.ShipName = &shipName.String
	}
	if franchise.Valid {
		rec.Franchise = &franchise.String
	}
	if captainName.Valid {
		rec.CaptainName = &captainName.String
	}
	if species.Valid {
		rec.Species = &species.String
	}
	if price.Valid {
		rec.PricePerUnit = price.Decimal
	}
	if total.Valid {
		rec.TotalCost = total.Decimal
	}
	if services.Valid {
		rec.Services = entity.ParseServiceSet(services.String)
	}
	if visitedAt.Valid {
		rec.VisitedAt = visitedAt.Time
	}
	if arrivalDate.Valid {
		rec.ArrivalDate = arrivalDate.Time
	}
	if coordsX.Valid {
		rec.CoordsX = coordsX.Float64
	}
	if coordsY.Valid {
		rec.CoordsY = coordsY.Float64
	}
	return rec, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
