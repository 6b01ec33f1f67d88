package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/astrodock/fuel-exports-tracker/internal/repository"
)

// Service is a tiny façade over the transaction repository that produces XLSX
// bytes for operator exports.
type Service struct {
	txRepo repository.TransactionRepository
	logger *slog.Logger
}

func NewService(txRepo repository.TransactionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{txRepo: txRepo, logger: logger}
}

// ExportTransactionsXLSX returns an XLSX workbook (as bytes) for the given
// visited_at window.
// If only from is provided -> from..now (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all transactions.
func (s *Service) ExportTransactionsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	// Normalize bounds (date-only, UTC).
	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		now := time.Now().UTC()
		toDate = &now
	}

	recs, err := s.txRepo.ListByVisitedRange(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Fuel Exports"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Transaction ID",
		"Station",
		"Ship",
		"Franchise",
		"Fuel Type",
		"Fuel Units",
		"Price/Unit",
		"Total Cost",
		"Services",
		"Emergency",
		"Visited At",
		"Arrival Date",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.TransactionID)
		write(2, r.StationID)
		if r.ShipName != nil {
			write(3, *r.ShipName)
		}
		if r.Franchise != nil {
			write(4, *r.Franchise)
		}
		write(5, r.FuelType)
		write(6, r.FuelUnits)
		write(7, r.PricePerUnit.StringFixed(2))
		write(8, r.TotalCost.StringFixed(2))
		write(9, r.Services.String())
		write(10, r.IsEmergency)
		if !r.VisitedAt.IsZero() {
			write(11, r.VisitedAt.UTC().Format(time.RFC3339))
		}
		if !r.ArrivalDate.IsZero() {
			write(12, r.ArrivalDate.Format("2006-01-02"))
		}

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 30) // transaction id
	_ = f.SetColWidth(sheet, "C", "D", 22) // ship, franchise
	_ = f.SetColWidth(sheet, "F", "H", 12) // quantities
	_ = f.SetColWidth(sheet, "I", "I", 36) // services
	_ = f.SetColWidth(sheet, "K", "L", 22) // dates

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
