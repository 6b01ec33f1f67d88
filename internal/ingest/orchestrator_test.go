package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrodock/fuel-exports-tracker/constants"
	"github.com/astrodock/fuel-exports-tracker/internal/common"
	"github.com/astrodock/fuel-exports-tracker/internal/entity"
	"github.com/astrodock/fuel-exports-tracker/internal/parser"
	"github.com/astrodock/fuel-exports-tracker/internal/repository"
)

const csvHeader = "transaction_id,station_id,fuel_type,fuel_units,price_per_unit,total_cost,services,is_emergency,visited_at\n"

type fixture struct {
	dir    string
	orch   *Orchestrator
	txRepo repository.TransactionRepository
	ledger repository.ProcessedFileRepository
}

func newFixture(t *testing.T, strictness string) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.Config{Driver: repository.DriverSQLite, DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })
	require.NoError(t, repository.Migrate(ctx, db, logger))

	dir := t.TempDir()
	txRepo := repository.NewTransactionRepository(db, 500, logger)
	ledger := repository.NewProcessedFileRepository(db, logger)
	orch := NewOrchestrator(
		Config{SourceDir: dir, SkipHidden: true},
		parser.New(strictness, logger),
		txRepo, ledger, nil, logger,
	)
	return &fixture{dir: dir, orch: orch, txRepo: txRepo, ledger: ledger}
}

func (f *fixture) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func csvRow(id string, station int, units, price, total string) string {
	return id + "," + strconv.Itoa(station) + ",deuterium," + units + "," + price + "," + total + ",refueling,false,2024-03-01T12:00:00Z\n"
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t, common.StrictnessLenient)
	f.writeFile(t, "dock5.csv", csvHeader+
		csvRow("T1", 5, "120.0", "4.50", "540.00")+
		csvRow("T2", 5, "10", "2.00", "20.00"))
	f.writeFile(t, "dock7.jsonl",
		`{"transaction_id":"J1","station_id":7,"fuel_type":"hydrogen","fuel_units":30}`+"\n")

	report, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, uint32(2), report.FilesProcessed)
	assert.Zero(t, report.FilesSkipped)
	assert.Zero(t, report.FilesFailed)
	assert.Equal(t, uint32(3), report.RowsInserted)
	assert.Zero(t, report.RowsDuplicate)
	assert.Zero(t, report.RowsRejected)

	n, err := f.txRepo.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	files, err := f.ledger.ListProcessed(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	f := newFixture(t, common.StrictnessLenient)
	f.writeFile(t, "dock5.csv", csvHeader+csvRow("T1", 5, "120.0", "4.50", "540.00"))

	_, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	report, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.FilesProcessed)
	assert.Equal(t, uint32(1), report.FilesSkipped)
	assert.Zero(t, report.RowsInserted)

	n, err := f.txRepo.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_CrossFileDuplicateID(t *testing.T) {
	f := newFixture(t, common.StrictnessLenient)
	f.writeFile(t, "a.csv", csvHeader+
		csvRow("X", 5, "120.0", "4.50", "540.00")+
		csvRow("A2", 5, "10", "1.00", "10.00"))
	f.writeFile(t, "b.csv", csvHeader+
		csvRow("X", 9, "99", "9.00", "891.00")+
		csvRow("B2", 9, "10", "1.00", "10.00"))

	report, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	// Both files complete; the repeated id is skipped, not an error.
	assert.Equal(t, uint32(2), report.FilesProcessed)
	assert.Equal(t, uint32(3), report.RowsInserted)
	assert.Equal(t, uint32(1), report.RowsDuplicate)

	recs, err := f.txRepo.ListByVisitedRange(context.Background(), nil, nil)
	require.NoError(t, err)
	var x entity.TransactionRecord
	for _, r := range recs {
		if r.TransactionID == "X" {
			x = r
		}
	}
	// First writer wins; the station 9 variant never lands.
	assert.Equal(t, 5, x.StationID)
}

func TestRun_PartiallyValidFile(t *testing.T) {
	f := newFixture(t, common.StrictnessLenient)
	content := csvHeader
	for i := 1; i <= 9; i++ {
		content += csvRow("P"+strconv.Itoa(i), 5, "10", "1.00", "10.00")
	}
	content += ",5,deuterium,10,1.00,10.00,refueling,false,2024-03-01T12:00:00Z\n" // no id
	f.writeFile(t, "partial.csv", content)

	report, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(1), report.FilesProcessed)
	assert.Equal(t, uint32(9), report.RowsInserted)
	assert.Equal(t, uint32(1), report.RowsRejected)

	// The file still enters the ledger: the rejected row is reported, not
	// retried forever.
	done, err := f.ledger.IsProcessed(context.Background(), "partial.csv")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRun_StrictModeLeavesFileUnmarked(t *testing.T) {
	f := newFixture(t, common.StrictnessStrict)
	f.writeFile(t, "bad.csv", csvHeader+
		csvRow("S1", 5, "10", "1.00", "10.00")+
		",5,deuterium,10,1.00,10.00,refueling,false,2024-03-01T12:00:00Z\n")

	report, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(1), report.FilesFailed)
	assert.Zero(t, report.RowsInserted)

	done, err := f.ledger.IsProcessed(context.Background(), "bad.csv")
	require.NoError(t, err)
	assert.False(t, done, "a failed file must stay out of the ledger so the next run retries it")
}

func TestIngestFile_ResumesAfterCrashBeforeMark(t *testing.T) {
	f := newFixture(t, common.StrictnessLenient)
	path := f.writeFile(t, "crash.csv", csvHeader+
		csvRow("C1", 5, "10", "1.00", "10.00")+
		csvRow("C2", 5, "10", "1.00", "10.00"))

	// Simulate a previous run that inserted the rows but died before the
	// ledger mark.
	visited := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := f.txRepo.InsertBatch(context.Background(), []entity.TransactionRecord{
		{TransactionID: "C1", StationID: 5, FuelType: "deuterium", FuelUnits: 10,
			PricePerUnit: decimal.RequireFromString("1.00"), TotalCost: decimal.RequireFromString("10.00"),
			VisitedAt: visited, CreatedAt: time.Now().UTC()},
		{TransactionID: "C2", StationID: 5, FuelType: "deuterium", FuelUnits: 10,
			PricePerUnit: decimal.RequireFromString("1.00"), TotalCost: decimal.RequireFromString("10.00"),
			VisitedAt: visited, CreatedAt: time.Now().UTC()},
	})
	require.NoError(t, err)

	fr := f.orch.IngestFile(context.Background(), path)
	assert.Equal(t, constants.FileStatusProcessed, fr.Status)
	assert.Zero(t, fr.RowsInserted)
	assert.Equal(t, 2, fr.RowsDuplicate)

	n, err := f.txRepo.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	done, err := f.ledger.IsProcessed(context.Background(), "crash.csv")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestIngestFile_ConcurrentMarkIsSuccess(t *testing.T) {
	f := newFixture(t, common.StrictnessLenient)
	path := f.writeFile(t, "race.csv", csvHeader+csvRow("R1", 5, "10", "1.00", "10.00"))

	// Another run wins the ledger between our parse and our mark; the slow
	// path here is the ledger check passing first.
	fr := f.orch.IngestFile(context.Background(), path)
	require.Equal(t, constants.FileStatusProcessed, fr.Status)

	fr = f.orch.IngestFile(context.Background(), path)
	assert.Equal(t, constants.FileStatusSkipped, fr.Status)
	assert.Zero(t, fr.RowsInserted)
}

func TestRun_EmptyFileIsMarked(t *testing.T) {
	f := newFixture(t, common.StrictnessLenient)
	f.writeFile(t, "empty.csv", "")

	report, err := f.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(1), report.FilesProcessed)
	assert.Zero(t, report.RowsInserted)

	done, err := f.ledger.IsProcessed(context.Background(), "empty.csv")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRun_CancelledContextStopsEarly(t *testing.T) {
	f := newFixture(t, common.StrictnessLenient)
	f.writeFile(t, "a.csv", csvHeader+csvRow("T1", 5, "10", "1.00", "10.00"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.orch.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiscover(t *testing.T) {
	f := newFixture(t, common.StrictnessLenient)
	f.writeFile(t, "b.csv", "")
	f.writeFile(t, "a.jsonl", "")
	f.writeFile(t, "sub/c.CSV", "")
	f.writeFile(t, "notes.txt", "")
	f.writeFile(t, ".hidden.csv", "")
	f.writeFile(t, ".stash/d.csv", "")

	paths, err := f.orch.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(f.dir, "a.jsonl"), paths[0])
	assert.Equal(t, filepath.Join(f.dir, "b.csv"), paths[1])
	assert.Equal(t, filepath.Join(f.dir, "sub", "c.CSV"), paths[2])
}

func TestDiscover_MissingSourceDir(t *testing.T) {
	f := newFixture(t, common.StrictnessLenient)
	f.orch.cfg.SourceDir = "   "
	_, err := f.orch.Discover(context.Background())
	require.Error(t, err)
}

func TestAllowedExt(t *testing.T) {
	assert.True(t, AllowedExt(".csv"))
	assert.True(t, AllowedExt(".JSONL"))
	assert.False(t, AllowedExt(".parquet"))
	assert.False(t, AllowedExt(""))
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/data/.stash"))
	assert.False(t, IsHidden("/data/dock5.csv"))
}
