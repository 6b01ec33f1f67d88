package health

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrodock/fuel-exports-tracker/constants"
	"github.com/astrodock/fuel-exports-tracker/internal/ingest"
)

func newTestServer() *Server {
	return NewServer(":0", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleHealth_BeforeFirstRun(t *testing.T) {
	s := newTestServer()

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Empty(t, resp.LastRunID)
}

func TestHandleHealth_ReportsLastRun(t *testing.T) {
	s := newTestServer()
	s.RecordRun(ingest.RunReport{
		RunID:          "run-1",
		FinishedAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		FilesProcessed: 2,
		FilesSkipped:   1,
		RowsInserted:   30,
		RowsRejected:   3,
	})

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.LastRunID)
	assert.Equal(t, "2024-03-01T12:00:00Z", resp.LastRunAt)
	assert.Equal(t, uint32(2), resp.FilesProcessed)
	assert.Equal(t, uint32(1), resp.FilesSkipped)
	assert.Equal(t, uint32(30), resp.RowsInserted)
	assert.Equal(t, uint32(3), resp.RowsRejected)
}

func TestRecordFile_Counters(t *testing.T) {
	s := newTestServer()
	s.RecordFile(ingest.FileResult{
		Status: constants.FileStatusProcessed, RowsInserted: 10, RowsDuplicate: 2, RowsRejected: 1,
	})
	s.RecordFile(ingest.FileResult{Status: constants.FileStatusSkipped})

	assert.Equal(t, 1.0, testutil.ToFloat64(s.filesTotal.WithLabelValues("PROCESSED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.filesTotal.WithLabelValues("SKIPPED")))
	assert.Equal(t, 10.0, testutil.ToFloat64(s.rowsTotal.WithLabelValues("inserted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.rowsTotal.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.rowsTotal.WithLabelValues("rejected")))
}

func TestRecordRun_Counter(t *testing.T) {
	s := newTestServer()
	s.RecordRun(ingest.RunReport{RunID: "a"})
	s.RecordRun(ingest.RunReport{RunID: "b"})
	assert.Equal(t, 2.0, testutil.ToFloat64(s.runsTotal))
}
