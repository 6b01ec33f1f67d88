package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/astrodock/fuel-exports-tracker/internal/ingest"
)

// Server exposes /healthz and Prometheus /metrics and doubles as the
// orchestrator's metrics sink.
type Server struct {
	mu        sync.RWMutex
	startTime time.Time
	lastRun   *ingest.RunReport
	logger    *slog.Logger
	server    *http.Server

	filesTotal *prometheus.CounterVec
	rowsTotal  *prometheus.CounterVec
	runsTotal  prometheus.Counter
}

// healthResponse is the JSON response for /healthz.
type healthResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	LastRunID      string `json:"last_run_id,omitempty"`
	LastRunAt      string `json:"last_run_at,omitempty"`
	FilesProcessed uint32 `json:"files_processed,omitempty"`
	FilesSkipped   uint32 `json:"files_skipped,omitempty"`
	FilesFailed    uint32 `json:"files_failed,omitempty"`
	RowsInserted   uint32 `json:"rows_inserted,omitempty"`
	RowsDuplicate  uint32 `json:"rows_duplicate,omitempty"`
	RowsRejected   uint32 `json:"rows_rejected,omitempty"`
}

func NewServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()

	s := &Server{
		startTime: time.Now(),
		logger:    logger,
		filesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuel_ingest_files_total",
			Help: "Files handled per run outcome.",
		}, []string{"status"}),
		rowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuel_ingest_rows_total",
			Help: "Transaction rows per insert outcome.",
		}, []string{"outcome"}),
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fuel_ingest_runs_total",
			Help: "Completed orchestrator runs.",
		}),
	}
	reg.MustRegister(s.filesTotal, s.rowsTotal, s.runsTotal)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start serves in the background until Stop.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server error", "error", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// RecordFile implements ingest.Metrics.
func (s *Server) RecordFile(fr ingest.FileResult) {
	s.filesTotal.WithLabelValues(string(fr.Status)).Inc()
	s.rowsTotal.WithLabelValues("inserted").Add(float64(fr.RowsInserted))
	s.rowsTotal.WithLabelValues("duplicate").Add(float64(fr.RowsDuplicate))
	s.rowsTotal.WithLabelValues("rejected").Add(float64(fr.RowsRejected))
}

// RecordRun implements ingest.Metrics.
func (s *Server) RecordRun(report ingest.RunReport) {
	s.runsTotal.Inc()
	s.mu.Lock()
	s.lastRun = &report
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	last := s.lastRun
	s.mu.RUnlock()

	resp := healthResponse{
		Status: "healthy",
		Uptime: time.Since(s.startTime).String(),
	}
	if last != nil {
		resp.LastRunID = last.RunID
		resp.LastRunAt = last.FinishedAt.Format(time.RFC3339)
		resp.FilesProcessed = last.FilesProcessed
		resp.FilesSkipped = last.FilesSkipped
		resp.FilesFailed = last.FilesFailed
		resp.RowsInserted = last.RowsInserted
		resp.RowsDuplicate = last.RowsDuplicate
		resp.RowsRejected = last.RowsRejected
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to write health response", "error", err)
	}
}
