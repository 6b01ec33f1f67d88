package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is a single file queued for ingestion.
type Job struct {
	Path        string
	SubmittedAt time.Time
}

// Queue fans file ingestion out to a fixed worker pool. Two workers racing
// on the same file are harmless: the ledger and the transaction id
// constraint arbitrate, so the pool needs no coordination beyond the channel.
type Queue struct {
	ingest  func(ctx context.Context, path string) FileResult
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type QueueOption func(*Queue)

func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithFileTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(ingest func(ctx context.Context, path string) FileResult, logger *slog.Logger, opts ...QueueOption) *Queue {
	q := &Queue{
		ingest:  ingest,
		logger:  logger,
		workers: 2,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("ingest.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					fr := q.ingest(ctx, job.Path)
					cancel()

					if fr.Err != "" {
						q.logger.Error("ingest.worker.file_failed", "worker_id", workerID, "file", fr.Filename, "error", fr.Err)
					} else {
						q.logger.Info("ingest.worker.file_done", "worker_id", workerID, "file", fr.Filename, "status", fr.Status)
					}
				}

				q.logger.Info("ingest.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue blocks when the buffer is full rather than dropping the file; a
// dropped file would only surface again at the next interval sweep.
func (q *Queue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("ingest.queue.closed", "path", job.Path)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("ingest.queue.enqueued", "path", job.Path)
	default:
		q.logger.Warn("ingest.queue.full", "path", job.Path)
		q.ch <- job
	}
	return nil
}

// Shutdown stops accepting work and waits for in-flight files, or for ctx.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("ingest.queue.shutdown_interrupted")
	case <-done:
		q.logger.Info("ingest.queue.drained")
	}
}
