package ingest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrodock/fuel-exports-tracker/constants"
)

func TestQueue_ProcessesAllJobs(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var mu sync.Mutex
	seen := make(map[string]int)
	q := NewQueue(func(_ context.Context, path string) FileResult {
		mu.Lock()
		seen[path]++
		mu.Unlock()
		return FileResult{Filename: path, Status: constants.FileStatusProcessed}
	}, logger, WithWorkers(3), WithQueueSize(8))

	paths := []string{"a.csv", "b.csv", "c.jsonl", "d.csv", "e.jsonl"}
	for _, p := range paths {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: p, SubmittedAt: time.Now()}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, len(paths))
	for _, p := range paths {
		assert.Equal(t, 1, seen[p], "each job runs exactly once")
	}
}

func TestQueue_EnqueueAfterShutdownIsDropped(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var mu sync.Mutex
	var calls int
	q := NewQueue(func(context.Context, string) FileResult {
		mu.Lock()
		calls++
		mu.Unlock()
		return FileResult{Status: constants.FileStatusProcessed}
	}, logger, WithWorkers(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)
	q.Shutdown(ctx) // second call is a no-op

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "late.csv"}))

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}
