package ingest

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"
)

// Queue runs ingestions on a background worker pool so bulk loads stay
// off the query path. The pool holds a single worker: ingestion is
// serialized by the pipeline lock anyway, and a one-worker pool queues
// submissions instead of bouncing them off a busy lock.
type Queue struct {
	pipeline *Pipeline
	pool     *ants.Pool
	log      *slog.Logger
}

// NewQueue creates a background ingestion queue over the pipeline.
// A nil logger falls back to slog.Default.
func NewQueue(p *Pipeline, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	return &Queue{
		pipeline: p,
		pool:     pool,
		log:      logger,
	}, nil
}

// Submit enqueues one document for ingestion. The work runs detached
// from the caller; errors are logged, not returned.
func (q *Queue) Submit(path, name string) error {
	return q.pool.Submit(func() {
		report, err := q.pipeline.Ingest(context.Background(), path, name)
		if err != nil {
			q.log.Error("background ingestion failed",
				"path", path, "document", name, "error", err)
			return
		}
		q.log.Info("background ingestion complete",
			"document", report.Document,
			"chunks", report.ChunksCreated,
			"duration", report.Duration)
	})
}

// Pending returns the number of submissions waiting for the worker.
func (q *Queue) Pending() int {
	return q.pool.Waiting()
}

// Release shuts the pool down. The queue must not be used afterwards.
func (q *Queue) Release() {
	q.pool.Release()
}
