package ingest

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// NewLimitedWriter caps the number of writes in flight against the store.
func NewLimitedWriter(writer Writer, limit int64) Writer {
	if limit <= 0 {
		panic("write limit must be positive")
	}
	return &limitedWriter{
		writer: writer,
		sem:    semaphore.NewWeighted(limit),
	}
}

type limitedWriter struct {
	writer Writer
	sem    *semaphore.Weighted
}

func (w *limitedWriter) Write(ctx context.Context, event Event) (Outcome, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer w.sem.Release(1)

	return w.writer.Write(ctx, event)
}
