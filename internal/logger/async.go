package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes and stops a handler that buffers records.
type Closer interface {
	Close()
}

// nopCloser backs synchronous logging, where there is nothing to flush.
type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler decouples log emission from log IO: records go onto a
// bounded queue and a worker pool writes them out. Graph analysis and
// plan execution log from hot paths, so a slow sink must never block
// them; when the queue is full the record is counted and dropped.
type AsyncHandler struct {
	inner slog.Handler
	queue chan slog.Record
	wg    *sync.WaitGroup
	drops *atomic.Int64
}

// NewAsyncHandler starts workers goroutines draining a queue of
// chanSize records into inner.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	h := &AsyncHandler{
		inner: inner,
		queue: make(chan slog.Record, chanSize),
		wg:    &sync.WaitGroup{},
		drops: &atomic.Int64{},
	}
	for range workers {
		h.wg.Add(1)
		go h.worker()
	}
	return h
}

func (h *AsyncHandler) worker() {
	defer h.wg.Done()
	for rec := range h.queue {
		_ = h.inner.Handle(context.Background(), rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record without blocking; a full queue drops it.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.queue <- rec:
	default:
		h.drops.Add(1)
	}
	return nil
}

// fork derives a handler with a different inner handler but the shared
// queue, workers, and drop counter.
func (h *AsyncHandler) fork(inner slog.Handler) *AsyncHandler {
	return &AsyncHandler{inner: inner, queue: h.queue, wg: h.wg, drops: h.drops}
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.fork(h.inner.WithAttrs(attrs))
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return h.fork(h.inner.WithGroup(name))
}

// DroppedCount reports how many records were discarded on a full queue.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.drops.Load()
}

// Close stops accepting records and blocks until the workers have
// written out everything already queued.
func (h *AsyncHandler) Close() {
	close(h.queue)
	h.wg.Wait()
}
