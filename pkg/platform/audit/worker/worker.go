// Package worker relays audit outbox rows to the event log.
package worker

import (
	"context"
	"log/slog"
	"time"

	audit "kyccase/pkg/platform/audit"
)

// Outbox is the source of unpublished audit events.
type Outbox interface {
	Drain(ctx context.Context, limit int, publish func(context.Context, audit.OutboxEntry) error) (int, error)
}

// Sink receives relayed events, keyed by subject so one subject's events
// stay ordered within a partition.
type Sink interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Worker polls the outbox and relays rows to the sink. A nil sink only
// materializes rows into the queryable audit table.
type Worker struct {
	outbox   Outbox
	sink     Sink
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batch = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

func NewWorker(outbox Outbox, sink Sink, opts ...Option) *Worker {
	w := &Worker{
		outbox:   outbox,
		sink:     sink,
		interval: time.Second,
		batch:    100,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled. Publish failures are logged and retried
// on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "audit outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce drains full batches until the outbox is empty or an error occurs.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := w.outbox.Drain(ctx, w.batch, w.publish)
		total += n
		if err != nil || n < w.batch {
			return total, err
		}
	}
}

func (w *Worker) publish(ctx context.Context, e audit.OutboxEntry) error {
	if w.sink == nil {
		return nil
	}
	return w.sink.Publish(ctx, e.SubjectID, e.Payload)
}
