// Package relay moves outbox entries to Kafka.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketroles/internal/outbox"
	"marketroles/internal/outbox/metrics"
	"marketroles/pkg/platform/circuit"
	"marketroles/pkg/platform/tx"
)

// ErrBrokerUnavailable is reported by Healthy while publishing keeps failing.
var ErrBrokerUnavailable = errors.New("outbox relay: broker unavailable")

// Producer publishes one record and returns once the broker acknowledged it.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Worker relays pending outbox entries in creation order. A publish failure
// stops the batch so later entries never overtake an earlier one.
type Worker struct {
	store     outbox.Store
	producer  Producer
	runner    tx.Runner
	topics    map[outbox.Category]string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	breaker   *circuit.Breaker
	batchSize int
	interval  time.Duration
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithBreaker replaces the breaker that tracks consecutive publish failures.
func WithBreaker(b *circuit.Breaker) Option {
	return func(w *Worker) {
		if b != nil {
			w.breaker = b
		}
	}
}

func NewWorker(store outbox.Store, producer Producer, runner tx.Runner, topics map[outbox.Category]string, opts ...Option) *Worker {
	w := &Worker{
		store:     store,
		producer:  producer,
		runner:    runner,
		topics:    topics,
		logger:    slog.Default(),
		tracer:    otel.Tracer("marketroles/outbox"),
		breaker:   circuit.New("kafka"),
		batchSize: 100,
		interval:  time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DispatchPending publishes one batch and returns how many entries were published.
func (w *Worker) DispatchPending(ctx context.Context) (int, error) {
	ctx, span := w.tracer.Start(ctx, "outbox.dispatch")
	defer span.End()

	published := 0
	err := w.runner.RunInTx(ctx, func(txCtx context.Context) error {
		entries, err := w.store.FetchPending(txCtx, w.batchSize)
		if err != nil {
			return fmt.Errorf("fetch pending outbox entries: %w", err)
		}
		for _, entry := range entries {
			if err := w.publish(txCtx, entry); err != nil {
				w.metrics.IncFailures(string(entry.Category))
				w.recordFailure(txCtx)
				w.logger.WarnContext(txCtx, "outbox publish failed",
					"entry_id", entry.ID, "type", entry.Type, "attempts", entry.Attempts+1, "error", err)
				if markErr := w.store.MarkFailed(txCtx, entry.ID, err.Error()); markErr != nil {
					return fmt.Errorf("mark outbox entry failed: %w", markErr)
				}
				return nil
			}
			if err := w.store.MarkProcessed(txCtx, entry.ID, time.Now().UTC()); err != nil {
				return fmt.Errorf("mark outbox entry processed: %w", err)
			}
			w.metrics.IncPublished(string(entry.Category))
			w.recordSuccess(txCtx)
			published++
		}
		return nil
	})
	span.SetAttributes(attribute.Int("outbox.published", published))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return published, err
}

// Healthy reports whether the broker accepted the most recent publishes.
func (w *Worker) Healthy(context.Context) error {
	if w.breaker.IsOpen() {
		return ErrBrokerUnavailable
	}
	return nil
}

func (w *Worker) recordFailure(ctx context.Context) {
	if _, change := w.breaker.RecordFailure(); change.Opened {
		w.logger.ErrorContext(ctx, "outbox relay circuit opened", "breaker", w.breaker.Name())
	}
}

func (w *Worker) recordSuccess(ctx context.Context) {
	if _, change := w.breaker.RecordSuccess(); change.Closed {
		w.logger.InfoContext(ctx, "outbox relay circuit closed", "breaker", w.breaker.Name())
	}
}

// Run relays until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.DispatchPending(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Worker) publish(ctx context.Context, entry *outbox.Entry) error {
	topic, ok := w.topics[entry.Category]
	if !ok || topic == "" {
		return fmt.Errorf("no topic configured for category %q", entry.Category)
	}
	headers := map[string]string{
		"type":         entry.Type,
		"content-type": entry.ContentType,
		"outbox-id":    entry.ID.String(),
	}
	for k, v := range entry.Headers {
		headers[k] = v
	}
	return w.producer.Produce(ctx, topic, []byte(entry.Key), entry.Payload, headers)
}
