package internalcommands

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

	"marketroles/internal/internalcommands/metrics"
	"marketroles/pkg/platform/tx"
	"marketroles/pkg/requestcontext"
)

const (
	defaultBatchSize    = 50
	defaultMaxAttempts  = 5
	defaultInterval     = 5 * time.Second
	defaultRetryBackoff = 30 * time.Second
)

var errHandlerFailed = errors.New("internal command handler failed")

// Failure describes a failed attempt. ParkedAt is set when no further retries
// will be made; otherwise the command becomes due again at RetryAt.
type Failure struct {
	Attempts  int
	LastError string
	RetryAt   time.Time
	ParkedAt  *time.Time
}

// Processor executes due commands, each in its own transaction.
type Processor struct {
	store        Store
	registry     *Registry
	runner       tx.Runner
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	now          func() time.Time
	batchSize    int
	maxAttempts  int
	interval     time.Duration
	retryBackoff time.Duration
}

type Option func(*Processor)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func WithBatchSize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.retryBackoff = d
		}
	}
}

// WithClock overrides the time source used to decide which commands are due.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(store Store, registry *Registry, runner tx.Runner, opts ...Option) *Processor {
	p := &Processor{
		store:        store,
		registry:     registry,
		runner:       runner,
		logger:       slog.Default(),
		tracer:       otel.Tracer("marketroles/internalcommands"),
		now:          func() time.Time { return time.Now().UTC() },
		batchSize:    defaultBatchSize,
		maxAttempts:  defaultMaxAttempts,
		interval:     defaultInterval,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessDue runs up to one batch of due commands and returns how many were
// picked up. Handler failures are recorded on the command, not returned.
func (p *Processor) ProcessDue(ctx context.Context) (int, error) {
	now := p.now()
	picked := 0
	for picked < p.batchSize {
		found, err := p.processNext(ctx, now)
		if err != nil {
			return picked, err
		}
		if !found {
			break
		}
		picked++
	}
	return picked, nil
}

// Run polls for due commands until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.ProcessDue(ctx); err != nil && ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "internal command batch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Processor) processNext(ctx context.Context, now time.Time) (bool, error) {
	var (
		cmd        *QueuedCommand
		handlerErr error
	)
	err := p.runner.RunInTx(ctx, func(txCtx context.Context) error {
		due, err := p.store.FetchDue(txCtx, now, 1)
		if err != nil {
			return fmt.Errorf("fetch due commands: %w", err)
		}
		if len(due) == 0 {
			return nil
		}
		cmd = due[0]

		handler, ok := p.registry.lookup(cmd.Type)
		if !ok {
			p.logger.ErrorContext(txCtx, "no handler registered for internal command, parking",
				"command_id", cmd.ID, "command_type", cmd.Type)
			p.metrics.IncParked(cmd.Type)
			return p.store.MarkFailed(txCtx, cmd.ID, Failure{
				Attempts:  cmd.Attempts + 1,
				LastError: "no handler registered for " + cmd.Type,
				RetryAt:   now,
				ParkedAt:  &now,
			})
		}

		if handlerErr = p.dispatch(txCtx, cmd, handler, now); handlerErr != nil {
			return errHandlerFailed
		}
		if err := p.store.MarkProcessed(txCtx, cmd.ID, now); err != nil {
			return fmt.Errorf("mark command processed: %w", err)
		}
		p.metrics.IncProcessed(cmd.Type)
		return nil
	})
	if errors.Is(err, errHandlerFailed) {
		return true, p.recordFailure(ctx, cmd, handlerErr, now)
	}
	if err != nil {
		return false, err
	}
	return cmd != nil, nil
}

func (p *Processor) dispatch(ctx context.Context, cmd *QueuedCommand, handler handlerFunc, now time.Time) error {
	ctx, span := p.tracer.Start(ctx, "internalcommands.dispatch", trace.WithAttributes(
		attribute.String("command.type", cmd.Type),
		attribute.String("command.id", cmd.ID.String()),
		attribute.Int("command.attempt", cmd.Attempts+1),
	))
	defer span.End()

	start := time.Now()
	err := handler(requestcontext.WithTime(ctx, now), cmd.Data)
	p.metrics.ObserveHandler(cmd.Type, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// recordFailure runs after the handler's transaction was rolled back.
func (p *Processor) recordFailure(ctx context.Context, cmd *QueuedCommand, handlerErr error, now time.Time) error {
	attempts := cmd.Attempts + 1
	failure := Failure{
		Attempts:  attempts,
		LastError: handlerErr.Error(),
		RetryAt:   now.Add(p.retryBackoff * time.Duration(attempts)),
	}
	p.metrics.IncFailed(cmd.Type)
	if attempts >= p.maxAttempts {
		failure.ParkedAt = &now
		p.metrics.IncParked(cmd.Type)
		p.logger.ErrorContext(ctx, "internal command parked after last attempt",
			"command_id", cmd.ID, "command_type", cmd.Type, "attempts", attempts, "error", handlerErr)
	} else {
		p.logger.WarnContext(ctx, "internal command failed, will retry",
			"command_id", cmd.ID, "command_type", cmd.Type, "attempts", attempts,
			"retry_at", failure.RetryAt, "error", handlerErr)
	}
	return p.runner.RunInTx(ctx, func(txCtx context.Context) error {
		return p.store.MarkFailed(txCtx, cmd.ID, failure)
	})
}
