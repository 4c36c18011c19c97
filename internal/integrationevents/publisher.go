package integrationevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"marketroles/internal/accountingpoint/models"
	"marketroles/internal/outbox"
	"marketroles/internal/outbox/metrics"
	"marketroles/pkg/requestcontext"
)

// Publisher appends integration events to the outbox, keyed by GSRN number so
// events of one accounting point stay ordered. Call it with the ctx of the
// transaction that saved the aggregate.
type Publisher struct {
	outbox  outbox.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func NewPublisher(store outbox.Store, opts ...Option) *Publisher {
	p := &Publisher{outbox: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Publish(ctx context.Context, events ...models.DomainEvent) error {
	for _, event := range events {
		entry, err := p.toEntry(ctx, event)
		if err != nil {
			return err
		}
		if err := p.outbox.Append(ctx, entry); err != nil {
			return fmt.Errorf("append %s to outbox: %w", event.EventName(), err)
		}
		p.metrics.IncAppended(string(outbox.CategoryIntegrationEvent))
		p.logger.DebugContext(ctx, "integration event recorded",
			"event_type", event.EventName(), "accounting_point_id", event.AccountingPoint())
	}
	return nil
}

func (p *Publisher) toEntry(ctx context.Context, event models.DomainEvent) (*outbox.Entry, error) {
	payload, gsrn, occurredAt, err := mapEvent(event)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event.EventName(), err)
	}
	eventID := uuid.New()
	envelope, err := json.Marshal(Envelope{
		EventID:       eventID.String(),
		EventType:     event.EventName(),
		SchemaVersion: SchemaVersion,
		OccurredAt:    occurredAt.UTC(),
		CorrelationID: requestcontext.RequestID(ctx),
		Data:          data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event.EventName(), err)
	}
	return &outbox.Entry{
		ID:          eventID,
		Category:    outbox.CategoryIntegrationEvent,
		Type:        event.EventName(),
		Key:         gsrn.String(),
		Payload:     envelope,
		ContentType: outbox.ContentTypeJSON,
		CreatedAt:   requestcontext.Now(ctx),
	}, nil
}
