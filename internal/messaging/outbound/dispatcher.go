// Package outbound renders market documents addressed to market actors and
// queues them in the outbox for delivery.
package outbound

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"marketroles/internal/messaging/cim"
	"marketroles/internal/outbox"
	"marketroles/internal/outbox/metrics"
	"marketroles/pkg/requestcontext"
)

// Outbox record headers.
const (
	HeaderReceiver              = "receiver"
	HeaderMessageID             = "message-id"
	HeaderDocumentKind          = "document-kind"
	HeaderOriginalTransactionID = "original-transaction-id"
	HeaderCorrelationID         = "correlation-id"
)

// Dispatcher appends documents through the transaction in ctx, so a document
// is only sent when the state change it reports was committed.
type Dispatcher struct {
	writer  *cim.Writer
	outbox  outbox.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func New(writer *cim.Writer, store outbox.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{writer: writer, outbox: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Confirm(ctx context.Context, resp cim.Response) error {
	doc, err := d.writer.Confirm(resp)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, doc, resp.OriginalTransactionID)
}

func (d *Dispatcher) Reject(ctx context.Context, resp cim.Response) error {
	doc, err := d.writer.Reject(resp)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, doc, resp.OriginalTransactionID)
}

func (d *Dispatcher) NotifyCurrentSupplier(ctx context.Context, n cim.Notification) error {
	doc, err := d.writer.GenericNotification(n)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, doc, n.OriginalTransactionID)
}

func (d *Dispatcher) ForwardCharacteristics(ctx context.Context, c cim.Characteristics) error {
	doc, err := d.writer.AccountingPointCharacteristics(c)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, doc, c.OriginalTransactionID)
}

func (d *Dispatcher) enqueue(ctx context.Context, doc cim.Outbound, originalTransactionID string) error {
	headers := map[string]string{
		HeaderReceiver:              doc.Receiver,
		HeaderMessageID:             doc.MessageID,
		HeaderDocumentKind:          doc.Kind,
		HeaderOriginalTransactionID: originalTransactionID,
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		headers[HeaderCorrelationID] = requestID
	}
	entry := &outbox.Entry{
		ID:          uuid.New(),
		Category:    outbox.CategoryMarketDocument,
		Type:        doc.Kind,
		Key:         doc.Receiver,
		Payload:     doc.Body,
		ContentType: outbox.ContentTypeXML,
		Headers:     headers,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := d.outbox.Append(ctx, entry); err != nil {
		return fmt.Errorf("queue %s for %s: %w", doc.Kind, doc.Receiver, err)
	}
	d.metrics.IncAppended(string(outbox.CategoryMarketDocument))
	d.logger.InfoContext(ctx, "market document queued",
		"kind", doc.Kind, "receiver", doc.Receiver, "message_id", doc.MessageID,
		"original_transaction_id", originalTransactionID)
	return nil
}
