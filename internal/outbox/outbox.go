// Package outbox implements the transactional outbox. Entries are appended in
// the same transaction as the state change they describe and relayed to Kafka
// afterwards by relay.Worker.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Category selects the topic an entry is relayed to.
type Category string

const (
	CategoryIntegrationEvent Category = "integration_event"
	CategoryMarketDocument   Category = "market_document"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeXML  = "application/xml"
)

type Entry struct {
	ID       uuid.UUID
	Category Category
	Type     string
	// Key is the Kafka record key; entries with the same key keep their order.
	Key         string
	Payload     []byte
	ContentType string
	// Headers travel as Kafka record headers.
	Headers     map[string]string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	Attempts    int
	LastError   string
}

// Store is the outbox table.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	// FetchPending returns unprocessed entries in append order. The Postgres
	// implementation locks them for the transaction in ctx.
	FetchPending(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, entryID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, entryID uuid.UUID, lastError string) error
}
