package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"marketroles/internal/outbox"
	"marketroles/pkg/platform/sentinel"
	txcontext "marketroles/pkg/platform/tx"
)

const (
	tableOutbox = "outbox"

	colID          = "id"
	colSeq         = "seq"
	colCategory    = "category"
	colType        = "type"
	colKey         = "key"
	colPayload     = "payload"
	colContentType = "content_type"
	colHeaders     = "headers"
	colCreatedAt   = "created_at"
	colProcessedAt = "processed_at"
	colAttempts    = "attempts"
	colLastError   = "last_error"
)

var dialect = goqu.Dialect("postgres")

// PostgresStore writes outbox rows through the transaction in ctx so they
// commit together with the state change that produced them.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry *outbox.Entry) error {
	if entry == nil {
		return fmt.Errorf("outbox entry is required")
	}
	headers, err := json.Marshal(entry.Headers)
	if err != nil {
		return fmt.Errorf("marshal outbox headers: %w", err)
	}
	query, args, err := dialect.Insert(tableOutbox).Prepared(true).Rows(goqu.Record{
		colID:          entry.ID,
		colCategory:    string(entry.Category),
		colType:        entry.Type,
		colKey:         entry.Key,
		colPayload:     entry.Payload,
		colContentType: entry.ContentType,
		colHeaders:     string(headers),
		colCreatedAt:   entry.CreatedAt,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert outbox entry: %w", err)
	}
	if _, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchPending locks unprocessed rows in append order. Entries appended in
// the same transaction share created_at, so seq breaks the tie.
func (s *PostgresStore) FetchPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	ds := dialect.From(tableOutbox).Prepared(true).
		Select(colID, colCategory, colType, colKey, colPayload, colContentType, colHeaders, colCreatedAt, colAttempts, colLastError).
		Where(goqu.C(colProcessedAt).IsNull()).
		Order(goqu.I(colSeq).Asc()).
		ForUpdate(exp.SkipLocked)
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build fetch outbox: %w", err)
	}
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	defer rows.Close()

	var entries []*outbox.Entry
	for rows.Next() {
		var (
			e        outbox.Entry
			category string
			headers  []byte
		)
		if err := rows.Scan(&e.ID, &category, &e.Type, &e.Key, &e.Payload, &e.ContentType, &headers,
			&e.CreatedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.Category = outbox.Category(category)
		if len(headers) > 0 {
			if err := json.Unmarshal(headers, &e.Headers); err != nil {
				return nil, fmt.Errorf("decode outbox headers: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, entryID uuid.UUID, at time.Time) error {
	return s.update(ctx, entryID, goqu.Record{
		colProcessedAt: at,
		colAttempts:    goqu.L(colAttempts + " + 1"),
	})
}

func (s *PostgresStore) MarkFailed(ctx context.Context, entryID uuid.UUID, lastError string) error {
	return s.update(ctx, entryID, goqu.Record{
		colAttempts:  goqu.L(colAttempts + " + 1"),
		colLastError: lastError,
	})
}

func (s *PostgresStore) update(ctx context.Context, entryID uuid.UUID, record goqu.Record) error {
	query, args, err := dialect.Update(tableOutbox).Prepared(true).
		Set(record).
		Where(goqu.C(colID).Eq(entryID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update outbox entry: %w", err)
	}
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update outbox entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update outbox entry: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
