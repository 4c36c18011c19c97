package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration

	txcontext "marketroles/pkg/platform/tx"
)

const (
	tableIdentifiers = "received_identifiers"

	colKind       = "kind"
	colSender     = "sender"
	colIdentifier = "identifier"
	colReceivedAt = "received_at"
)

var dialect = goqu.Dialect("postgres")

// PostgresRegistry relies on the table's primary key; a conflicting insert
// means the ID was seen before.
type PostgresRegistry struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgres(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *PostgresRegistry) TryRegisterMessageID(ctx context.Context, sender, messageID string) (bool, error) {
	return r.try(ctx, kindMessage, sender, messageID)
}

func (r *PostgresRegistry) TryRegisterTransactionID(ctx context.Context, sender, transactionID string) (bool, error) {
	return r.try(ctx, kindTransaction, sender, transactionID)
}

func (r *PostgresRegistry) try(ctx context.Context, kind, sender, identifier string) (bool, error) {
	query, args, err := dialect.Insert(tableIdentifiers).Prepared(true).
		Rows(goqu.Record{
			colKind:       kind,
			colSender:     sender,
			colIdentifier: identifier,
			colReceivedAt: r.now(),
		}).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build insert %s id: %w", kind, err)
	}
	res, err := txcontext.Execer(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("register %s id: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("register %s id: %w", kind, err)
	}
	return n == 1, nil
}
