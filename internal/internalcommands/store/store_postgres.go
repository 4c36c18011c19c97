package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"marketroles/internal/internalcommands"
	"marketroles/pkg/platform/sentinel"
	txcontext "marketroles/pkg/platform/tx"
)

const (
	tableInternalCommands = "internal_commands"

	colID          = "id"
	colType        = "type"
	colData        = "data"
	colScheduledAt = "scheduled_at"
	colCreatedAt   = "created_at"
	colProcessedAt = "processed_at"
	colFailedAt    = "failed_at"
	colAttempts    = "attempts"
	colLastError   = "last_error"
)

var dialect = goqu.Dialect("postgres")

// PostgresStore is the command queue table. FetchDue takes row locks with
// SKIP LOCKED so several processors can share the queue.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, cmd *internalcommands.QueuedCommand) error {
	if cmd == nil {
		return fmt.Errorf("command is required")
	}
	query, args, err := dialect.Insert(tableInternalCommands).Prepared(true).Rows(goqu.Record{
		colID:          cmd.ID,
		colType:        cmd.Type,
		colData:        string(cmd.Data),
		colScheduledAt: cmd.ScheduledAt,
		colCreatedAt:   cmd.CreatedAt,
		colAttempts:    cmd.Attempts,
		colLastError:   cmd.LastError,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert command: %w", err)
	}
	if _, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

func (s *PostgresStore) FetchDue(ctx context.Context, now time.Time, limit int) ([]*internalcommands.QueuedCommand, error) {
	ds := dialect.From(tableInternalCommands).Prepared(true).
		Select(colID, colType, colData, colScheduledAt, colCreatedAt, colAttempts, colLastError).
		Where(
			goqu.C(colProcessedAt).IsNull(),
			goqu.C(colFailedAt).IsNull(),
			goqu.C(colScheduledAt).Lte(now),
		).
		Order(goqu.I(colScheduledAt).Asc(), goqu.I(colCreatedAt).Asc()).
		ForUpdate(exp.SkipLocked)
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build fetch due commands: %w", err)
	}

	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch due commands: %w", err)
	}
	defer rows.Close()

	var due []*internalcommands.QueuedCommand
	for rows.Next() {
		var (
			cmd  internalcommands.QueuedCommand
			data string
		)
		if err := rows.Scan(&cmd.ID, &cmd.Type, &data, &cmd.ScheduledAt, &cmd.CreatedAt, &cmd.Attempts, &cmd.LastError); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		cmd.Data = []byte(data)
		due = append(due, &cmd)
	}
	return due, rows.Err()
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, cmdID uuid.UUID, at time.Time) error {
	return s.update(ctx, cmdID, goqu.Record{
		colProcessedAt: at,
		colAttempts:    goqu.L(colAttempts + " + 1"),
	})
}

func (s *PostgresStore) MarkFailed(ctx context.Context, cmdID uuid.UUID, failure internalcommands.Failure) error {
	record := goqu.Record{
		colAttempts:    failure.Attempts,
		colLastError:   failure.LastError,
		colScheduledAt: failure.RetryAt,
	}
	if failure.ParkedAt != nil {
		record[colFailedAt] = *failure.ParkedAt
	}
	return s.update(ctx, cmdID, record)
}

func (s *PostgresStore) update(ctx context.Context, cmdID uuid.UUID, record goqu.Record) error {
	query, args, err := dialect.Update(tableInternalCommands).Prepared(true).
		Set(record).
		Where(goqu.C(colID).Eq(cmdID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update command: %w", err)
	}
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update command: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update command: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
