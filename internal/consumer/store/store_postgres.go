package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"marketroles/internal/consumer/models"
	id "marketroles/pkg/domain"
	"marketroles/pkg/platform/sentinel"
	txcontext "marketroles/pkg/platform/tx"
)

// PostgresStore persists consumers. (identity_kind, identity_value) is unique.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add returns ErrAlreadyUsed for a known identity. The conflict is skipped
// rather than raised so the surrounding transaction stays usable.
func (s *PostgresStore) Add(ctx context.Context, consumer *models.Consumer) error {
	if consumer == nil {
		return fmt.Errorf("consumer is required")
	}
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO consumers (id, identity_kind, identity_value, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		uuid.UUID(consumer.ID), string(consumer.Identity.Kind()), consumer.Identity.Value(), consumer.Name)
	if err != nil {
		return fmt.Errorf("add consumer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add consumer: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, consumerID id.ConsumerID) (*models.Consumer, error) {
	return s.findOne(ctx, `
		SELECT id, identity_kind, identity_value, name FROM consumers WHERE id = $1`,
		uuid.UUID(consumerID))
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, identity id.ConsumerIdentity) (*models.Consumer, error) {
	return s.findOne(ctx, `
		SELECT id, identity_kind, identity_value, name FROM consumers
		WHERE identity_kind = $1 AND identity_value = $2`,
		string(identity.Kind()), identity.Value())
}

func (s *PostgresStore) findOne(ctx context.Context, query string, args ...any) (*models.Consumer, error) {
	var (
		consumerID uuid.UUID
		kind       string
		value      string
		c          models.Consumer
	)
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(&consumerID, &kind, &value, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find consumer: %w", err)
	}
	identity, err := id.ParseConsumerIdentity(id.IdentityKind(kind), value)
	if err != nil {
		return nil, fmt.Errorf("decode consumer identity: %w", err)
	}
	c.ID = id.ConsumerID(consumerID)
	c.Identity = identity
	return &c, nil
}
