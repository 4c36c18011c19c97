package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"marketroles/internal/energysupplier/models"
	id "marketroles/pkg/domain"
	"marketroles/pkg/platform/sentinel"
	txcontext "marketroles/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add returns ErrAlreadyUsed for a known GLN without aborting the
// transaction in ctx.
func (s *PostgresStore) Add(ctx context.Context, supplier *models.EnergySupplier) error {
	if supplier == nil {
		return fmt.Errorf("energy supplier is required")
	}
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO energy_suppliers (id, gln_number) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		uuid.UUID(supplier.ID), supplier.GlnNumber.String())
	if err != nil {
		return fmt.Errorf("add energy supplier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add energy supplier: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, supplierID id.EnergySupplierID) (*models.EnergySupplier, error) {
	return s.findOne(ctx, `SELECT id, gln_number FROM energy_suppliers WHERE id = $1`, uuid.UUID(supplierID))
}

func (s *PostgresStore) FindByGln(ctx context.Context, gln id.GlnNumber) (*models.EnergySupplier, error) {
	return s.findOne(ctx, `SELECT id, gln_number FROM energy_suppliers WHERE gln_number = $1`, gln.String())
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.EnergySupplier, error) {
	var (
		supplierID uuid.UUID
		gln        string
	)
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(&supplierID, &gln)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find energy supplier: %w", err)
	}
	return &models.EnergySupplier{ID: id.EnergySupplierID(supplierID), GlnNumber: id.GlnNumber(gln)}, nil
}
