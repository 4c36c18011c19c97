package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketroles/internal/accountingpoint/models"
	id "marketroles/pkg/domain"
	"marketroles/pkg/platform/sentinel"
	txcontext "marketroles/pkg/platform/tx"
)

// PostgresStore persists the aggregate across four tables. Child rows are
// upserted by ID and never deleted; the root row carries the version used for
// optimistic concurrency.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, pointID id.AccountingPointID) (*models.AccountingPoint, error) {
	return s.findOne(ctx, `
		SELECT id, gsrn_number, type, physical_state, version
		FROM accounting_points WHERE id = $1`, uuid.UUID(pointID))
}

func (s *PostgresStore) FindByGsrn(ctx context.Context, gsrn id.GsrnNumber) (*models.AccountingPoint, error) {
	return s.findOne(ctx, `
		SELECT id, gsrn_number, type, physical_state, version
		FROM accounting_points WHERE gsrn_number = $1`, gsrn.String())
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.AccountingPoint, error) {
	exec := txcontext.Execer(ctx, s.db)

	var (
		ap      models.AccountingPoint
		pointID uuid.UUID
		gsrn    string
		ptype   string
		state   string
	)
	err := exec.QueryRowContext(ctx, query, arg).Scan(&pointID, &gsrn, &ptype, &state, &ap.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find accounting point: %w", err)
	}
	ap.ID = id.AccountingPointID(pointID)
	ap.GsrnNumber = id.GsrnNumber(gsrn)
	ap.Type = models.AccountingPointType(ptype)
	ap.PhysicalState = models.PhysicalState(state)

	if err := s.loadProcesses(ctx, exec, &ap); err != nil {
		return nil, err
	}
	if err := s.loadSupplierRegistrations(ctx, exec, &ap); err != nil {
		return nil, err
	}
	if err := s.loadConsumerRegistrations(ctx, exec, &ap); err != nil {
		return nil, err
	}
	return &ap, nil
}

func (s *PostgresStore) loadProcesses(ctx context.Context, exec txcontext.Executor, ap *models.AccountingPoint) error {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, transaction_id, effective_date, type, status
		FROM business_processes WHERE accounting_point_id = $1
		ORDER BY effective_date, id`, uuid.UUID(ap.ID))
	if err != nil {
		return fmt.Errorf("load business processes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p         models.BusinessProcess
			processID uuid.UUID
			txID      string
			ptype     string
			status    string
		)
		if err := rows.Scan(&processID, &txID, &p.EffectiveDate, &ptype, &status); err != nil {
			return fmt.Errorf("scan business process: %w", err)
		}
		p.ID = id.BusinessProcessID(processID)
		p.TransactionID = id.TransactionID(txID)
		p.EffectiveDate = p.EffectiveDate.UTC()
		p.Type = models.BusinessProcessType(ptype)
		p.Status = models.BusinessProcessStatus(status)
		ap.BusinessProcesses = append(ap.BusinessProcesses, &p)
	}
	return rows.Err()
}

func (s *PostgresStore) loadSupplierRegistrations(ctx context.Context, exec txcontext.Executor, ap *models.AccountingPoint) error {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, energy_supplier_id, business_process_id, start_of_supply, end_of_supply
		FROM supplier_registrations WHERE accounting_point_id = $1
		ORDER BY created_seq`, uuid.UUID(ap.ID))
	if err != nil {
		return fmt.Errorf("load supplier registrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r          models.SupplierRegistration
			supplierID uuid.UUID
			processID  uuid.UUID
			start, end sql.NullTime
		)
		if err := rows.Scan(&r.ID, &supplierID, &processID, &start, &end); err != nil {
			return fmt.Errorf("scan supplier registration: %w", err)
		}
		r.EnergySupplierID = id.EnergySupplierID(supplierID)
		r.BusinessProcessID = id.BusinessProcessID(processID)
		r.StartOfSupplyDate = fromNullTime(start)
		r.EndOfSupplyDate = fromNullTime(end)
		ap.SupplierRegistrations = append(ap.SupplierRegistrations, &r)
	}
	return rows.Err()
}

func (s *PostgresStore) loadConsumerRegistrations(ctx context.Context, exec txcontext.Executor, ap *models.AccountingPoint) error {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, consumer_id, business_process_id, move_in_date
		FROM consumer_registrations WHERE accounting_point_id = $1
		ORDER BY created_seq`, uuid.UUID(ap.ID))
	if err != nil {
		return fmt.Errorf("load consumer registrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r          models.ConsumerRegistration
			consumerID uuid.UUID
			processID  uuid.UUID
			moveIn     sql.NullTime
		)
		if err := rows.Scan(&r.ID, &consumerID, &processID, &moveIn); err != nil {
			return fmt.Errorf("scan consumer registration: %w", err)
		}
		r.ConsumerID = id.ConsumerID(consumerID)
		r.BusinessProcessID = id.BusinessProcessID(processID)
		r.MoveInDate = fromNullTime(moveIn)
		ap.ConsumerRegistrations = append(ap.ConsumerRegistrations, &r)
	}
	return rows.Err()
}

// Save writes the root row and upserts every child. Call it inside a
// transaction from tx.Runner.
func (s *PostgresStore) Save(ctx context.Context, ap *models.AccountingPoint) error {
	if ap == nil {
		return fmt.Errorf("accounting point is required")
	}
	exec := txcontext.Execer(ctx, s.db)

	if err := s.saveRoot(ctx, exec, ap); err != nil {
		return err
	}
	for _, p := range ap.BusinessProcesses {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO business_processes (id, accounting_point_id, transaction_id, effective_date, type, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`,
			uuid.UUID(p.ID), uuid.UUID(ap.ID), p.TransactionID.String(), p.EffectiveDate, string(p.Type), string(p.Status))
		if err != nil {
			return fmt.Errorf("save business process: %w", err)
		}
	}
	for _, r := range ap.SupplierRegistrations {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO supplier_registrations (id, accounting_point_id, energy_supplier_id, business_process_id, start_of_supply, end_of_supply)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET start_of_supply = EXCLUDED.start_of_supply, end_of_supply = EXCLUDED.end_of_supply`,
			r.ID, uuid.UUID(ap.ID), uuid.UUID(r.EnergySupplierID), uuid.UUID(r.BusinessProcessID),
			nullTime(r.StartOfSupplyDate), nullTime(r.EndOfSupplyDate))
		if err != nil {
			return fmt.Errorf("save supplier registration: %w", err)
		}
	}
	for _, r := range ap.ConsumerRegistrations {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO consumer_registrations (id, accounting_point_id, consumer_id, business_process_id, move_in_date)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET move_in_date = EXCLUDED.move_in_date`,
			r.ID, uuid.UUID(ap.ID), uuid.UUID(r.ConsumerID), uuid.UUID(r.BusinessProcessID), nullTime(r.MoveInDate))
		if err != nil {
			return fmt.Errorf("save consumer registration: %w", err)
		}
	}
	ap.Version++
	return nil
}

func (s *PostgresStore) saveRoot(ctx context.Context, exec txcontext.Executor, ap *models.AccountingPoint) error {
	if ap.Version == 0 {
		res, err := exec.ExecContext(ctx, `
			INSERT INTO accounting_points (id, gsrn_number, type, physical_state, version)
			VALUES ($1, $2, $3, $4, 1)
			ON CONFLICT DO NOTHING`,
			uuid.UUID(ap.ID), ap.GsrnNumber.String(), string(ap.Type), string(ap.PhysicalState))
		if err != nil {
			return fmt.Errorf("insert accounting point: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert accounting point: %w", err)
		}
		if inserted == 0 {
			return sentinel.ErrAlreadyUsed
		}
		return nil
	}

	res, err := exec.ExecContext(ctx, `
		UPDATE accounting_points SET physical_state = $2, version = version + 1
		WHERE id = $1 AND version = $3`,
		uuid.UUID(ap.ID), string(ap.PhysicalState), ap.Version)
	if err != nil {
		return fmt.Errorf("update accounting point: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update accounting point: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func fromNullTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
