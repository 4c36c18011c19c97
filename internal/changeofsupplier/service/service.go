// Package service runs the change of supplier process and its cancellation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apmodels "marketroles/internal/accountingpoint/models"
	"marketroles/internal/internalcommands"
	"marketroles/internal/processing"
	"marketroles/internal/processing/metrics"
	id "marketroles/pkg/domain"
	dErrors "marketroles/pkg/domain-errors"
	"marketroles/pkg/platform/sentinel"
	"marketroles/pkg/requestcontext"
)

const (
	processName      = "change_of_supplier"
	cancellationName = "cancel_change_of_supplier"
)

// Request asks for the sender to become supplier from SupplyStartDate.
type Request struct {
	TransactionID     string
	GsrnNumber        string
	EnergySupplierGln string
	SupplyStartDate   time.Time
}

// CancelRequest withdraws an earlier change of supplier, identified by the
// transaction ID it was requested with.
type CancelRequest struct {
	TransactionID         string
	OriginalTransactionID string
	GsrnNumber            string
	EnergySupplierGln     string
}

type Service struct {
	accountingPoints processing.AccountingPointStore
	suppliers        processing.EnergySupplierStore
	scheduler        processing.CommandScheduler
	publisher        processing.EventPublisher
	tx               processing.TxRunner
	logger           *slog.Logger
	metrics          *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(
	accountingPoints processing.AccountingPointStore,
	suppliers processing.EnergySupplierStore,
	scheduler processing.CommandScheduler,
	publisher processing.EventPublisher,
	tx processing.TxRunner,
	opts ...Option,
) *Service {
	s := &Service{
		accountingPoints: accountingPoints,
		suppliers:        suppliers,
		scheduler:        scheduler,
		publisher:        publisher,
		tx:               tx,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestChangeOfSupplier registers the change, schedules its effectuation on
// the supply start date and has the current supplier notified right away.
func (s *Service) RequestChangeOfSupplier(ctx context.Context, req Request) (processing.Result, error) {
	txID, invalid := parseTransactionID(req.TransactionID)
	gsrn, gln, more := parseTarget(req.GsrnNumber, req.EnergySupplierGln)
	invalid = append(invalid, more...)
	if req.SupplyStartDate.IsZero() {
		invalid = append(invalid, apmodels.ValidationError{
			Code: processing.CodeEffectiveDateIsRequired, Message: "supply start date is required",
		})
	}
	if len(invalid) > 0 {
		return s.rejected(ctx, processName, processing.Failed(txID, invalid...)), nil
	}
	startDate := req.SupplyStartDate.UTC()

	var result processing.Result
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		ap, supplierID, rejection, err := s.load(txCtx, txID, gsrn, gln)
		if err != nil || rejection != nil {
			if rejection != nil {
				result = *rejection
			}
			return err
		}

		validation := ap.ChangeSupplierAcceptable(supplierID, startDate, now)
		if !validation.Success() {
			result = processing.FromValidation(txID, validation)
			return nil
		}
		current := ap.CurrentSupplier(startDate)
		if current == nil {
			current = ap.CurrentSupplier(now)
		}

		processID, err := ap.AcceptChangeOfSupplier(supplierID, txID, startDate, now)
		if err != nil {
			return err
		}
		if err := s.save(txCtx, ap); err != nil {
			return err
		}
		if err := s.scheduler.Enqueue(txCtx, internalcommands.EffectuateChangeOfSupplier{
			AccountingPointID: ap.ID,
			BusinessProcessID: processID,
			TransactionID:     txID,
		}, startDate); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to schedule change of supplier effectuation")
		}
		if current != nil {
			if err := s.scheduler.Enqueue(txCtx, internalcommands.NotifyCurrentSupplier{
				AccountingPointID: ap.ID,
				BusinessProcessID: processID,
				TransactionID:     txID,
				EnergySupplierID:  current.EnergySupplierID,
				EffectiveDate:     startDate,
			}, now); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to schedule current supplier notification")
			}
		}
		result = processing.Succeeded(txID)
		return nil
	})
	if err != nil {
		return processing.Result{}, err
	}
	if !result.Success {
		return s.rejected(ctx, processName, result), nil
	}
	s.metrics.IncAccepted(processName)
	s.logger.InfoContext(ctx, "change of supplier accepted",
		"transaction_id", txID, "gsrn_number", gsrn, "supply_start_date", startDate)
	return result, nil
}

// CancelChangeOfSupplier withdraws a pending change of supplier before its
// supply start date. Only the supplier that requested it may cancel.
func (s *Service) CancelChangeOfSupplier(ctx context.Context, req CancelRequest) (processing.Result, error) {
	txID, invalid := parseTransactionID(req.TransactionID)
	original, err := id.ParseTransactionID(req.OriginalTransactionID)
	if err != nil {
		invalid = append(invalid, apmodels.ValidationError{
			Code: processing.CodeTransactionIDIsRequired, Message: "original transaction id: " + err.Error(),
		})
	}
	gsrn, gln, more := parseTarget(req.GsrnNumber, req.EnergySupplierGln)
	invalid = append(invalid, more...)
	if len(invalid) > 0 {
		return s.rejected(ctx, cancellationName, processing.Failed(txID, invalid...)), nil
	}

	var result processing.Result
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		ap, supplierID, rejection, err := s.load(txCtx, txID, gsrn, gln)
		if err != nil || rejection != nil {
			if rejection != nil {
				result = *rejection
			}
			return err
		}

		validation := ap.CancelChangeOfSupplierAcceptable(original, supplierID, now)
		if !validation.Success() {
			result = processing.FromValidation(txID, validation)
			return nil
		}
		if _, err := ap.CancelChangeOfSupplier(original, supplierID, now); err != nil {
			return err
		}
		if err := s.save(txCtx, ap); err != nil {
			return err
		}
		result = processing.Succeeded(txID)
		return nil
	})
	if err != nil {
		return processing.Result{}, err
	}
	if !result.Success {
		return s.rejected(ctx, cancellationName, result), nil
	}
	s.metrics.IncAccepted(cancellationName)
	s.logger.InfoContext(ctx, "change of supplier cancelled",
		"transaction_id", txID, "original_transaction_id", original, "gsrn_number", gsrn)
	return result, nil
}

// EffectuateChangeOfSupplier is the internal command handler run on the supply
// start date. A process cancelled in the meantime is skipped.
func (s *Service) EffectuateChangeOfSupplier(ctx context.Context, cmd internalcommands.EffectuateChangeOfSupplier) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ap, err := s.accountingPoints.FindByID(txCtx, cmd.AccountingPointID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load accounting point")
		}
		process := ap.BusinessProcess(cmd.BusinessProcessID)
		if process != nil && !process.IsPending() {
			s.logger.InfoContext(txCtx, "change of supplier no longer pending, skipping",
				"business_process_id", cmd.BusinessProcessID, "transaction_id", cmd.TransactionID,
				"status", process.Status)
			return nil
		}
		if err := ap.EffectuateChangeOfSupplier(cmd.BusinessProcessID, requestcontext.Now(txCtx)); err != nil {
			return err
		}
		if err := s.save(txCtx, ap); err != nil {
			return err
		}
		registration := ap.SupplierRegistrationFor(cmd.BusinessProcessID)
		if err := s.scheduler.Enqueue(txCtx, internalcommands.ForwardMeteringPointDetails{
			AccountingPointID: ap.ID,
			BusinessProcessID: cmd.BusinessProcessID,
			TransactionID:     cmd.TransactionID,
			EnergySupplierID:  registration.EnergySupplierID,
		}, requestcontext.Now(txCtx)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to schedule metering point details")
		}
		s.metrics.IncEffectuated(processName)
		s.logger.InfoContext(txCtx, "energy supplier changed",
			"gsrn_number", ap.GsrnNumber, "transaction_id", cmd.TransactionID)
		return nil
	})
}

// load resolves the accounting point and the requesting supplier. Unknown ones
// are business rejections.
func (s *Service) load(ctx context.Context, txID id.TransactionID, gsrn id.GsrnNumber, gln id.GlnNumber) (*apmodels.AccountingPoint, id.EnergySupplierID, *processing.Result, error) {
	ap, err := s.accountingPoints.FindByGsrn(ctx, gsrn)
	if errors.Is(err, sentinel.ErrNotFound) {
		r := processing.Invalid(txID, processing.CodeUnknownAccountingPoint, "accounting point "+gsrn.String()+" is unknown")
		return nil, id.EnergySupplierID{}, &r, nil
	}
	if err != nil {
		return nil, id.EnergySupplierID{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load accounting point")
	}
	supplier, err := s.suppliers.FindByGln(ctx, gln)
	if errors.Is(err, sentinel.ErrNotFound) {
		r := processing.Invalid(txID, processing.CodeUnknownEnergySupplier, "energy supplier "+gln.String()+" is unknown")
		return nil, id.EnergySupplierID{}, &r, nil
	}
	if err != nil {
		return nil, id.EnergySupplierID{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load energy supplier")
	}
	return ap, supplier.ID, nil, nil
}

func (s *Service) save(ctx context.Context, ap *apmodels.AccountingPoint) error {
	if err := s.accountingPoints.Save(ctx, ap); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "accounting point was modified concurrently")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save accounting point")
	}
	if err := s.publisher.Publish(ctx, ap.PullDomainEvents()...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish domain events")
	}
	return nil
}

func (s *Service) rejected(ctx context.Context, process string, result processing.Result) processing.Result {
	s.metrics.IncRejected(process, result.Codes()...)
	s.logger.InfoContext(ctx, "transaction rejected", "process", process,
		"transaction_id", result.TransactionID, "codes", strings.Join(result.Codes(), ","))
	return result
}

func parseTransactionID(raw string) (id.TransactionID, []apmodels.ValidationError) {
	txID, err := id.ParseTransactionID(raw)
	if err != nil {
		return id.TransactionID(raw), []apmodels.ValidationError{{Code: processing.CodeTransactionIDIsRequired, Message: err.Error()}}
	}
	return txID, nil
}

func parseTarget(rawGsrn, rawGln string) (id.GsrnNumber, id.GlnNumber, []apmodels.ValidationError) {
	var invalid []apmodels.ValidationError
	gsrn, err := id.ParseGsrnNumber(rawGsrn)
	if err != nil {
		invalid = append(invalid, apmodels.ValidationError{Code: processing.CodeInvalidGsrnNumber, Message: err.Error()})
	}
	gln, err := id.ParseGlnNumber(rawGln)
	if err != nil {
		invalid = append(invalid, apmodels.ValidationError{Code: processing.CodeInvalidGlnNumber, Message: err.Error()})
	}
	return gsrn, gln, invalid
}
