// Package service runs the move-in process: a new consumer takes over an
// accounting point, supplied by the energy supplier that sent the request.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apmodels "marketroles/internal/accountingpoint/models"
	consumermodels "marketroles/internal/consumer/models"
	"marketroles/internal/internalcommands"
	"marketroles/internal/processing"
	"marketroles/internal/processing/metrics"
	id "marketroles/pkg/domain"
	dErrors "marketroles/pkg/domain-errors"
	"marketroles/pkg/platform/sentinel"
	"marketroles/pkg/requestcontext"
)

const processName = "move_in"

// Request is one move-in transaction as received from an energy supplier.
type Request struct {
	TransactionID        string
	GsrnNumber           string
	EnergySupplierGln    string
	ConsumerName         string
	ConsumerIdentityKind id.IdentityKind
	ConsumerIdentity     string
	MoveInDate           time.Time
}

type Service struct {
	accountingPoints processing.AccountingPointStore
	consumers        processing.ConsumerStore
	suppliers        processing.EnergySupplierStore
	scheduler        processing.CommandScheduler
	publisher        processing.EventPublisher
	tx               processing.TxRunner
	policy           apmodels.EffectiveDatePolicy
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

// WithPolicy overrides the allowed window for move-in dates.
func WithPolicy(policy apmodels.EffectiveDatePolicy) Option {
	return func(s *Service) { s.policy = policy }
}

func New(
	accountingPoints processing.AccountingPointStore,
	consumers processing.ConsumerStore,
	suppliers processing.EnergySupplierStore,
	scheduler processing.CommandScheduler,
	publisher processing.EventPublisher,
	tx processing.TxRunner,
	opts ...Option,
) *Service {
	s := &Service{
		accountingPoints: accountingPoints,
		consumers:        consumers,
		suppliers:        suppliers,
		scheduler:        scheduler,
		publisher:        publisher,
		tx:               tx,
		policy:           apmodels.DefaultMoveInPolicy,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// parsedRequest holds the validated value objects of a Request.
type parsedRequest struct {
	transactionID id.TransactionID
	gsrn          id.GsrnNumber
	gln           id.GlnNumber
	identity      id.ConsumerIdentity
	name          string
	moveInDate    time.Time
}

// RequestMoveIn validates and registers a move-in. Business rejections come
// back as a failed Result; the error is reserved for infrastructure failures.
func (s *Service) RequestMoveIn(ctx context.Context, req Request) (processing.Result, error) {
	parsed, invalid := parseRequest(req)
	if len(invalid) > 0 {
		return s.rejected(ctx, processing.Failed(parsed.transactionID, invalid...)), nil
	}

	var result processing.Result
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		ap, err := s.accountingPoints.FindByGsrn(txCtx, parsed.gsrn)
		if errors.Is(err, sentinel.ErrNotFound) {
			result = processing.Invalid(parsed.transactionID, processing.CodeUnknownAccountingPoint,
				"accounting point "+parsed.gsrn.String()+" is unknown")
			return nil
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load accounting point")
		}

		supplier, err := s.suppliers.FindByGln(txCtx, parsed.gln)
		if errors.Is(err, sentinel.ErrNotFound) {
			result = processing.Invalid(parsed.transactionID, processing.CodeUnknownEnergySupplier,
				"energy supplier "+parsed.gln.String()+" is unknown")
			return nil
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load energy supplier")
		}

		consumer, isNew, err := s.findOrPrepareConsumer(txCtx, parsed)
		if err != nil {
			return err
		}

		validation := ap.ConsumerMoveInAcceptable(consumer.ID, parsed.moveInDate, now, s.policy)
		if !validation.Success() {
			result = processing.FromValidation(parsed.transactionID, validation)
			return nil
		}

		if isNew {
			if err := s.consumers.Add(txCtx, consumer); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register consumer")
			}
		}
		processID, err := ap.AcceptConsumerMoveIn(consumer.ID, supplier.ID, parsed.transactionID, parsed.moveInDate, now, s.policy)
		if err != nil {
			return err
		}
		if err := s.save(txCtx, ap); err != nil {
			return err
		}
		if err := s.scheduler.Enqueue(txCtx, internalcommands.EffectuateConsumerMoveIn{
			AccountingPointID: ap.ID,
			BusinessProcessID: processID,
			TransactionID:     parsed.transactionID,
		}, parsed.moveInDate); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to schedule move-in effectuation")
		}
		result = processing.Succeeded(parsed.transactionID)
		return nil
	})
	if err != nil {
		return processing.Result{}, err
	}
	if !result.Success {
		return s.rejected(ctx, result), nil
	}
	s.metrics.IncAccepted(processName)
	s.logger.InfoContext(ctx, "move-in accepted",
		"transaction_id", parsed.transactionID, "gsrn_number", parsed.gsrn, "move_in_date", parsed.moveInDate)
	return result, nil
}

// EffectuateConsumerMoveIn is the internal command handler run on the move-in
// date.
func (s *Service) EffectuateConsumerMoveIn(ctx context.Context, cmd internalcommands.EffectuateConsumerMoveIn) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ap, err := s.accountingPoints.FindByID(txCtx, cmd.AccountingPointID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load accounting point")
		}
		process := ap.BusinessProcess(cmd.BusinessProcessID)
		if process != nil && process.Status == apmodels.ProcessCompleted {
			s.logger.InfoContext(txCtx, "move-in already effectuated",
				"business_process_id", cmd.BusinessProcessID, "transaction_id", cmd.TransactionID)
			return nil
		}
		if err := ap.EffectuateConsumerMoveIn(cmd.BusinessProcessID, requestcontext.Now(txCtx)); err != nil {
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
		s.logger.InfoContext(txCtx, "consumer moved in",
			"gsrn_number", ap.GsrnNumber, "transaction_id", cmd.TransactionID)
		return nil
	})
}

func (s *Service) findOrPrepareConsumer(ctx context.Context, parsed parsedRequest) (*consumermodels.Consumer, bool, error) {
	existing, err := s.consumers.FindByIdentity(ctx, parsed.identity)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consumer")
	}
	consumer, err := consumermodels.NewConsumer(parsed.identity, parsed.name)
	if err != nil {
		return nil, false, err
	}
	return consumer, true, nil
}

// save stores the aggregate and records its events in the same transaction.
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

func (s *Service) rejected(ctx context.Context, result processing.Result) processing.Result {
	s.metrics.IncRejected(processName, result.Codes()...)
	s.logger.InfoContext(ctx, "move-in rejected",
		"transaction_id", result.TransactionID, "codes", strings.Join(result.Codes(), ","))
	return result
}

func parseRequest(req Request) (parsedRequest, []apmodels.ValidationError) {
	var (
		parsed  parsedRequest
		invalid []apmodels.ValidationError
		err     error
	)
	fail := func(code apmodels.ValidationErrorCode, msg string) {
		invalid = append(invalid, apmodels.ValidationError{Code: code, Message: msg})
	}

	if parsed.transactionID, err = id.ParseTransactionID(req.TransactionID); err != nil {
		parsed.transactionID = id.TransactionID(req.TransactionID)
		fail(processing.CodeTransactionIDIsRequired, err.Error())
	}
	if parsed.gsrn, err = id.ParseGsrnNumber(req.GsrnNumber); err != nil {
		fail(processing.CodeInvalidGsrnNumber, err.Error())
	}
	if parsed.gln, err = id.ParseGlnNumber(req.EnergySupplierGln); err != nil {
		fail(processing.CodeInvalidGlnNumber, err.Error())
	}
	if parsed.identity, err = id.ParseConsumerIdentity(req.ConsumerIdentityKind, req.ConsumerIdentity); err != nil {
		fail(processing.CodeInvalidConsumerIdentity, err.Error())
	}
	if parsed.name = strings.TrimSpace(req.ConsumerName); parsed.name == "" {
		fail(processing.CodeConsumerNameIsRequired, "consumer name is required")
	}
	if req.MoveInDate.IsZero() {
		fail(processing.CodeEffectiveDateIsRequired, "move-in date is required")
	}
	parsed.moveInDate = req.MoveInDate.UTC()
	return parsed, invalid
}
