package masterdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	apmodels "marketroles/internal/accountingpoint/models"
	suppliermodels "marketroles/internal/energysupplier/models"
	"marketroles/internal/platform/kafka/consumer"
	"marketroles/internal/processing"
	id "marketroles/pkg/domain"
	dErrors "marketroles/pkg/domain-errors"
	"marketroles/pkg/platform/sentinel"
	"marketroles/pkg/requestcontext"
)

const (
	EventMeteringPointCreated      = "MeteringPointCreated"
	EventMeteringPointConnected    = "MeteringPointConnected"
	EventMeteringPointDisconnected = "MeteringPointDisconnected"
	EventMeteringPointClosedDown   = "MeteringPointClosedDown"
	EventEnergySupplierRegistered  = "EnergySupplierRegistered"
)

type meteringPointCreated struct {
	GsrnNumber        string `json:"gsrn_number"`
	MeteringPointType string `json:"metering_point_type"`
	PhysicalState     string `json:"physical_state"`
}

type meteringPointStateChanged struct {
	GsrnNumber string `json:"gsrn_number"`
}

type energySupplierRegistered struct {
	GlnNumber string `json:"gln_number"`
}

// Service applies master data events. Every event is applied in its own
// transaction together with the integration events it raises. Replayed events
// are no-ops.
type Service struct {
	points    processing.AccountingPointStore
	suppliers processing.EnergySupplierStore
	publisher processing.EventPublisher
	tx        processing.TxRunner
	logger    *slog.Logger
}

func NewService(points processing.AccountingPointStore, suppliers processing.EnergySupplierStore, publisher processing.EventPublisher, tx processing.TxRunner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{points: points, suppliers: suppliers, publisher: publisher, tx: tx, logger: logger}
}

// Router returns a router with a handler for every supported event type.
func (s *Service) Router() *Router {
	r := NewRouter(s.logger)
	r.Register(EventMeteringPointCreated, consumer.HandlerFunc(s.handleCreated))
	r.Register(EventMeteringPointConnected, s.stateChange(apmodels.PhysicalStateConnected))
	r.Register(EventMeteringPointDisconnected, s.stateChange(apmodels.PhysicalStateDisconnected))
	r.Register(EventMeteringPointClosedDown, s.stateChange(apmodels.PhysicalStateClosedDown))
	r.Register(EventEnergySupplierRegistered, consumer.HandlerFunc(s.handleSupplierRegistered))
	return r
}

func (s *Service) handleCreated(ctx context.Context, msg *consumer.Message) error {
	var payload meteringPointCreated
	if !s.decode(ctx, msg, &payload) {
		return nil
	}
	state := apmodels.PhysicalState(payload.PhysicalState)
	if state == "" {
		state = apmodels.PhysicalStateNew
	}
	return s.CreateAccountingPoint(s.at(ctx, msg), payload.GsrnNumber, apmodels.AccountingPointType(payload.MeteringPointType), state)
}

// CreateAccountingPoint skips GSRN numbers that already exist.
func (s *Service) CreateAccountingPoint(ctx context.Context, gsrn string, pointType apmodels.AccountingPointType, state apmodels.PhysicalState) error {
	number, err := id.ParseGsrnNumber(gsrn)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping metering point with invalid GSRN", "gsrn", gsrn, "error", err)
		return nil
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.points.FindByGsrn(txCtx, number)
		if err == nil {
			s.logger.InfoContext(txCtx, "accounting point already exists", "gsrn", number)
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return fmt.Errorf("load accounting point: %w", err)
		}

		ap, err := apmodels.NewAccountingPoint(number, pointType, state, requestcontext.Now(txCtx))
		if err != nil {
			s.logger.WarnContext(txCtx, "skipping invalid metering point", "gsrn", number, "error", err)
			return nil
		}
		if err := s.points.Save(txCtx, ap); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return nil
			}
			return fmt.Errorf("save accounting point: %w", err)
		}
		if err := s.publisher.Publish(txCtx, ap.PullDomainEvents()...); err != nil {
			return err
		}
		s.logger.InfoContext(txCtx, "accounting point created", "gsrn", number, "type", pointType)
		return nil
	})
}

func (s *Service) stateChange(target apmodels.PhysicalState) consumer.Handler {
	return consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		var payload meteringPointStateChanged
		if !s.decode(ctx, msg, &payload) {
			return nil
		}
		return s.ChangePhysicalState(s.at(ctx, msg), payload.GsrnNumber, target)
	})
}

// ChangePhysicalState skips unknown points and transitions the state model
// does not allow, so a bad event cannot block the partition.
func (s *Service) ChangePhysicalState(ctx context.Context, gsrn string, target apmodels.PhysicalState) error {
	number, err := id.ParseGsrnNumber(gsrn)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping state change with invalid GSRN", "gsrn", gsrn, "error", err)
		return nil
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		ap, err := s.points.FindByGsrn(txCtx, number)
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(txCtx, "state change for unknown accounting point", "gsrn", number, "state", target)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load accounting point: %w", err)
		}
		if err := ap.ChangePhysicalState(target, requestcontext.Now(txCtx)); err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				s.logger.WarnContext(txCtx, "skipping physical state change", "gsrn", number, "error", err)
				return nil
			}
			return err
		}
		events := ap.PullDomainEvents()
		if len(events) == 0 {
			return nil
		}
		if err := s.points.Save(txCtx, ap); err != nil {
			return fmt.Errorf("save accounting point: %w", err)
		}
		if err := s.publisher.Publish(txCtx, events...); err != nil {
			return err
		}
		s.logger.InfoContext(txCtx, "physical state changed", "gsrn", number, "state", target)
		return nil
	})
}

func (s *Service) handleSupplierRegistered(ctx context.Context, msg *consumer.Message) error {
	var payload energySupplierRegistered
	if !s.decode(ctx, msg, &payload) {
		return nil
	}
	return s.RegisterEnergySupplier(ctx, payload.GlnNumber)
}

// RegisterEnergySupplier skips GLN numbers that are already registered.
func (s *Service) RegisterEnergySupplier(ctx context.Context, gln string) error {
	number, err := id.ParseGlnNumber(gln)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping energy supplier with invalid GLN", "gln", gln, "error", err)
		return nil
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.suppliers.FindByGln(txCtx, number); err == nil {
			return nil
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return fmt.Errorf("load energy supplier: %w", err)
		}
		supplier, err := suppliermodels.NewEnergySupplier(number)
		if err != nil {
			return err
		}
		if err := s.suppliers.Add(txCtx, supplier); err != nil && !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return fmt.Errorf("add energy supplier: %w", err)
		}
		s.logger.InfoContext(txCtx, "energy supplier registered", "gln", number)
		return nil
	})
}

func (s *Service) decode(ctx context.Context, msg *consumer.Message, v any) bool {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		s.logger.WarnContext(ctx, "skipping malformed master data event",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return false
	}
	return true
}

// at uses the record timestamp as the request time.
func (s *Service) at(ctx context.Context, msg *consumer.Message) context.Context {
	if msg.Timestamp.IsZero() {
		return ctx
	}
	return requestcontext.WithTime(ctx, msg.Timestamp.UTC())
}
