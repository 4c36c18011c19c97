// Package notifications sends the market documents that follow an accepted
// business process: the notice to the supplier losing an accounting point and
// the characteristics of the point to the supplier taking it over.
package notifications

import (
	"context"
	"fmt"
	"log/slog"

	apmodels "marketroles/internal/accountingpoint/models"
	"marketroles/internal/internalcommands"
	"marketroles/internal/messaging/cim"
	"marketroles/internal/processing"
)

// Dispatcher queues outbound market documents.
type Dispatcher interface {
	NotifyCurrentSupplier(ctx context.Context, n cim.Notification) error
	ForwardCharacteristics(ctx context.Context, c cim.Characteristics) error
}

var connectionStates = map[apmodels.PhysicalState]string{
	apmodels.PhysicalStateNew:          "D03",
	apmodels.PhysicalStateConnected:    "E22",
	apmodels.PhysicalStateDisconnected: "E23",
	apmodels.PhysicalStateClosedDown:   "D02",
}

var meteringPointTypes = map[apmodels.AccountingPointType]string{
	apmodels.AccountingPointConsumption: "E17",
	apmodels.AccountingPointProduction:  "E18",
}

var processTypes = map[apmodels.BusinessProcessType]string{
	apmodels.ProcessMoveIn:           cim.ProcessTypeMoveIn,
	apmodels.ProcessChangeOfSupplier: cim.ProcessTypeChangeOfSupplier,
}

type Service struct {
	points     processing.AccountingPointStore
	suppliers  processing.EnergySupplierStore
	dispatcher Dispatcher
	logger     *slog.Logger
}

func New(points processing.AccountingPointStore, suppliers processing.EnergySupplierStore, dispatcher Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{points: points, suppliers: suppliers, dispatcher: dispatcher, logger: logger}
}

// Register binds both handlers on the command registry.
func (s *Service) Register(registry *internalcommands.Registry) {
	internalcommands.Register(registry, s.NotifyCurrentSupplier)
	internalcommands.Register(registry, s.ForwardMeteringPointDetails)
}

// NotifyCurrentSupplier is skipped when the change of supplier was cancelled
// before the command ran.
func (s *Service) NotifyCurrentSupplier(ctx context.Context, cmd internalcommands.NotifyCurrentSupplier) error {
	ap, err := s.points.FindByID(ctx, cmd.AccountingPointID)
	if err != nil {
		return fmt.Errorf("load accounting point %s: %w", cmd.AccountingPointID, err)
	}
	process := ap.BusinessProcess(cmd.BusinessProcessID)
	if process == nil {
		return fmt.Errorf("business process %s not found on %s", cmd.BusinessProcessID, ap.GsrnNumber)
	}
	if process.Status == apmodels.ProcessCancelled {
		s.logger.InfoContext(ctx, "change of supplier cancelled, current supplier not notified",
			"gsrn", ap.GsrnNumber, "transaction_id", cmd.TransactionID)
		return nil
	}
	supplier, err := s.suppliers.FindByID(ctx, cmd.EnergySupplierID)
	if err != nil {
		return fmt.Errorf("load energy supplier %s: %w", cmd.EnergySupplierID, err)
	}

	return s.dispatcher.NotifyCurrentSupplier(ctx, cim.Notification{
		ProcessType:           processTypes[process.Type],
		Receiver:              supplier.GlnNumber.String(),
		OriginalTransactionID: string(cmd.TransactionID),
		GsrnNumber:            ap.GsrnNumber.String(),
		EffectiveDate:         cmd.EffectiveDate,
	})
}

func (s *Service) ForwardMeteringPointDetails(ctx context.Context, cmd internalcommands.ForwardMeteringPointDetails) error {
	ap, err := s.points.FindByID(ctx, cmd.AccountingPointID)
	if err != nil {
		return fmt.Errorf("load accounting point %s: %w", cmd.AccountingPointID, err)
	}
	process := ap.BusinessProcess(cmd.BusinessProcessID)
	if process == nil {
		return fmt.Errorf("business process %s not found on %s", cmd.BusinessProcessID, ap.GsrnNumber)
	}
	supplier, err := s.suppliers.FindByID(ctx, cmd.EnergySupplierID)
	if err != nil {
		return fmt.Errorf("load energy supplier %s: %w", cmd.EnergySupplierID, err)
	}

	supplyStart := process.EffectiveDate
	if reg := ap.SupplierRegistrationFor(process.ID); reg != nil && reg.StartOfSupplyDate != nil {
		supplyStart = *reg.StartOfSupplyDate
	}
	return s.dispatcher.ForwardCharacteristics(ctx, cim.Characteristics{
		ProcessType:           processTypes[process.Type],
		Receiver:              supplier.GlnNumber.String(),
		OriginalTransactionID: string(cmd.TransactionID),
		GsrnNumber:            ap.GsrnNumber.String(),
		MeteringPointType:     meteringPointTypes[ap.Type],
		ConnectionState:       connectionStates[ap.PhysicalState],
		EnergySupplierGln:     supplier.GlnNumber.String(),
		SupplyStart:           supplyStart,
	})
}
