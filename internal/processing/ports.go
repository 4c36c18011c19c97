package processing

import (
	"context"
	"time"

	apmodels "marketroles/internal/accountingpoint/models"
	consumermodels "marketroles/internal/consumer/models"
	suppliermodels "marketroles/internal/energysupplier/models"
	"marketroles/internal/internalcommands"
	id "marketroles/pkg/domain"
)

type AccountingPointStore interface {
	FindByID(ctx context.Context, pointID id.AccountingPointID) (*apmodels.AccountingPoint, error)
	FindByGsrn(ctx context.Context, gsrn id.GsrnNumber) (*apmodels.AccountingPoint, error)
	Save(ctx context.Context, ap *apmodels.AccountingPoint) error
}

type ConsumerStore interface {
	Add(ctx context.Context, consumer *consumermodels.Consumer) error
	FindByID(ctx context.Context, consumerID id.ConsumerID) (*consumermodels.Consumer, error)
	FindByIdentity(ctx context.Context, identity id.ConsumerIdentity) (*consumermodels.Consumer, error)
}

type EnergySupplierStore interface {
	Add(ctx context.Context, supplier *suppliermodels.EnergySupplier) error
	FindByID(ctx context.Context, supplierID id.EnergySupplierID) (*suppliermodels.EnergySupplier, error)
	FindByGln(ctx context.Context, gln id.GlnNumber) (*suppliermodels.EnergySupplier, error)
}

// CommandScheduler queues an internal command for execution at or after at.
// Implementations write through the transaction carried by ctx.
type CommandScheduler interface {
	Enqueue(ctx context.Context, cmd internalcommands.Command, at time.Time) error
}

// EventPublisher records domain events for downstream delivery in the
// transaction carried by ctx.
type EventPublisher interface {
	Publish(ctx context.Context, events ...apmodels.DomainEvent) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
