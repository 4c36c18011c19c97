// Package processingtest wires in-memory stores for business process tests.
package processingtest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apmodels "marketroles/internal/accountingpoint/models"
	apstore "marketroles/internal/accountingpoint/store"
	consumerstore "marketroles/internal/consumer/store"
	suppliermodels "marketroles/internal/energysupplier/models"
	supplierstore "marketroles/internal/energysupplier/store"
	"marketroles/internal/integrationevents"
	"marketroles/internal/internalcommands"
	commandstore "marketroles/internal/internalcommands/store"
	outboxstore "marketroles/internal/outbox/store"
	id "marketroles/pkg/domain"
	"marketroles/pkg/platform/tx"
)

// Test identifiers with valid GS1 check digits.
const (
	DataHubGln   = id.GlnNumber("5790001330583")
	SupplierGln  = id.GlnNumber("5799999933318")
	OtherGln     = id.GlnNumber("5799999933325")
	Gsrn         = id.GsrnNumber("571313100000000010")
	OtherGsrn    = id.GsrnNumber("571313100000000027")
	ConsumerCpr  = "0101801234"
	OtherCpr     = "1212121212"
	ConsumerCvr  = "12345678"
	ConsumerName = "Jens Hansen"
)

type Env struct {
	Points    *apstore.InMemory
	Consumers *consumerstore.InMemory
	Suppliers *supplierstore.InMemory
	Commands  *commandstore.InMemory
	Outbox    *outboxstore.InMemory
	Scheduler *internalcommands.Scheduler
	Publisher *integrationevents.Publisher
	Runner    *tx.MemoryRunner
}

func NewEnv() *Env {
	commands := commandstore.NewInMemory()
	outbox := outboxstore.NewInMemory()
	return &Env{
		Points:    apstore.NewInMemory(),
		Consumers: consumerstore.NewInMemory(),
		Suppliers: supplierstore.NewInMemory(),
		Commands:  commands,
		Outbox:    outbox,
		Scheduler: internalcommands.NewScheduler(commands),
		Publisher: integrationevents.NewPublisher(outbox),
		Runner:    tx.NewMemoryRunner(),
	}
}

func (e *Env) SeedSupplier(t *testing.T, gln id.GlnNumber) *suppliermodels.EnergySupplier {
	t.Helper()
	supplier, err := suppliermodels.NewEnergySupplier(gln)
	require.NoError(t, err)
	require.NoError(t, e.Suppliers.Add(context.Background(), supplier))
	return supplier
}

// SeedAccountingPoint stores a connected consumption point. When supplier is
// not nil it is supplying the point since supplyStart.
func (e *Env) SeedAccountingPoint(t *testing.T, gsrn id.GsrnNumber, supplier *suppliermodels.EnergySupplier, supplyStart, now time.Time) *apmodels.AccountingPoint {
	t.Helper()
	ap, err := apmodels.NewAccountingPoint(gsrn, apmodels.AccountingPointConsumption, apmodels.PhysicalStateConnected, now)
	require.NoError(t, err)
	if supplier != nil {
		processID, err := ap.AcceptConsumerMoveIn(id.NewConsumerID(), supplier.ID, "seed-"+id.TransactionID(gsrn), supplyStart, now, apmodels.EffectiveDatePolicy{AllowedDaysBeforeToday: 3650, AllowedDaysAfterToday: 3650})
		require.NoError(t, err)
		require.NoError(t, ap.EffectuateConsumerMoveIn(processID, now))
	}
	ap.PullDomainEvents()
	require.NoError(t, e.Points.Save(context.Background(), ap))
	return ap
}

// Point reloads the stored aggregate.
func (e *Env) Point(t *testing.T, gsrn id.GsrnNumber) *apmodels.AccountingPoint {
	t.Helper()
	ap, err := e.Points.FindByGsrn(context.Background(), gsrn)
	require.NoError(t, err)
	return ap
}

// QueuedOfType returns the queued commands of one type in enqueue order.
func (e *Env) QueuedOfType(commandType string) []internalcommands.QueuedCommand {
	var out []internalcommands.QueuedCommand
	for _, c := range e.Commands.All() {
		if c.Type == commandType {
			out = append(out, c)
		}
	}
	return out
}

// DecodeCommand unmarshals a queued command payload into T.
func DecodeCommand[T internalcommands.Command](t *testing.T, queued internalcommands.QueuedCommand) T {
	t.Helper()
	var cmd T
	require.NoError(t, json.Unmarshal(queued.Data, &cmd))
	return cmd
}

// OutboxTypes lists outbox entry types in append order.
func (e *Env) OutboxTypes() []string {
	var out []string
	for _, entry := range e.Outbox.All() {
		out = append(out, entry.Type)
	}
	return out
}
