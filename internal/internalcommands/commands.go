// Package internalcommands schedules follow-up work of the business processes
// and executes it once it is due. Commands are written in the same
// transaction as the state change that caused them.
package internalcommands

import (
	"time"

	"github.com/google/uuid"

	id "marketroles/pkg/domain"
)

// Command is a serializable instruction. CommandType is the stable name used
// to route a queued command to its handler.
type Command interface {
	CommandType() string
}

const (
	TypeEffectuateConsumerMoveIn    = "EffectuateConsumerMoveIn"
	TypeEffectuateChangeOfSupplier  = "EffectuateChangeOfSupplier"
	TypeNotifyCurrentSupplier       = "NotifyCurrentSupplier"
	TypeForwardMeteringPointDetails = "ForwardMeteringPointDetails"
)

type EffectuateConsumerMoveIn struct {
	AccountingPointID id.AccountingPointID `json:"accounting_point_id"`
	BusinessProcessID id.BusinessProcessID `json:"business_process_id"`
	TransactionID     id.TransactionID     `json:"transaction_id"`
}

type EffectuateChangeOfSupplier struct {
	AccountingPointID id.AccountingPointID `json:"accounting_point_id"`
	BusinessProcessID id.BusinessProcessID `json:"business_process_id"`
	TransactionID     id.TransactionID     `json:"transaction_id"`
}

// NotifyCurrentSupplier tells the supplier losing the accounting point that a
// change of supplier has been registered.
type NotifyCurrentSupplier struct {
	AccountingPointID id.AccountingPointID `json:"accounting_point_id"`
	BusinessProcessID id.BusinessProcessID `json:"business_process_id"`
	TransactionID     id.TransactionID     `json:"transaction_id"`
	EnergySupplierID  id.EnergySupplierID  `json:"energy_supplier_id"`
	EffectiveDate     time.Time            `json:"effective_date"`
}

// ForwardMeteringPointDetails sends the accounting point characteristics to
// the supplier that has just taken over supply.
type ForwardMeteringPointDetails struct {
	AccountingPointID id.AccountingPointID `json:"accounting_point_id"`
	BusinessProcessID id.BusinessProcessID `json:"business_process_id"`
	TransactionID     id.TransactionID     `json:"transaction_id"`
	EnergySupplierID  id.EnergySupplierID  `json:"energy_supplier_id"`
}

func (EffectuateConsumerMoveIn) CommandType() string    { return TypeEffectuateConsumerMoveIn }
func (EffectuateChangeOfSupplier) CommandType() string  { return TypeEffectuateChangeOfSupplier }
func (NotifyCurrentSupplier) CommandType() string       { return TypeNotifyCurrentSupplier }
func (ForwardMeteringPointDetails) CommandType() string { return TypeForwardMeteringPointDetails }

// QueuedCommand is a command as stored in the queue.
type QueuedCommand struct {
	ID          uuid.UUID
	Type        string
	Data        []byte
	ScheduledAt time.Time
	CreatedAt   time.Time
	ProcessedAt *time.Time
	// FailedAt is set when the command was parked after its last attempt.
	FailedAt  *time.Time
	Attempts  int
	LastError string
}

// IsDue reports whether the command should be picked up at now.
func (c *QueuedCommand) IsDue(now time.Time) bool {
	return c.ProcessedAt == nil && c.FailedAt == nil && !c.ScheduledAt.After(now)
}
