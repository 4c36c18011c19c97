package models

import (
	"time"

	id "marketroles/pkg/domain"
	dErrors "marketroles/pkg/domain-errors"
)

// BusinessProcessType names the market process a transaction started.
type BusinessProcessType string

const (
	ProcessMoveIn           BusinessProcessType = "move_in"
	ProcessChangeOfSupplier BusinessProcessType = "change_of_supplier"
)

// BusinessProcessStatus is the lifecycle state of a business process.
//
// Transitions: pending → completed, pending → cancelled. Completed and
// cancelled are terminal.
type BusinessProcessStatus string

const (
	ProcessPending   BusinessProcessStatus = "pending"
	ProcessCompleted BusinessProcessStatus = "completed"
	ProcessCancelled BusinessProcessStatus = "cancelled"
)

func (s BusinessProcessStatus) CanTransitionTo(target BusinessProcessStatus) bool {
	return s == ProcessPending && (target == ProcessCompleted || target == ProcessCancelled)
}

// BusinessProcess tracks one accepted transaction on an accounting point from
// acceptance until it is effectuated or cancelled.
type BusinessProcess struct {
	ID            id.BusinessProcessID
	TransactionID id.TransactionID
	EffectiveDate time.Time
	Type          BusinessProcessType
	Status        BusinessProcessStatus
}

func newBusinessProcess(transactionID id.TransactionID, effectiveDate time.Time, processType BusinessProcessType) *BusinessProcess {
	return &BusinessProcess{
		ID:            id.NewBusinessProcessID(),
		TransactionID: transactionID,
		EffectiveDate: effectiveDate.UTC(),
		Type:          processType,
		Status:        ProcessPending,
	}
}

func (p *BusinessProcess) IsPending() bool {
	return p.Status == ProcessPending
}

// CanEffectuate checks that the process is pending and its effective date has been reached.
func (p *BusinessProcess) CanEffectuate(now time.Time) error {
	if !p.Status.CanTransitionTo(ProcessCompleted) {
		return dErrors.New(dErrors.CodeInvariantViolation, "business process is not pending")
	}
	if now.Before(p.EffectiveDate) {
		return dErrors.New(dErrors.CodeInvariantViolation, "business process effective date has not been reached")
	}
	return nil
}

func (p *BusinessProcess) ApplyEffectuation() {
	p.Status = ProcessCompleted
}

func (p *BusinessProcess) CanCancel() error {
	if !p.Status.CanTransitionTo(ProcessCancelled) {
		return dErrors.New(dErrors.CodeInvariantViolation, "business process is not pending")
	}
	return nil
}

func (p *BusinessProcess) ApplyCancellation() {
	p.Status = ProcessCancelled
}
