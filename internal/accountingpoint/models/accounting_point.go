package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "marketroles/pkg/domain"
	dErrors "marketroles/pkg/domain-errors"
)

type AccountingPointType string

const (
	AccountingPointConsumption AccountingPointType = "consumption"
	AccountingPointProduction  AccountingPointType = "production"
)

func (t AccountingPointType) IsValid() bool {
	return t == AccountingPointConsumption || t == AccountingPointProduction
}

// PhysicalState mirrors the grid state reported by metering point master data.
//
// Transitions: new → connected, connected ↔ disconnected, any non-terminal
// state → closed_down. Closed down is terminal.
type PhysicalState string

const (
	PhysicalStateNew          PhysicalState = "new"
	PhysicalStateConnected    PhysicalState = "connected"
	PhysicalStateDisconnected PhysicalState = "disconnected"
	PhysicalStateClosedDown   PhysicalState = "closed_down"
)

func (s PhysicalState) IsValid() bool {
	switch s {
	case PhysicalStateNew, PhysicalStateConnected, PhysicalStateDisconnected, PhysicalStateClosedDown:
		return true
	}
	return false
}

func (s PhysicalState) CanTransitionTo(target PhysicalState) bool {
	switch s {
	case PhysicalStateNew:
		return target == PhysicalStateConnected || target == PhysicalStateClosedDown
	case PhysicalStateConnected:
		return target == PhysicalStateDisconnected || target == PhysicalStateClosedDown
	case PhysicalStateDisconnected:
		return target == PhysicalStateConnected || target == PhysicalStateClosedDown
	}
	return false
}

// AccountingPoint is the aggregate root for everything the market roles
// domain knows about a metering point.
//
// Invariants:
//   - at most one pending business process of each type per Danish calendar date
//   - every supplier registration and consumer registration references a business process of the point
//   - at any instant at most one supplier registration supplies the point
//   - a closed down point accepts no new business processes
//   - Version increases by one on every successful save
type AccountingPoint struct {
	ID                    id.AccountingPointID
	GsrnNumber            id.GsrnNumber
	Type                  AccountingPointType
	PhysicalState         PhysicalState
	Version               int
	BusinessProcesses     []*BusinessProcess
	SupplierRegistrations []*SupplierRegistration
	ConsumerRegistrations []*ConsumerRegistration

	events []DomainEvent
}

func NewAccountingPoint(gsrn id.GsrnNumber, pointType AccountingPointType, state PhysicalState, now time.Time) (*AccountingPoint, error) {
	if gsrn == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "gsrn number is required")
	}
	if !pointType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown accounting point type")
	}
	if !state.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown physical state")
	}
	ap := &AccountingPoint{
		ID:            id.NewAccountingPointID(),
		GsrnNumber:    gsrn,
		Type:          pointType,
		PhysicalState: state,
	}
	ap.raise(AccountingPointCreated{
		AccountingPointID: ap.ID,
		GsrnNumber:        gsrn,
		Type:              pointType,
		PhysicalState:     state,
		OccurredAt:        now,
	})
	return ap, nil
}

// Clone returns a deep copy without pending domain events. Stores hand out
// clones so callers never share state with the persisted copy.
func (a *AccountingPoint) Clone() *AccountingPoint {
	c := &AccountingPoint{
		ID:            a.ID,
		GsrnNumber:    a.GsrnNumber,
		Type:          a.Type,
		PhysicalState: a.PhysicalState,
		Version:       a.Version,
	}
	for _, p := range a.BusinessProcesses {
		cp := *p
		c.BusinessProcesses = append(c.BusinessProcesses, &cp)
	}
	for _, r := range a.SupplierRegistrations {
		cr := *r
		cr.StartOfSupplyDate = cloneTime(r.StartOfSupplyDate)
		cr.EndOfSupplyDate = cloneTime(r.EndOfSupplyDate)
		c.SupplierRegistrations = append(c.SupplierRegistrations, &cr)
	}
	for _, r := range a.ConsumerRegistrations {
		cr := *r
		cr.MoveInDate = cloneTime(r.MoveInDate)
		c.ConsumerRegistrations = append(c.ConsumerRegistrations, &cr)
	}
	return c
}

// CurrentSupplier returns the registration supplying the point at t, or nil.
func (a *AccountingPoint) CurrentSupplier(at time.Time) *SupplierRegistration {
	for _, r := range a.SupplierRegistrations {
		if r.SuppliesAt(at) {
			return r
		}
	}
	return nil
}

// CurrentConsumer returns the consumer with the latest move-in on or before t.
func (a *AccountingPoint) CurrentConsumer(at time.Time) *ConsumerRegistration {
	var current *ConsumerRegistration
	for _, r := range a.ConsumerRegistrations {
		if !r.movedInBy(at) {
			continue
		}
		if current == nil || r.MoveInDate.After(*current.MoveInDate) {
			current = r
		}
	}
	return current
}

func (a *AccountingPoint) BusinessProcessByTransaction(transactionID id.TransactionID) *BusinessProcess {
	for _, p := range a.BusinessProcesses {
		if p.TransactionID == transactionID {
			return p
		}
	}
	return nil
}

func (a *AccountingPoint) BusinessProcess(processID id.BusinessProcessID) *BusinessProcess {
	for _, p := range a.BusinessProcesses {
		if p.ID == processID {
			return p
		}
	}
	return nil
}

func (a *AccountingPoint) SupplierRegistrationFor(processID id.BusinessProcessID) *SupplierRegistration {
	for _, r := range a.SupplierRegistrations {
		if r.BusinessProcessID == processID {
			return r
		}
	}
	return nil
}

func (a *AccountingPoint) consumerRegistrationFor(processID id.BusinessProcessID) *ConsumerRegistration {
	for _, r := range a.ConsumerRegistrations {
		if r.BusinessProcessID == processID {
			return r
		}
	}
	return nil
}

// ChangeSupplierAcceptable evaluates every change of supplier rule.
func (a *AccountingPoint) ChangeSupplierAcceptable(supplierID id.EnergySupplierID, effectiveDate, now time.Time) RulesValidationResult {
	current := a.CurrentSupplier(now)
	return Validate(
		CannotBeInStateOfClosedDownRule{State: a.PhysicalState},
		MustHaveEnergySupplierAssociatedRule{CurrentSupplier: current},
		CannotBeCurrentSupplierRule{RequestedSupplier: supplierID, CurrentSupplier: current},
		ChangeOfSupplierRegisteredOnSameDateIsNotAllowedRule{Processes: a.BusinessProcesses, EffectiveDate: effectiveDate},
		MoveInRegisteredOnSameDateIsNotAllowedRule{Processes: a.BusinessProcesses, EffectiveDate: effectiveDate},
		EffectiveDateCannotBeInThePastRule{EffectiveDate: effectiveDate, Now: now},
	)
}

// AcceptChangeOfSupplier registers a pending change of supplier. The new
// supplier takes over when the process is effectuated.
func (a *AccountingPoint) AcceptChangeOfSupplier(supplierID id.EnergySupplierID, transactionID id.TransactionID, effectiveDate, now time.Time) (id.BusinessProcessID, error) {
	if result := a.ChangeSupplierAcceptable(supplierID, effectiveDate, now); !result.Success() {
		return id.BusinessProcessID{}, notAcceptable("change of supplier", result)
	}
	process := newBusinessProcess(transactionID, effectiveDate, ProcessChangeOfSupplier)
	a.BusinessProcesses = append(a.BusinessProcesses, process)
	a.SupplierRegistrations = append(a.SupplierRegistrations, &SupplierRegistration{
		ID:                uuid.New(),
		EnergySupplierID:  supplierID,
		BusinessProcessID: process.ID,
	})
	a.raise(EnergySupplierChangeRegistered{
		AccountingPointID: a.ID,
		GsrnNumber:        a.GsrnNumber,
		BusinessProcessID: process.ID,
		TransactionID:     transactionID,
		EnergySupplierID:  supplierID,
		EffectiveDate:     process.EffectiveDate,
		OccurredAt:        now,
	})
	return process.ID, nil
}

// EffectuateChangeOfSupplier hands supply over to the supplier registered by
// the process.
func (a *AccountingPoint) EffectuateChangeOfSupplier(processID id.BusinessProcessID, now time.Time) error {
	process, err := a.pendingProcess(processID, ProcessChangeOfSupplier)
	if err != nil {
		return err
	}
	if err := process.CanEffectuate(now); err != nil {
		return err
	}
	registration := a.SupplierRegistrationFor(processID)
	if registration == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "business process has no supplier registration")
	}
	previous := a.handOverSupply(registration, process.EffectiveDate)
	process.ApplyEffectuation()
	a.raise(EnergySupplierChanged{
		AccountingPointID:        a.ID,
		GsrnNumber:               a.GsrnNumber,
		BusinessProcessID:        process.ID,
		TransactionID:            process.TransactionID,
		EnergySupplierID:         registration.EnergySupplierID,
		PreviousEnergySupplierID: previous,
		StartOfSupply:            process.EffectiveDate,
		OccurredAt:               now,
	})
	return nil
}

// CancelChangeOfSupplierAcceptable evaluates whether the change of supplier
// started by transactionID may be cancelled by the requesting supplier.
func (a *AccountingPoint) CancelChangeOfSupplierAcceptable(transactionID id.TransactionID, requestingSupplier id.EnergySupplierID, now time.Time) RulesValidationResult {
	process := a.BusinessProcessByTransaction(transactionID)
	if process == nil {
		return failed(CodeUnknownBusinessProcess, "no business process registered for transaction "+transactionID.String())
	}
	if result := Validate(BusinessProcessMustBeChangeOfSupplierRule{Process: process}); !result.Success() {
		return result
	}
	return Validate(
		BusinessProcessMustBePendingRule{Process: process},
		CancellationMustBeRequestedByRegisteredSupplierRule{
			Registration:       a.SupplierRegistrationFor(process.ID),
			RequestingSupplier: requestingSupplier,
		},
		CancellationDeadlineRule{Process: process, Now: now},
	)
}

// CancelChangeOfSupplier cancels a pending change of supplier. The supplier
// registration is kept without a supply period for traceability.
func (a *AccountingPoint) CancelChangeOfSupplier(transactionID id.TransactionID, requestingSupplier id.EnergySupplierID, now time.Time) (id.BusinessProcessID, error) {
	if result := a.CancelChangeOfSupplierAcceptable(transactionID, requestingSupplier, now); !result.Success() {
		return id.BusinessProcessID{}, notAcceptable("cancellation of change of supplier", result)
	}
	process := a.BusinessProcessByTransaction(transactionID)
	if err := process.CanCancel(); err != nil {
		return id.BusinessProcessID{}, err
	}
	process.ApplyCancellation()
	a.raise(ChangeOfSupplierCancelled{
		AccountingPointID: a.ID,
		GsrnNumber:        a.GsrnNumber,
		BusinessProcessID: process.ID,
		TransactionID:     transactionID,
		EnergySupplierID:  requestingSupplier,
		OccurredAt:        now,
	})
	return process.ID, nil
}

// ConsumerMoveInAcceptable evaluates every move-in rule.
func (a *AccountingPoint) ConsumerMoveInAcceptable(consumerID id.ConsumerID, moveInDate, now time.Time, policy EffectiveDatePolicy) RulesValidationResult {
	rules := []BusinessRule{
		CannotBeInStateOfClosedDownRule{State: a.PhysicalState},
		MoveInRegisteredOnSameDateIsNotAllowedRule{Processes: a.BusinessProcesses, EffectiveDate: moveInDate},
		ConsumerMustBeDifferentFromCurrentConsumerRule{Consumer: consumerID, CurrentConsumer: a.CurrentConsumer(moveInDate)},
	}
	rules = append(rules, policy.rules(moveInDate, now)...)
	return Validate(rules...)
}

// AcceptConsumerMoveIn registers a pending move-in together with the energy
// supplier that will supply the new consumer.
func (a *AccountingPoint) AcceptConsumerMoveIn(consumerID id.ConsumerID, supplierID id.EnergySupplierID, transactionID id.TransactionID, moveInDate, now time.Time, policy EffectiveDatePolicy) (id.BusinessProcessID, error) {
	if result := a.ConsumerMoveInAcceptable(consumerID, moveInDate, now, policy); !result.Success() {
		return id.BusinessProcessID{}, notAcceptable("consumer move-in", result)
	}
	process := newBusinessProcess(transactionID, moveInDate, ProcessMoveIn)
	a.BusinessProcesses = append(a.BusinessProcesses, process)
	a.ConsumerRegistrations = append(a.ConsumerRegistrations, &ConsumerRegistration{
		ID:                uuid.New(),
		ConsumerID:        consumerID,
		BusinessProcessID: process.ID,
	})
	a.SupplierRegistrations = append(a.SupplierRegistrations, &SupplierRegistration{
		ID:                uuid.New(),
		EnergySupplierID:  supplierID,
		BusinessProcessID: process.ID,
	})
	a.raise(ConsumerMoveInAccepted{
		AccountingPointID: a.ID,
		GsrnNumber:        a.GsrnNumber,
		BusinessProcessID: process.ID,
		TransactionID:     transactionID,
		ConsumerID:        consumerID,
		EnergySupplierID:  supplierID,
		MoveInDate:        process.EffectiveDate,
		OccurredAt:        now,
	})
	return process.ID, nil
}

// EffectuateConsumerMoveIn moves the consumer in and starts supply by the
// supplier registered with the move-in.
func (a *AccountingPoint) EffectuateConsumerMoveIn(processID id.BusinessProcessID, now time.Time) error {
	process, err := a.pendingProcess(processID, ProcessMoveIn)
	if err != nil {
		return err
	}
	if err := process.CanEffectuate(now); err != nil {
		return err
	}
	consumer := a.consumerRegistrationFor(processID)
	supplier := a.SupplierRegistrationFor(processID)
	if consumer == nil || supplier == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "move-in has no consumer or supplier registration")
	}
	moveIn := process.EffectiveDate
	consumer.MoveInDate = &moveIn
	previous := a.handOverSupply(supplier, moveIn)
	process.ApplyEffectuation()

	a.raise(ConsumerMovedIn{
		AccountingPointID: a.ID,
		GsrnNumber:        a.GsrnNumber,
		BusinessProcessID: process.ID,
		TransactionID:     process.TransactionID,
		ConsumerID:        consumer.ConsumerID,
		MoveInDate:        moveIn,
		OccurredAt:        now,
	})
	a.raise(EnergySupplierChanged{
		AccountingPointID:        a.ID,
		GsrnNumber:               a.GsrnNumber,
		BusinessProcessID:        process.ID,
		TransactionID:            process.TransactionID,
		EnergySupplierID:         supplier.EnergySupplierID,
		PreviousEnergySupplierID: previous,
		StartOfSupply:            moveIn,
		OccurredAt:               now,
	})
	return nil
}

// ChangePhysicalState applies a grid state change reported by master data.
// Reporting the current state again is a no-op.
func (a *AccountingPoint) ChangePhysicalState(target PhysicalState, now time.Time) error {
	if target == a.PhysicalState {
		return nil
	}
	if !a.PhysicalState.CanTransitionTo(target) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"accounting point cannot change physical state from "+string(a.PhysicalState)+" to "+string(target))
	}
	from := a.PhysicalState
	a.PhysicalState = target
	a.raise(PhysicalStateChanged{
		AccountingPointID: a.ID,
		GsrnNumber:        a.GsrnNumber,
		From:              from,
		To:                target,
		OccurredAt:        now,
	})
	return nil
}

// PullDomainEvents returns and clears the events raised since the last pull.
func (a *AccountingPoint) PullDomainEvents() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}

func (a *AccountingPoint) raise(event DomainEvent) {
	a.events = append(a.events, event)
}

func (a *AccountingPoint) pendingProcess(processID id.BusinessProcessID, processType BusinessProcessType) (*BusinessProcess, error) {
	process := a.BusinessProcess(processID)
	if process == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "business process not found")
	}
	if process.Type != processType {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "business process is not a "+string(processType))
	}
	return process, nil
}

// handOverSupply ends the supply that is running at start and begins the
// incoming registration. It returns the outgoing supplier, if any.
func (a *AccountingPoint) handOverSupply(incoming *SupplierRegistration, start time.Time) *id.EnergySupplierID {
	var previous *id.EnergySupplierID
	if outgoing := a.CurrentSupplier(start); outgoing != nil && outgoing != incoming {
		outgoing.endSupply(start)
		supplier := outgoing.EnergySupplierID
		previous = &supplier
	}
	// A later supply already registered caps the incoming one.
	for _, r := range a.SupplierRegistrations {
		if r == incoming || r.StartOfSupplyDate == nil || !r.StartOfSupplyDate.After(start) {
			continue
		}
		if incoming.EndOfSupplyDate == nil || r.StartOfSupplyDate.Before(*incoming.EndOfSupplyDate) {
			incoming.endSupply(*r.StartOfSupplyDate)
		}
	}
	incoming.startSupply(start)
	return previous
}

func notAcceptable(operation string, result RulesValidationResult) error {
	codes := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		codes = append(codes, string(e.Code))
	}
	return dErrors.New(dErrors.CodeInvariantViolation, operation+" is not acceptable: "+strings.Join(codes, ", "))
}
