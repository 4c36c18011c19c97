package models

import (
	"time"

	id "marketroles/pkg/domain"
)

// DomainEvent is raised by the aggregate and handed to the application layer
// through PullDomainEvents.
type DomainEvent interface {
	EventName() string
	AccountingPoint() id.AccountingPointID
}

const (
	EventAccountingPointCreated         = "AccountingPointCreated"
	EventPhysicalStateChanged           = "PhysicalStateChanged"
	EventConsumerMoveInAccepted         = "ConsumerMoveInAccepted"
	EventConsumerMovedIn                = "ConsumerMovedIn"
	EventEnergySupplierChangeRegistered = "EnergySupplierChangeRegistered"
	EventEnergySupplierChanged          = "EnergySupplierChanged"
	EventChangeOfSupplierCancelled      = "ChangeOfSupplierCancelled"
)

type AccountingPointCreated struct {
	AccountingPointID id.AccountingPointID
	GsrnNumber        id.GsrnNumber
	Type              AccountingPointType
	PhysicalState     PhysicalState
	OccurredAt        time.Time
}

type PhysicalStateChanged struct {
	AccountingPointID id.AccountingPointID
	GsrnNumber        id.GsrnNumber
	From              PhysicalState
	To                PhysicalState
	OccurredAt        time.Time
}

type ConsumerMoveInAccepted struct {
	AccountingPointID id.AccountingPointID
	GsrnNumber        id.GsrnNumber
	BusinessProcessID id.BusinessProcessID
	TransactionID     id.TransactionID
	ConsumerID        id.ConsumerID
	EnergySupplierID  id.EnergySupplierID
	MoveInDate        time.Time
	OccurredAt        time.Time
}

type ConsumerMovedIn struct {
	AccountingPointID id.AccountingPointID
	GsrnNumber        id.GsrnNumber
	BusinessProcessID id.BusinessProcessID
	TransactionID     id.TransactionID
	ConsumerID        id.ConsumerID
	MoveInDate        time.Time
	OccurredAt        time.Time
}

type EnergySupplierChangeRegistered struct {
	AccountingPointID id.AccountingPointID
	GsrnNumber        id.GsrnNumber
	BusinessProcessID id.BusinessProcessID
	TransactionID     id.TransactionID
	EnergySupplierID  id.EnergySupplierID
	EffectiveDate     time.Time
	OccurredAt        time.Time
}

type EnergySupplierChanged struct {
	AccountingPointID id.AccountingPointID
	GsrnNumber        id.GsrnNumber
	BusinessProcessID id.BusinessProcessID
	TransactionID     id.TransactionID
	EnergySupplierID  id.EnergySupplierID
	// PreviousEnergySupplierID is nil when the point had no supplier before.
	PreviousEnergySupplierID *id.EnergySupplierID
	StartOfSupply            time.Time
	OccurredAt               time.Time
}

type ChangeOfSupplierCancelled struct {
	AccountingPointID id.AccountingPointID
	GsrnNumber        id.GsrnNumber
	BusinessProcessID id.BusinessProcessID
	TransactionID     id.TransactionID
	EnergySupplierID  id.EnergySupplierID
	OccurredAt        time.Time
}

func (e AccountingPointCreated) EventName() string         { return EventAccountingPointCreated }
func (e PhysicalStateChanged) EventName() string           { return EventPhysicalStateChanged }
func (e ConsumerMoveInAccepted) EventName() string         { return EventConsumerMoveInAccepted }
func (e ConsumerMovedIn) EventName() string                { return EventConsumerMovedIn }
func (e EnergySupplierChangeRegistered) EventName() string { return EventEnergySupplierChangeRegistered }
func (e EnergySupplierChanged) EventName() string          { return EventEnergySupplierChanged }
func (e ChangeOfSupplierCancelled) EventName() string      { return EventChangeOfSupplierCancelled }

func (e AccountingPointCreated) AccountingPoint() id.AccountingPointID { return e.AccountingPointID }
func (e PhysicalStateChanged) AccountingPoint() id.AccountingPointID   { return e.AccountingPointID }
func (e ConsumerMoveInAccepted) AccountingPoint() id.AccountingPointID { return e.AccountingPointID }
func (e ConsumerMovedIn) AccountingPoint() id.AccountingPointID        { return e.AccountingPointID }
func (e EnergySupplierChangeRegistered) AccountingPoint() id.AccountingPointID {
	return e.AccountingPointID
}
func (e EnergySupplierChanged) AccountingPoint() id.AccountingPointID     { return e.AccountingPointID }
func (e ChangeOfSupplierCancelled) AccountingPoint() id.AccountingPointID { return e.AccountingPointID }
