package domain

import (
	"github.com/google/uuid"

	dErrors "marketroles/pkg/domain-errors"
)

// Typed identifiers. Distinct types keep an accounting point ID from being
// passed where a consumer ID is expected.
type (
	AccountingPointID uuid.UUID
	ConsumerID        uuid.UUID
	EnergySupplierID  uuid.UUID
	BusinessProcessID uuid.UUID
)

func parseID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return id, nil
}

func ParseAccountingPointID(s string) (AccountingPointID, error) {
	id, err := parseID("accounting point id", s)
	return AccountingPointID(id), err
}

func ParseConsumerID(s string) (ConsumerID, error) {
	id, err := parseID("consumer id", s)
	return ConsumerID(id), err
}

func ParseEnergySupplierID(s string) (EnergySupplierID, error) {
	id, err := parseID("energy supplier id", s)
	return EnergySupplierID(id), err
}

func ParseBusinessProcessID(s string) (BusinessProcessID, error) {
	id, err := parseID("business process id", s)
	return BusinessProcessID(id), err
}

func NewAccountingPointID() AccountingPointID { return AccountingPointID(uuid.New()) }
func NewConsumerID() ConsumerID               { return ConsumerID(uuid.New()) }
func NewEnergySupplierID() EnergySupplierID   { return EnergySupplierID(uuid.New()) }
func NewBusinessProcessID() BusinessProcessID { return BusinessProcessID(uuid.New()) }

func (id AccountingPointID) String() string { return uuid.UUID(id).String() }
func (id ConsumerID) String() string        { return uuid.UUID(id).String() }
func (id EnergySupplierID) String() string  { return uuid.UUID(id).String() }
func (id BusinessProcessID) String() string { return uuid.UUID(id).String() }

func (id AccountingPointID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ConsumerID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id EnergySupplierID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id BusinessProcessID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps typed IDs readable in JSON payloads.

func (id AccountingPointID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ConsumerID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id EnergySupplierID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id BusinessProcessID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *AccountingPointID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *ConsumerID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *EnergySupplierID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *BusinessProcessID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
