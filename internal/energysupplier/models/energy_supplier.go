package models

import (
	id "marketroles/pkg/domain"
	dErrors "marketroles/pkg/domain-errors"
)

// EnergySupplier is a balance supplier market actor known by its GLN.
type EnergySupplier struct {
	ID        id.EnergySupplierID
	GlnNumber id.GlnNumber
}

func NewEnergySupplier(gln id.GlnNumber) (*EnergySupplier, error) {
	if gln == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "energy supplier gln number is required")
	}
	return &EnergySupplier{ID: id.NewEnergySupplierID(), GlnNumber: gln}, nil
}
