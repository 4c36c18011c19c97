package models

import (
	"time"

	"github.com/google/uuid"

	id "marketroles/pkg/domain"
)

// SupplierRegistration binds an energy supplier to the accounting point for a
// supply period. Start is set when the owning process is effectuated; End when
// a later supplier takes over.
type SupplierRegistration struct {
	ID                uuid.UUID
	EnergySupplierID  id.EnergySupplierID
	BusinessProcessID id.BusinessProcessID
	StartOfSupplyDate *time.Time
	EndOfSupplyDate   *time.Time
}

// SuppliesAt reports whether the supplier is responsible for the point at t.
func (r *SupplierRegistration) SuppliesAt(t time.Time) bool {
	if r.StartOfSupplyDate == nil || t.Before(*r.StartOfSupplyDate) {
		return false
	}
	return r.EndOfSupplyDate == nil || t.Before(*r.EndOfSupplyDate)
}

func (r *SupplierRegistration) startSupply(at time.Time) {
	start := at
	r.StartOfSupplyDate = &start
}

func (r *SupplierRegistration) endSupply(at time.Time) {
	end := at
	r.EndOfSupplyDate = &end
}

// ConsumerRegistration binds a consumer to the accounting point from the
// move-in date onwards. The latest effectuated registration is the current one.
type ConsumerRegistration struct {
	ID                uuid.UUID
	ConsumerID        id.ConsumerID
	BusinessProcessID id.BusinessProcessID
	MoveInDate        *time.Time
}

func (r *ConsumerRegistration) movedInBy(t time.Time) bool {
	return r.MoveInDate != nil && !t.Before(*r.MoveInDate)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
