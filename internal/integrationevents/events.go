// Package integrationevents translates accounting point domain events into
// the versioned JSON contracts consumed by downstream domains.
package integrationevents

import (
	"encoding/json"
	"fmt"
	"time"

	"marketroles/internal/accountingpoint/models"
	id "marketroles/pkg/domain"
)

// SchemaVersion is bumped on breaking changes to any payload below.
const SchemaVersion = 1

// Envelope wraps every integration event on the wire.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

type AccountingPointCreated struct {
	AccountingPointID string `json:"accounting_point_id"`
	GsrnNumber        string `json:"gsrn_number"`
	Type              string `json:"type"`
	PhysicalState     string `json:"physical_state"`
}

type PhysicalStateChanged struct {
	AccountingPointID string `json:"accounting_point_id"`
	GsrnNumber        string `json:"gsrn_number"`
	From              string `json:"from"`
	To                string `json:"to"`
}

type ConsumerMoveInAccepted struct {
	AccountingPointID string    `json:"accounting_point_id"`
	GsrnNumber        string    `json:"gsrn_number"`
	BusinessProcessID string    `json:"business_process_id"`
	TransactionID     string    `json:"transaction_id"`
	ConsumerID        string    `json:"consumer_id"`
	EnergySupplierID  string    `json:"energy_supplier_id"`
	MoveInDate        time.Time `json:"move_in_date"`
}

type ConsumerMovedIn struct {
	AccountingPointID string    `json:"accounting_point_id"`
	GsrnNumber        string    `json:"gsrn_number"`
	BusinessProcessID string    `json:"business_process_id"`
	TransactionID     string    `json:"transaction_id"`
	ConsumerID        string    `json:"consumer_id"`
	MoveInDate        time.Time `json:"move_in_date"`
}

type EnergySupplierChangeRegistered struct {
	AccountingPointID string    `json:"accounting_point_id"`
	GsrnNumber        string    `json:"gsrn_number"`
	BusinessProcessID string    `json:"business_process_id"`
	TransactionID     string    `json:"transaction_id"`
	EnergySupplierID  string    `json:"energy_supplier_id"`
	EffectiveDate     time.Time `json:"effective_date"`
}

type EnergySupplierChanged struct {
	AccountingPointID        string    `json:"accounting_point_id"`
	GsrnNumber               string    `json:"gsrn_number"`
	BusinessProcessID        string    `json:"business_process_id"`
	TransactionID            string    `json:"transaction_id"`
	EnergySupplierID         string    `json:"energy_supplier_id"`
	PreviousEnergySupplierID string    `json:"previous_energy_supplier_id,omitempty"`
	StartOfSupply            time.Time `json:"start_of_supply"`
}

type ChangeOfSupplierCancelled struct {
	AccountingPointID string `json:"accounting_point_id"`
	GsrnNumber        string `json:"gsrn_number"`
	BusinessProcessID string `json:"business_process_id"`
	TransactionID     string `json:"transaction_id"`
	EnergySupplierID  string `json:"energy_supplier_id"`
}

// mapEvent returns the integration payload, the partition key and the time
// the event occurred.
func mapEvent(event models.DomainEvent) (any, id.GsrnNumber, time.Time, error) {
	switch e := event.(type) {
	case models.AccountingPointCreated:
		return AccountingPointCreated{
			AccountingPointID: e.AccountingPointID.String(),
			GsrnNumber:        e.GsrnNumber.String(),
			Type:              string(e.Type),
			PhysicalState:     string(e.PhysicalState),
		}, e.GsrnNumber, e.OccurredAt, nil
	case models.PhysicalStateChanged:
		return PhysicalStateChanged{
			AccountingPointID: e.AccountingPointID.String(),
			GsrnNumber:        e.GsrnNumber.String(),
			From:              string(e.From),
			To:                string(e.To),
		}, e.GsrnNumber, e.OccurredAt, nil
	case models.ConsumerMoveInAccepted:
		return ConsumerMoveInAccepted{
			AccountingPointID: e.AccountingPointID.String(),
			GsrnNumber:        e.GsrnNumber.String(),
			BusinessProcessID: e.BusinessProcessID.String(),
			TransactionID:     e.TransactionID.String(),
			ConsumerID:        e.ConsumerID.String(),
			EnergySupplierID:  e.EnergySupplierID.String(),
			MoveInDate:        e.MoveInDate,
		}, e.GsrnNumber, e.OccurredAt, nil
	case models.ConsumerMovedIn:
		return ConsumerMovedIn{
			AccountingPointID: e.AccountingPointID.String(),
			GsrnNumber:        e.GsrnNumber.String(),
			BusinessProcessID: e.BusinessProcessID.String(),
			TransactionID:     e.TransactionID.String(),
			ConsumerID:        e.ConsumerID.String(),
			MoveInDate:        e.MoveInDate,
		}, e.GsrnNumber, e.OccurredAt, nil
	case models.EnergySupplierChangeRegistered:
		return EnergySupplierChangeRegistered{
			AccountingPointID: e.AccountingPointID.String(),
			GsrnNumber:        e.GsrnNumber.String(),
			BusinessProcessID: e.BusinessProcessID.String(),
			TransactionID:     e.TransactionID.String(),
			EnergySupplierID:  e.EnergySupplierID.String(),
			EffectiveDate:     e.EffectiveDate,
		}, e.GsrnNumber, e.OccurredAt, nil
	case models.EnergySupplierChanged:
		out := EnergySupplierChanged{
			AccountingPointID: e.AccountingPointID.String(),
			GsrnNumber:        e.GsrnNumber.String(),
			BusinessProcessID: e.BusinessProcessID.String(),
			TransactionID:     e.TransactionID.String(),
			EnergySupplierID:  e.EnergySupplierID.String(),
			StartOfSupply:     e.StartOfSupply,
		}
		if e.PreviousEnergySupplierID != nil {
			out.PreviousEnergySupplierID = e.PreviousEnergySupplierID.String()
		}
		return out, e.GsrnNumber, e.OccurredAt, nil
	case models.ChangeOfSupplierCancelled:
		return ChangeOfSupplierCancelled{
			AccountingPointID: e.AccountingPointID.String(),
			GsrnNumber:        e.GsrnNumber.String(),
			BusinessProcessID: e.BusinessProcessID.String(),
			TransactionID:     e.TransactionID.String(),
			EnergySupplierID:  e.EnergySupplierID.String(),
		}, e.GsrnNumber, e.OccurredAt, nil
	default:
		return nil, "", time.Time{}, fmt.Errorf("no integration event for %s", event.EventName())
	}
}
