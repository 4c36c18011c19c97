// Package query builds read views of accounting points for the HTTP API.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	apmodels "marketroles/internal/accountingpoint/models"
	consumermodels "marketroles/internal/consumer/models"
	suppliermodels "marketroles/internal/energysupplier/models"
	id "marketroles/pkg/domain"
	dErrors "marketroles/pkg/domain-errors"
	"marketroles/pkg/platform/sentinel"
	"marketroles/pkg/requestcontext"
)

type PointStore interface {
	FindByGsrn(ctx context.Context, gsrn id.GsrnNumber) (*apmodels.AccountingPoint, error)
}

type ConsumerStore interface {
	FindByID(ctx context.Context, consumerID id.ConsumerID) (*consumermodels.Consumer, error)
}

type SupplierStore interface {
	FindByID(ctx context.Context, supplierID id.EnergySupplierID) (*suppliermodels.EnergySupplier, error)
}

// View is the state of an accounting point at the request time.
type View struct {
	GsrnNumber        string        `json:"gsrn_number"`
	Type              string        `json:"type"`
	PhysicalState     string        `json:"physical_state"`
	CurrentSupplier   *SupplierView `json:"current_supplier,omitempty"`
	CurrentConsumer   *ConsumerView `json:"current_consumer,omitempty"`
	BusinessProcesses []ProcessView `json:"business_processes"`
	Version           int           `json:"version"`
}

type SupplierView struct {
	GlnNumber         string     `json:"gln_number"`
	StartOfSupplyDate *time.Time `json:"start_of_supply_date,omitempty"`
}

// ConsumerView omits the CPR/CVR value.
type ConsumerView struct {
	Name         string     `json:"name"`
	IdentityKind string     `json:"identity_kind"`
	MoveInDate   *time.Time `json:"move_in_date,omitempty"`
}

type ProcessView struct {
	TransactionID string    `json:"transaction_id"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	EffectiveDate time.Time `json:"effective_date"`
}

type Service struct {
	points    PointStore
	consumers ConsumerStore
	suppliers SupplierStore
}

func New(points PointStore, consumers ConsumerStore, suppliers SupplierStore) *Service {
	return &Service{points: points, consumers: consumers, suppliers: suppliers}
}

// AccountingPoint returns the view of the point identified by gsrn.
func (s *Service) AccountingPoint(ctx context.Context, gsrn string) (*View, error) {
	number, err := id.ParseGsrnNumber(gsrn)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid GSRN number")
	}
	ap, err := s.points.FindByGsrn(ctx, number)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "accounting point not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load accounting point: %w", err)
	}

	now := requestcontext.Now(ctx)
	view := &View{
		GsrnNumber:        ap.GsrnNumber.String(),
		Type:              string(ap.Type),
		PhysicalState:     string(ap.PhysicalState),
		BusinessProcesses: make([]ProcessView, 0, len(ap.BusinessProcesses)),
		Version:           ap.Version,
	}
	for _, p := range ap.BusinessProcesses {
		view.BusinessProcesses = append(view.BusinessProcesses, ProcessView{
			TransactionID: string(p.TransactionID),
			Type:          string(p.Type),
			Status:        string(p.Status),
			EffectiveDate: p.EffectiveDate,
		})
	}

	if reg := ap.CurrentSupplier(now); reg != nil {
		supplier, err := s.suppliers.FindByID(ctx, reg.EnergySupplierID)
		if err != nil {
			return nil, fmt.Errorf("load current supplier: %w", err)
		}
		view.CurrentSupplier = &SupplierView{GlnNumber: supplier.GlnNumber.String(), StartOfSupplyDate: reg.StartOfSupplyDate}
	}
	if reg := ap.CurrentConsumer(now); reg != nil {
		consumer, err := s.consumers.FindByID(ctx, reg.ConsumerID)
		if err != nil {
			return nil, fmt.Errorf("load current consumer: %w", err)
		}
		view.CurrentConsumer = &ConsumerView{
			Name:         consumer.Name,
			IdentityKind: string(consumer.Identity.Kind()),
			MoveInDate:   reg.MoveInDate,
		}
	}
	return view, nil
}
