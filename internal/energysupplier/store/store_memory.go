package store

import (
	"context"
	"fmt"
	"sync"

	"marketroles/internal/energysupplier/models"
	id "marketroles/pkg/domain"
	"marketroles/pkg/platform/sentinel"
	"marketroles/pkg/platform/tx"
)

type InMemory struct {
	mu        sync.RWMutex
	suppliers map[id.EnergySupplierID]models.EnergySupplier
	byGln     map[id.GlnNumber]id.EnergySupplierID
}

func NewInMemory() *InMemory {
	return &InMemory{
		suppliers: make(map[id.EnergySupplierID]models.EnergySupplier),
		byGln:     make(map[id.GlnNumber]id.EnergySupplierID),
	}
}

func (s *InMemory) Add(ctx context.Context, supplier *models.EnergySupplier) error {
	if supplier == nil {
		return fmt.Errorf("energy supplier is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byGln[supplier.GlnNumber]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.suppliers[supplier.ID] = *supplier
	s.byGln[supplier.GlnNumber] = supplier.ID
	supplierID, gln := supplier.ID, supplier.GlnNumber
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.suppliers, supplierID)
		delete(s.byGln, gln)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, supplierID id.EnergySupplierID) (*models.EnergySupplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if es, ok := s.suppliers[supplierID]; ok {
		return &es, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByGln(_ context.Context, gln id.GlnNumber) (*models.EnergySupplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	supplierID, ok := s.byGln[gln]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	es := s.suppliers[supplierID]
	return &es, nil
}
