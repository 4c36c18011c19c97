package store

import (
	"context"
	"fmt"
	"sync"

	"marketroles/internal/accountingpoint/models"
	id "marketroles/pkg/domain"
	"marketroles/pkg/platform/sentinel"
	"marketroles/pkg/platform/tx"
)

// InMemory keeps accounting points in a map and hands out clones so callers
// mutate their own copy until Save.
type InMemory struct {
	mu     sync.RWMutex
	points map[id.AccountingPointID]*models.AccountingPoint
	byGsrn map[id.GsrnNumber]id.AccountingPointID
}

func NewInMemory() *InMemory {
	return &InMemory{
		points: make(map[id.AccountingPointID]*models.AccountingPoint),
		byGsrn: make(map[id.GsrnNumber]id.AccountingPointID),
	}
}

func (s *InMemory) FindByID(_ context.Context, pointID id.AccountingPointID) (*models.AccountingPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ap, ok := s.points[pointID]; ok {
		return ap.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByGsrn(_ context.Context, gsrn id.GsrnNumber) (*models.AccountingPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pointID, ok := s.byGsrn[gsrn]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.points[pointID].Clone(), nil
}

// Save inserts a point with Version 0 and otherwise updates it when the stored
// version still matches. On success ap.Version is advanced. A failed unit of
// work restores the previous state.
func (s *InMemory) Save(ctx context.Context, ap *models.AccountingPoint) error {
	if ap == nil {
		return fmt.Errorf("accounting point is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.points[ap.ID]
	switch {
	case !ok && ap.Version != 0:
		return sentinel.ErrNotFound
	case !ok:
		if _, taken := s.byGsrn[ap.GsrnNumber]; taken {
			return sentinel.ErrAlreadyUsed
		}
	case existing.Version != ap.Version:
		return sentinel.ErrConflict
	}

	ap.Version++
	s.points[ap.ID] = ap.Clone()
	s.byGsrn[ap.GsrnNumber] = ap.ID
	pointID, gsrn := ap.ID, ap.GsrnNumber
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ok {
			s.points[pointID] = existing
			return
		}
		delete(s.points, pointID)
		delete(s.byGsrn, gsrn)
	})
	return nil
}
