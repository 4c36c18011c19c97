package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketroles/internal/outbox"
	"marketroles/pkg/platform/sentinel"
	"marketroles/pkg/platform/tx"
)

type InMemory struct {
	mu      sync.Mutex
	entries []*outbox.Entry
	byID    map[uuid.UUID]*outbox.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[uuid.UUID]*outbox.Entry)}
}

func (s *InMemory) Append(ctx context.Context, entry *outbox.Entry) error {
	if entry == nil {
		return fmt.Errorf("outbox entry is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[entry.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	e := *entry
	s.entries = append(s.entries, &e)
	s.byID[e.ID] = &e
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byID, e.ID)
		s.entries = slices.DeleteFunc(s.entries, func(x *outbox.Entry) bool { return x == &e })
	})
	return nil
}

// FetchPending returns unprocessed entries in append order.
func (s *InMemory) FetchPending(_ context.Context, limit int) ([]*outbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make([]*outbox.Entry, 0)
	for _, e := range s.entries {
		if e.ProcessedAt == nil {
			c := *e
			pending = append(pending, &c)
		}
	}
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *InMemory) MarkProcessed(ctx context.Context, entryID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[entryID]
	if !ok {
		return sentinel.ErrNotFound
	}
	previous := *e
	processed := at
	e.ProcessedAt = &processed
	e.Attempts++
	tx.OnRollback(ctx, func() { s.restore(e, previous) })
	return nil
}

func (s *InMemory) MarkFailed(ctx context.Context, entryID uuid.UUID, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[entryID]
	if !ok {
		return sentinel.ErrNotFound
	}
	previous := *e
	e.Attempts++
	e.LastError = lastError
	tx.OnRollback(ctx, func() { s.restore(e, previous) })
	return nil
}

func (s *InMemory) restore(e *outbox.Entry, previous outbox.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*e = previous
}

// All returns a snapshot of every entry in append order.
func (s *InMemory) All() []outbox.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outbox.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out
}
