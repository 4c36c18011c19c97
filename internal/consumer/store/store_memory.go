package store

import (
	"context"
	"fmt"
	"sync"

	"marketroles/internal/consumer/models"
	id "marketroles/pkg/domain"
	"marketroles/pkg/platform/sentinel"
	"marketroles/pkg/platform/tx"
)

type identityKey struct {
	kind  id.IdentityKind
	value string
}

type InMemory struct {
	mu         sync.RWMutex
	consumers  map[id.ConsumerID]models.Consumer
	byIdentity map[identityKey]id.ConsumerID
}

func NewInMemory() *InMemory {
	return &InMemory{
		consumers:  make(map[id.ConsumerID]models.Consumer),
		byIdentity: make(map[identityKey]id.ConsumerID),
	}
}

func (s *InMemory) Add(ctx context.Context, consumer *models.Consumer) error {
	if consumer == nil {
		return fmt.Errorf("consumer is required")
	}
	key := identityKey{kind: consumer.Identity.Kind(), value: consumer.Identity.Value()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byIdentity[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.consumers[consumer.ID] = *consumer
	s.byIdentity[key] = consumer.ID
	consumerID := consumer.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.consumers, consumerID)
		delete(s.byIdentity, key)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, consumerID id.ConsumerID) (*models.Consumer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.consumers[consumerID]; ok {
		return &c, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByIdentity(_ context.Context, identity id.ConsumerIdentity) (*models.Consumer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	consumerID, ok := s.byIdentity[identityKey{kind: identity.Kind(), value: identity.Value()}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := s.consumers[consumerID]
	return &c, nil
}
