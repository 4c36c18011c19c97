// Package registry remembers which message and transaction IDs each sender
// has used.
package registry

import (
	"context"
	"sync"

	"marketroles/pkg/platform/tx"
)

const (
	kindMessage     = "message"
	kindTransaction = "transaction"
)

type key struct {
	kind   string
	sender string
	id     string
}

type InMemory struct {
	mu   sync.Mutex
	seen map[key]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{seen: make(map[key]struct{})}
}

func (r *InMemory) TryRegisterMessageID(ctx context.Context, sender, messageID string) (bool, error) {
	return r.try(ctx, key{kind: kindMessage, sender: sender, id: messageID}), nil
}

func (r *InMemory) TryRegisterTransactionID(ctx context.Context, sender, transactionID string) (bool, error) {
	return r.try(ctx, key{kind: kindTransaction, sender: sender, id: transactionID}), nil
}

func (r *InMemory) try(ctx context.Context, k key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[k]; ok {
		return false
	}
	r.seen[k] = struct{}{}
	tx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.seen, k)
	})
	return true
}
