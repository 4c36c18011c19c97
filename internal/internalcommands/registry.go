package internalcommands

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type handlerFunc func(ctx context.Context, data []byte) error

// Registry maps command type names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]handlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]handlerFunc)}
}

// Register binds the handler for T. The zero value of T supplies the type name.
// Registering the same type twice replaces the earlier handler.
func Register[T Command](r *Registry, handler func(ctx context.Context, cmd T) error) {
	var zero T
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[zero.CommandType()] = func(ctx context.Context, data []byte) error {
		var cmd T
		if err := json.Unmarshal(data, &cmd); err != nil {
			return fmt.Errorf("decode %s: %w", zero.CommandType(), err)
		}
		return handler(ctx, cmd)
	}
}

func (r *Registry) lookup(commandType string) (handlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[commandType]
	return h, ok
}

// Types lists the registered command types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
