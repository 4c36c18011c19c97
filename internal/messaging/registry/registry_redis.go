package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"marketroles/pkg/platform/tx"
)

const keyPrefix = "marketroles:ids:"

// RedisRegistry uses SETNX so concurrent instances agree on the first
// registration. A zero TTL keeps IDs forever. Keys set inside a unit of work
// are deleted again when it rolls back.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOption func(*RedisRegistry)

// WithTTL expires registrations after ttl.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisRegistry) { r.ttl = ttl }
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisRegistry {
	r := &RedisRegistry{client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRegistry) TryRegisterMessageID(ctx context.Context, sender, messageID string) (bool, error) {
	return r.try(ctx, kindMessage, sender, messageID)
}

func (r *RedisRegistry) TryRegisterTransactionID(ctx context.Context, sender, transactionID string) (bool, error) {
	return r.try(ctx, kindTransaction, sender, transactionID)
}

func (r *RedisRegistry) try(ctx context.Context, kind, sender, identifier string) (bool, error) {
	key := keyPrefix + kind + ":" + sender + ":" + identifier
	ok, err := r.client.SetNX(ctx, key, "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("register %s id: %w", kind, err)
	}
	if ok {
		tx.OnRollback(ctx, func() { r.release(context.WithoutCancel(ctx), key) })
	}
	return ok, nil
}

func (r *RedisRegistry) release(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		slog.WarnContext(ctx, "release identifier after rollback", "key", key, "error", err)
	}
}
