//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer backs the identifier registry in integration tests.
type RedisContainer struct {
	Client *redis.Client
}

// NewRedisContainer starts Redis. The container is shared through Manager and
// left to Ryuk for cleanup.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "start redis container")
	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err, "redis connection string")
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err, "parse redis url")

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err(), "ping redis")
	return &RedisContainer{Client: client}
}

// DeleteKeys removes every key matching pattern so suites sharing the
// container start from a clean registry.
func (r *RedisContainer) DeleteKeys(ctx context.Context, pattern string) error {
	iter := r.Client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := r.Client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
