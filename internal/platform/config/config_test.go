package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "5790001330583", cfg.Market.DataHubGln)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketroles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
storage: postgres
postgres:
  dsn: postgres://file
kafka:
  brokers: ["kafka-1:9092"]
  topics:
    master_data: md
commands:
  interval: 1m
`), 0o600))

	t.Setenv("MARKETROLES_POSTGRES_DSN", "postgres://env")
	t.Setenv("MARKETROLES_KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://env", cfg.Postgres.DSN)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "md", cfg.Kafka.Topics.MasterData)
	assert.Equal(t, "marketroles.integration-events", cfg.Kafka.Topics.IntegrationEvents)
	assert.Equal(t, time.Minute, cfg.Commands.Interval)
	assert.Equal(t, 50, cfg.Commands.BatchSize)
}

func TestInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "postgres without dsn", env: map[string]string{"MARKETROLES_STORAGE": "postgres"}, want: "requires a DSN"},
		{name: "unknown storage", env: map[string]string{"MARKETROLES_STORAGE": "mongo"}, want: "unknown storage"},
		{name: "redis registry without url", env: map[string]string{"MARKETROLES_REGISTRY_BACKEND": "redis"}, want: "redis URL"},
		{name: "postgres registry on memory storage", env: map[string]string{"MARKETROLES_REGISTRY_BACKEND": "postgres"}, want: "requires postgres storage"},
		{name: "bad duration", env: map[string]string{"MARKETROLES_COMMANDS_INTERVAL": "soon"}, want: "MARKETROLES_COMMANDS_INTERVAL"},
		{name: "bad number", env: map[string]string{"MARKETROLES_MOVE_IN_DAYS_AFTER": "many"}, want: "MARKETROLES_MOVE_IN_DAYS_AFTER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFile("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
