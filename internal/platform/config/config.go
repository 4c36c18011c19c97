// Package config loads the service configuration from an optional YAML file
// and MARKETROLES_* environment variables. Environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"marketroles/internal/platform/kafka"
	"marketroles/internal/platform/postgres"
	"marketroles/internal/platform/redis"
	platformstrings "marketroles/pkg/platform/strings"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	RegistryMemory   = "memory"
	RegistryPostgres = "postgres"
	RegistryRedis    = "redis"

	// EnvConfigFile points at the YAML file.
	EnvConfigFile = "MARKETROLES_CONFIG"
)

type Config struct {
	Server   Server          `yaml:"server"`
	Log      Log             `yaml:"log"`
	Storage  string          `yaml:"storage"`
	Postgres postgres.Config `yaml:"postgres"`
	Redis    redis.Config    `yaml:"redis"`
	Kafka    Kafka           `yaml:"kafka"`
	Auth     Auth            `yaml:"auth"`
	Market   Market          `yaml:"market"`
	Commands Commands        `yaml:"commands"`
	Outbox   Outbox          `yaml:"outbox"`
	Registry Registry        `yaml:"registry"`
}

type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Kafka struct {
	kafka.Config `yaml:",inline"`
	Topics       Topics `yaml:"topics"`
}

type Topics struct {
	IntegrationEvents string `yaml:"integration_events"`
	MarketDocuments   string `yaml:"market_documents"`
	MasterData        string `yaml:"master_data"`
}

type Auth struct {
	SigningKey string        `yaml:"signing_key"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
}

type Market struct {
	DataHubGln string `yaml:"datahub_gln"`

	// Move-in dates are accepted from this many days before today up to
	// MoveInDaysAfter days after.
	MoveInDaysBefore int `yaml:"move_in_days_before"`
	MoveInDaysAfter  int `yaml:"move_in_days_after"`
	ConflictRetries  int `yaml:"conflict_retries"`
}

type Commands struct {
	Interval     time.Duration `yaml:"interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

type Outbox struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

type Registry struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

// Default is usable for local development: in-memory storage, no Kafka and a
// development signing key.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    4 << 20,
		},
		Log:     Log{Level: "info", Format: "json"},
		Storage: StorageMemory,
		Postgres: postgres.Config{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: redis.Config{
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			Config: kafka.Config{
				ClientID:          "marketroles",
				ConsumerGroup:     "marketroles-masterdata",
				Partitions:        3,
				ReplicationFactor: 1,
			},
			Topics: Topics{
				IntegrationEvents: "marketroles.integration-events",
				MarketDocuments:   "marketroles.market-documents",
				MasterData:        "masterdata.events",
			},
		},
		Auth: Auth{
			SigningKey: "dev-secret-key-change-in-production",
			Issuer:     "marketroles",
			Audience:   "marketroles",
			TokenTTL:   time.Hour,
		},
		Market: Market{
			DataHubGln:       "5790001330583",
			MoveInDaysBefore: 5,
			MoveInDaysAfter:  60,
			ConflictRetries:  2,
		},
		Commands: Commands{
			Interval:     5 * time.Second,
			BatchSize:    50,
			MaxAttempts:  5,
			RetryBackoff: 30 * time.Second,
		},
		Outbox: Outbox{
			Interval:  2 * time.Second,
			BatchSize: 100,
		},
		Registry: Registry{Backend: RegistryMemory},
	}
}

// Load reads the file named by MARKETROLES_CONFIG, if set, and applies
// environment overrides.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvConfigFile))
}

// LoadFile reads path on top of the defaults. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv("MARKETROLES_" + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv("MARKETROLES_" + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("MARKETROLES_%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv("MARKETROLES_" + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("MARKETROLES_%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("STORAGE", &c.Storage)
	str("POSTGRES_DSN", &c.Postgres.DSN)
	str("REDIS_URL", &c.Redis.URL)
	if v, ok := os.LookupEnv("MARKETROLES_KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = platformstrings.SplitList(v)
	}
	str("KAFKA_CONSUMER_GROUP", &c.Kafka.ConsumerGroup)
	str("KAFKA_TOPIC_INTEGRATION_EVENTS", &c.Kafka.Topics.IntegrationEvents)
	str("KAFKA_TOPIC_MARKET_DOCUMENTS", &c.Kafka.Topics.MarketDocuments)
	str("KAFKA_TOPIC_MASTER_DATA", &c.Kafka.Topics.MasterData)
	str("JWT_SIGNING_KEY", &c.Auth.SigningKey)
	str("JWT_ISSUER", &c.Auth.Issuer)
	str("JWT_AUDIENCE", &c.Auth.Audience)
	str("DATAHUB_GLN", &c.Market.DataHubGln)
	num("MOVE_IN_DAYS_BEFORE", &c.Market.MoveInDaysBefore)
	num("MOVE_IN_DAYS_AFTER", &c.Market.MoveInDaysAfter)
	dur("COMMANDS_INTERVAL", &c.Commands.Interval)
	num("COMMANDS_MAX_ATTEMPTS", &c.Commands.MaxAttempts)
	dur("OUTBOX_INTERVAL", &c.Outbox.Interval)
	str("REGISTRY_BACKEND", &c.Registry.Backend)
	dur("REGISTRY_TTL", &c.Registry.TTL)
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres storage requires a DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}
	switch c.Registry.Backend {
	case RegistryMemory:
	case RegistryPostgres:
		if c.Storage != StoragePostgres {
			errs = append(errs, errors.New("postgres registry requires postgres storage"))
		}
	case RegistryRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis registry requires a redis URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown registry backend %q", c.Registry.Backend))
	}
	if c.Auth.SigningKey == "" {
		errs = append(errs, errors.New("auth signing key is required"))
	}
	if c.Market.DataHubGln == "" {
		errs = append(errs, errors.New("DataHub GLN is required"))
	}
	return errors.Join(errs...)
}
