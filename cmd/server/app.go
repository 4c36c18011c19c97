package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	apmodels "marketroles/internal/accountingpoint/models"
	"marketroles/internal/accountingpoint/query"
	apstore "marketroles/internal/accountingpoint/store"
	cosservice "marketroles/internal/changeofsupplier/service"
	consumerstore "marketroles/internal/consumer/store"
	supplierstore "marketroles/internal/energysupplier/store"
	"marketroles/internal/integrationevents"
	"marketroles/internal/internalcommands"
	commandmetrics "marketroles/internal/internalcommands/metrics"
	commandstore "marketroles/internal/internalcommands/store"
	"marketroles/internal/masterdata"
	"marketroles/internal/messaging/cim"
	"marketroles/internal/messaging/handler"
	"marketroles/internal/messaging/ingestion"
	messagingmetrics "marketroles/internal/messaging/metrics"
	"marketroles/internal/messaging/outbound"
	"marketroles/internal/messaging/registry"
	moveinservice "marketroles/internal/movein/service"
	"marketroles/internal/notifications"
	"marketroles/internal/outbox"
	outboxmetrics "marketroles/internal/outbox/metrics"
	"marketroles/internal/outbox/relay"
	outboxstore "marketroles/internal/outbox/store"
	"marketroles/internal/platform/config"
	"marketroles/internal/platform/kafka/producer"
	platformmetrics "marketroles/internal/platform/metrics"
	"marketroles/internal/platform/postgres"
	"marketroles/internal/platform/redis"
	"marketroles/internal/processing"
	processingmetrics "marketroles/internal/processing/metrics"
	id "marketroles/pkg/domain"
	"marketroles/pkg/platform/tx"
)

type stores struct {
	points    processing.AccountingPointStore
	consumers processing.ConsumerStore
	suppliers processing.EnergySupplierStore
	commands  internalcommands.Store
	outbox    outbox.Store
	runner    tx.Runner
}

// app holds every wired component. Only the parts a command needs are
// started; constructing the rest is cheap.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  *redis.Client

	stores
	registry      ingestion.IdentifierRegistry
	httpMetrics   *platformmetrics.Metrics
	scheduler     *internalcommands.Scheduler
	handlers      *internalcommands.Registry
	processor     *internalcommands.Processor
	moveIn        *moveinservice.Service
	changeSupply  *cosservice.Service
	dispatcher    *outbound.Dispatcher
	ingestion     *ingestion.Service
	messages      *handler.Handler
	masterData    *masterdata.Service
	notifications *notifications.Service
	outboxMetrics *outboxmetrics.Metrics
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	dataHubGln, err := id.ParseGlnNumber(cfg.Market.DataHubGln)
	if err != nil {
		return nil, fmt.Errorf("datahub gln: %w", err)
	}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openRegistry(ctx); err != nil {
		a.Close()
		return nil, err
	}

	processingMetrics := processingmetrics.New()
	a.outboxMetrics = outboxmetrics.New()
	a.httpMetrics = platformmetrics.New()

	publisher := integrationevents.NewPublisher(a.outbox,
		integrationevents.WithLogger(logger),
		integrationevents.WithMetrics(a.outboxMetrics))
	a.scheduler = internalcommands.NewScheduler(a.commands)

	a.moveIn = moveinservice.New(a.points, a.consumers, a.suppliers, a.scheduler, publisher, a.runner,
		moveinservice.WithLogger(logger),
		moveinservice.WithMetrics(processingMetrics),
		moveinservice.WithPolicy(apmodels.EffectiveDatePolicy{
			AllowedDaysBeforeToday: cfg.Market.MoveInDaysBefore,
			AllowedDaysAfterToday:  cfg.Market.MoveInDaysAfter,
		}))
	a.changeSupply = cosservice.New(a.points, a.suppliers, a.scheduler, publisher, a.runner,
		cosservice.WithLogger(logger),
		cosservice.WithMetrics(processingMetrics))

	a.dispatcher = outbound.New(cim.NewWriter(dataHubGln.String()), a.outbox,
		outbound.WithLogger(logger),
		outbound.WithMetrics(a.outboxMetrics))
	a.notifications = notifications.New(a.points, a.suppliers, a.dispatcher, logger)

	a.handlers = internalcommands.NewRegistry()
	internalcommands.Register(a.handlers, a.moveIn.EffectuateConsumerMoveIn)
	internalcommands.Register(a.handlers, a.changeSupply.EffectuateChangeOfSupplier)
	a.notifications.Register(a.handlers)
	a.processor = internalcommands.NewProcessor(a.commands, a.handlers, a.runner,
		internalcommands.WithLogger(logger),
		internalcommands.WithMetrics(commandmetrics.New()),
		internalcommands.WithInterval(cfg.Commands.Interval),
		internalcommands.WithBatchSize(cfg.Commands.BatchSize),
		internalcommands.WithMaxAttempts(cfg.Commands.MaxAttempts),
		internalcommands.WithRetryBackoff(cfg.Commands.RetryBackoff))

	a.ingestion = ingestion.New(dataHubGln, a.moveIn, a.changeSupply, a.dispatcher, a.runner,
		ingestion.WithLogger(logger),
		ingestion.WithMetrics(messagingmetrics.New()),
		ingestion.WithRegistry(a.registry),
		ingestion.WithConflictRetries(cfg.Market.ConflictRetries))
	a.messages = handler.New(a.ingestion, query.New(a.points, a.consumers, a.suppliers), logger, cfg.Server.MaxBodyBytes)
	a.masterData = masterdata.NewService(a.points, a.suppliers, publisher, a.runner, logger)
	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	switch a.cfg.Storage {
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, a.cfg.Postgres)
		if err != nil {
			return err
		}
		a.db = db
		a.stores = stores{
			points:    apstore.NewPostgres(db),
			consumers: consumerstore.NewPostgres(db),
			suppliers: supplierstore.NewPostgres(db),
			commands:  commandstore.NewPostgres(db),
			outbox:    outboxstore.NewPostgres(db),
			runner:    tx.NewSQLRunner(db),
		}
	default:
		a.logger.WarnContext(ctx, "using in-memory storage, state is lost on restart")
		a.stores = stores{
			points:    apstore.NewInMemory(),
			consumers: consumerstore.NewInMemory(),
			suppliers: supplierstore.NewInMemory(),
			commands:  commandstore.NewInMemory(),
			outbox:    outboxstore.NewInMemory(),
			runner:    tx.NewMemoryRunner(),
		}
	}
	return nil
}

func (a *app) openRegistry(ctx context.Context) error {
	switch a.cfg.Registry.Backend {
	case config.RegistryPostgres:
		a.registry = registry.NewPostgres(a.db)
	case config.RegistryRedis:
		client, err := redis.New(ctx, a.cfg.Redis)
		if err != nil {
			return err
		}
		a.redis = client
		var opts []registry.RedisOption
		if a.cfg.Registry.TTL > 0 {
			opts = append(opts, registry.WithTTL(a.cfg.Registry.TTL))
		}
		a.registry = registry.NewRedis(client.Client, opts...)
	default:
		a.registry = registry.NewInMemory()
	}
	return nil
}

// relay builds the outbox relay and the producer it publishes with. The
// caller closes the producer.
func (a *app) relay() (*relay.Worker, *producer.Producer, error) {
	if !a.cfg.Kafka.Enabled() {
		return nil, nil, errors.New("kafka brokers are not configured")
	}
	p, err := producer.New(a.cfg.Kafka.Config, producer.WithLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}
	worker := relay.NewWorker(a.outbox, p, a.runner, a.topics(),
		relay.WithLogger(a.logger),
		relay.WithMetrics(a.outboxMetrics),
		relay.WithBatchSize(a.cfg.Outbox.BatchSize),
		relay.WithInterval(a.cfg.Outbox.Interval))
	return worker, p, nil
}

func (a *app) topics() map[outbox.Category]string {
	return map[outbox.Category]string{
		outbox.CategoryIntegrationEvent: a.cfg.Kafka.Topics.IntegrationEvents,
		outbox.CategoryMarketDocument:   a.cfg.Kafka.Topics.MarketDocuments,
	}
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
