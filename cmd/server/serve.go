package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	jwttoken "marketroles/internal/jwt_token"
	"marketroles/internal/platform/httpserver"
	"marketroles/internal/platform/kafka"
	"marketroles/internal/platform/kafka/consumer"
	"marketroles/internal/platform/postgres"
	httptransport "marketroles/internal/transport/http"
)

const (
	consumerRetries = 3
	consumerBackoff = time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	if a.db != nil {
		if err := postgres.Migrate(ctx, a.db); err != nil {
			return err
		}
	}

	readiness := map[string]httptransport.Check{}
	if a.db != nil {
		readiness["postgres"] = a.db.PingContext
	}
	if a.redis != nil {
		readiness["redis"] = a.redis.Health
	}

	workers := []func(context.Context) error{a.processor.Run}
	if a.cfg.Kafka.Enabled() {
		topics := a.cfg.Kafka.Topics
		if err := kafka.EnsureTopics(ctx, a.cfg.Kafka.Config, topics.IntegrationEvents, topics.MarketDocuments, topics.MasterData); err != nil {
			return err
		}
		worker, p, err := a.relay()
		if err != nil {
			return err
		}
		defer p.Close()
		readiness["kafka"] = p.Ping
		readiness["outbox"] = worker.Healthy

		masterData, err := consumer.New(a.cfg.Kafka.Config, []string{topics.MasterData}, a.masterData.Router(),
			consumer.WithLogger(a.logger),
			consumer.WithRetry(consumerRetries, consumerBackoff))
		if err != nil {
			return err
		}
		workers = append(workers, worker.Run, masterData.Run)
	} else {
		a.logger.WarnContext(ctx, "kafka is not configured, outbox relay and master data consumer are disabled")
	}

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:    a.logger,
		Metrics:   a.httpMetrics,
		Tokens:    jwttoken.NewAdapter(jwttoken.NewJWTService(a.cfg.Auth.SigningKey, a.cfg.Auth.Issuer, a.cfg.Auth.Audience)),
		APIs:      []httptransport.API{a.messages},
		Readiness: readiness,
	})
	srv := httpserver.New(httpserver.Config{
		Addr:         a.cfg.Server.Addr,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}, router)

	g, ctx := errgroup.WithContext(ctx)
	for _, run := range workers {
		g.Go(func() error { return run(ctx) })
	}
	g.Go(func() error { return httpserver.Serve(ctx, srv, a.cfg.Server.ShutdownTimeout, a.logger) })
	return g.Wait()
}
