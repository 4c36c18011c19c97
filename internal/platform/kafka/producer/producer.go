// Package producer publishes records synchronously so the outbox relay only
// marks entries processed after the broker acknowledged them.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/twmb/franz-go/pkg/kgo"

	"marketroles/internal/platform/kafka"
)

type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

type Option func(*options)

type options struct {
	logger *slog.Logger
	extra  []kgo.Opt
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClientOpts passes additional franz-go options through.
func WithClientOpts(opts ...kgo.Opt) Option {
	return func(o *options) { o.extra = append(o.extra, opts...) }
}

func New(cfg kafka.Config, opts ...Option) (*Producer, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	clientOpts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.ClientID != "" {
		clientOpts = append(clientOpts, kgo.ClientID(cfg.ClientID))
	}
	clientOpts = append(clientOpts, o.extra...)

	client, err := kgo.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, logger: o.logger}, nil
}

// Produce sends one record and waits for the acknowledgement.
func (p *Producer) Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	record := &kgo.Record{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: toHeaders(headers),
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	p.logger.DebugContext(ctx, "record produced",
		"topic", topic, "partition", record.Partition, "offset", record.Offset)
	return nil
}

// Ping checks broker connectivity.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() {
	p.client.Close()
}

func toHeaders(headers map[string]string) []kgo.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]kgo.RecordHeader, 0, len(keys))
	for _, k := range keys {
		out = append(out, kgo.RecordHeader{Key: k, Value: []byte(headers[k])})
	}
	return out
}
