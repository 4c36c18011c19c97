// Package consumer runs a consumer group and hands each record to a Handler.
// Offsets are committed only after the handler returned.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"marketroles/internal/platform/kafka"
)

// Message is the transport-neutral view of a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Header returns the named header or "".
func (m *Message) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

type Consumer struct {
	client     *kgo.Client
	handler    Handler
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
}

type Option func(*Consumer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) { c.logger = logger }
}

// WithRetry sets how often a failing record is retried before it is skipped.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Consumer) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func New(cfg kafka.Config, topics []string, handler Handler, opts ...Option) (*Consumer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.ConsumerGroup == "" {
		return nil, fmt.Errorf("kafka consumer group is required")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}
	clientOpts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	if cfg.ClientID != "" {
		clientOpts = append(clientOpts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	c := &Consumer{
		client:     client,
		handler:    handler,
		logger:     slog.Default(),
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.ErrorContext(ctx, "kafka fetch failed", "topic", topic, "partition", partition, "error", err)
		})

		var handled []*kgo.Record
		fetches.EachRecord(func(record *kgo.Record) {
			if ctx.Err() != nil {
				return
			}
			if c.handle(ctx, record) {
				handled = append(handled, record)
			}
		})
		if len(handled) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, handled...); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "kafka commit failed", "records", len(handled), "error", err)
		}
	}
}

// handle retries a failing record and then skips it so one poison message
// cannot block the partition. It returns false only when ctx ended first.
func (c *Consumer) handle(ctx context.Context, record *kgo.Record) bool {
	msg := toMessage(record)
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err = c.handler.Handle(ctx, msg); err == nil {
			return true
		}
		c.logger.WarnContext(ctx, "kafka message handling failed",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
			"attempt", attempt+1, "error", err)
		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.backoff * time.Duration(attempt+1)):
		}
	}
	c.logger.ErrorContext(ctx, "kafka message skipped after retries",
		"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
	return true
}

func toMessage(record *kgo.Record) *Message {
	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Key:       record.Key,
		Value:     record.Value,
		Headers:   headers,
		Timestamp: record.Timestamp,
	}
}
