// Package masterdata applies master data events published by the metering
// point and actor registers: new accounting points, grid connection state
// changes and newly registered energy suppliers.
package masterdata

import (
	"context"
	"encoding/json"
	"log/slog"

	"marketroles/internal/platform/kafka/consumer"
)

// HeaderEventType names the event carried by a record. Records without the
// header are routed by the "type" field of the JSON body.
const HeaderEventType = "event-type"

// EventHandler handles one master data event type.
type EventHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// Router dispatches records to event-type specific handlers.
type Router struct {
	handlers map[string]EventHandler
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		handlers: make(map[string]EventHandler),
		logger:   logger,
	}
}

func (r *Router) Register(eventType string, handler EventHandler) {
	r.handlers[eventType] = handler
}

// Handle routes the record. Unknown event types are skipped so the offset is
// committed.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	eventType := eventTypeOf(msg)
	handler, ok := r.handlers[eventType]
	if !ok {
		r.logger.WarnContext(ctx, "no handler for master data event, skipping",
			"topic", msg.Topic,
			"event_type", eventType,
			"key", string(msg.Key),
		)
		return nil
	}
	return handler.Handle(ctx, msg)
}

func eventTypeOf(msg *consumer.Message) string {
	if t := msg.Header(HeaderEventType); t != "" {
		return t
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return ""
	}
	return envelope.Type
}
