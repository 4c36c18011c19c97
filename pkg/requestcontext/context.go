// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets the values; services, workers and stores read them without
// importing net/http.
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//	actor := requestcontext.Actor(ctx)
//
// Workers and tests pin the clock with WithTime.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	actorKey       struct{}
)

var (
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyActor       = actorKey{}
)

// MarketActor is the authenticated market participant behind a request.
type MarketActor struct {
	GLN   string
	Roles []string
}

// HasRole reports whether the actor acts in the given market role (e.g. "DDQ").
func (a MarketActor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Actor retrieves the authenticated market actor. ok is false when the request
// is unauthenticated.
func Actor(ctx context.Context) (MarketActor, bool) {
	actor, ok := ctx.Value(ContextKeyActor).(MarketActor)
	return actor, ok
}

// WithActor injects an authenticated market actor.
func WithActor(ctx context.Context, actor MarketActor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

// WithTime injects a specific time into a context.
// Used by middleware, by workers that need one "now" per batch, and by tests.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t.UTC())
}
