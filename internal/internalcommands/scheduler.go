package internalcommands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketroles/pkg/requestcontext"
)

// Store is the command queue.
type Store interface {
	Add(ctx context.Context, cmd *QueuedCommand) error
	// FetchDue returns up to limit due commands ordered by ScheduledAt. The
	// Postgres implementation locks the returned rows for the transaction in ctx.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]*QueuedCommand, error)
	MarkProcessed(ctx context.Context, cmdID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, cmdID uuid.UUID, failure Failure) error
}

// Scheduler serializes commands onto the queue.
type Scheduler struct {
	store Store
}

func NewScheduler(store Store) *Scheduler {
	return &Scheduler{store: store}
}

// Enqueue schedules cmd for at. Commands scheduled in the past run on the next
// processor pass.
func (s *Scheduler) Enqueue(ctx context.Context, cmd Command, at time.Time) error {
	if cmd == nil {
		return fmt.Errorf("command is required")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", cmd.CommandType(), err)
	}
	queued := &QueuedCommand{
		ID:          uuid.New(),
		Type:        cmd.CommandType(),
		Data:        data,
		ScheduledAt: at.UTC(),
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.Add(ctx, queued); err != nil {
		return fmt.Errorf("enqueue %s: %w", cmd.CommandType(), err)
	}
	return nil
}
