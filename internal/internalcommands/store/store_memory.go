package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketroles/internal/internalcommands"
	"marketroles/pkg/platform/sentinel"
	"marketroles/pkg/platform/tx"
)

type InMemory struct {
	mu       sync.Mutex
	commands map[uuid.UUID]*internalcommands.QueuedCommand
}

func NewInMemory() *InMemory {
	return &InMemory{commands: make(map[uuid.UUID]*internalcommands.QueuedCommand)}
}

func (s *InMemory) Add(ctx context.Context, cmd *internalcommands.QueuedCommand) error {
	if cmd == nil {
		return fmt.Errorf("command is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commands[cmd.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	c := *cmd
	s.commands[cmd.ID] = &c
	tx.OnRollback(ctx, func() { s.restore(c.ID, nil) })
	return nil
}

func (s *InMemory) FetchDue(_ context.Context, now time.Time, limit int) ([]*internalcommands.QueuedCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]*internalcommands.QueuedCommand, 0)
	for _, cmd := range s.commands {
		if cmd.IsDue(now) {
			c := *cmd
			due = append(due, &c)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledAt.Equal(due[j].ScheduledAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *InMemory) MarkProcessed(ctx context.Context, cmdID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.commands[cmdID]
	if !ok {
		return sentinel.ErrNotFound
	}
	previous := *cmd
	processed := at
	cmd.ProcessedAt = &processed
	cmd.Attempts++
	tx.OnRollback(ctx, func() { s.restore(cmdID, &previous) })
	return nil
}

func (s *InMemory) MarkFailed(ctx context.Context, cmdID uuid.UUID, failure internalcommands.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.commands[cmdID]
	if !ok {
		return sentinel.ErrNotFound
	}
	previous := *cmd
	cmd.Attempts = failure.Attempts
	cmd.LastError = failure.LastError
	cmd.ScheduledAt = failure.RetryAt
	if failure.ParkedAt != nil {
		parked := *failure.ParkedAt
		cmd.FailedAt = &parked
	}
	tx.OnRollback(ctx, func() { s.restore(cmdID, &previous) })
	return nil
}

// restore puts back the state before a rolled back write. A nil previous
// removes the command.
func (s *InMemory) restore(cmdID uuid.UUID, previous *internalcommands.QueuedCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if previous == nil {
		delete(s.commands, cmdID)
		return
	}
	s.commands[cmdID] = previous
}

// All returns a snapshot of every queued command, oldest first.
func (s *InMemory) All() []internalcommands.QueuedCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]internalcommands.QueuedCommand, 0, len(s.commands))
	for _, cmd := range s.commands {
		out = append(out, *cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
