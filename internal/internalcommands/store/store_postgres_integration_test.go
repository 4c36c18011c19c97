//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"marketroles/internal/internalcommands"
	"marketroles/internal/internalcommands/store"
	"marketroles/pkg/platform/sentinel"
	"marketroles/pkg/platform/tx"
	"marketroles/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	runner   *tx.SQLRunner
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.runner = tx.NewSQLRunner(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "internal_commands"))
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) add(commandType string, scheduledAt time.Time) *internalcommands.QueuedCommand {
	cmd := &internalcommands.QueuedCommand{
		ID:          uuid.New(),
		Type:        commandType,
		Data:        []byte(`{"transaction_id":"tx-1"}`),
		ScheduledAt: scheduledAt,
		CreatedAt:   s.now,
	}
	s.Require().NoError(s.store.Add(context.Background(), cmd))
	return cmd
}

func (s *PostgresStoreSuite) TestFetchDueOrdersByScheduleAndSkipsFuture() {
	ctx := context.Background()
	later := s.add(internalcommands.TypeNotifyCurrentSupplier, s.now.Add(-time.Minute))
	earlier := s.add(internalcommands.TypeEffectuateConsumerMoveIn, s.now.Add(-time.Hour))
	s.add(internalcommands.TypeEffectuateChangeOfSupplier, s.now.Add(time.Hour))

	due, err := s.store.FetchDue(ctx, s.now, 10)
	s.Require().NoError(err)
	s.Require().Len(due, 2)
	s.Equal(earlier.ID, due[0].ID)
	s.Equal(later.ID, due[1].ID)
	s.JSONEq(`{"transaction_id":"tx-1"}`, string(due[0].Data))
}

func (s *PostgresStoreSuite) TestProcessedAndParkedCommandsAreNotDue() {
	ctx := context.Background()
	processed := s.add(internalcommands.TypeNotifyCurrentSupplier, s.now)
	parked := s.add(internalcommands.TypeNotifyCurrentSupplier, s.now)
	retried := s.add(internalcommands.TypeNotifyCurrentSupplier, s.now)

	s.Require().NoError(s.store.MarkProcessed(ctx, processed.ID, s.now))
	s.Require().NoError(s.store.MarkFailed(ctx, parked.ID, internalcommands.Failure{
		Attempts: 5, LastError: "boom", RetryAt: s.now, ParkedAt: &s.now,
	}))
	s.Require().NoError(s.store.MarkFailed(ctx, retried.ID, internalcommands.Failure{
		Attempts: 1, LastError: "boom", RetryAt: s.now.Add(time.Minute),
	}))

	due, err := s.store.FetchDue(ctx, s.now, 10)
	s.Require().NoError(err)
	s.Empty(due)

	due, err = s.store.FetchDue(ctx, s.now.Add(time.Minute), 10)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(retried.ID, due[0].ID)
	s.Equal(1, due[0].Attempts)
	s.Equal("boom", due[0].LastError)
}

func (s *PostgresStoreSuite) TestMarkUnknownCommandIsNotFound() {
	err := s.store.MarkProcessed(context.Background(), uuid.New(), s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestLockedCommandsAreSkippedByOtherTransactions() {
	ctx := context.Background()
	s.add(internalcommands.TypeNotifyCurrentSupplier, s.now)

	errStop := errors.New("stop")
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.store.FetchDue(txCtx, s.now, 1)
		s.Require().NoError(err)
		s.Require().Len(locked, 1)

		return s.runner.RunInTx(context.Background(), func(otherCtx context.Context) error {
			other, err := s.store.FetchDue(otherCtx, s.now, 1)
			s.Require().NoError(err)
			s.Empty(other, "row is locked by the first transaction")
			return errStop
		})
	})
	s.ErrorIs(err, errStop)
}
