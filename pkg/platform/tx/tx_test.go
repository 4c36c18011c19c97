package tx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketroles/pkg/platform/tx"
)

func TestMemoryRunnerRollsBackInReverseOrder(t *testing.T) {
	runner := tx.NewMemoryRunner()
	var undone []string

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		tx.OnRollback(ctx, func() { undone = append(undone, "first") })
		return runner.RunInTx(ctx, func(inner context.Context) error {
			tx.OnRollback(inner, func() { undone = append(undone, "nested") })
			return errors.New("boom")
		})
	})

	require.Error(t, err)
	assert.Equal(t, []string{"nested", "first"}, undone)
}

func TestMemoryRunnerKeepsWritesOnSuccess(t *testing.T) {
	runner := tx.NewMemoryRunner()
	called := false

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		tx.OnRollback(ctx, func() { called = true })
		return nil
	})

	require.NoError(t, err)
	assert.False(t, called)
}

func TestOnRollbackOutsideUnitOfWorkIsDropped(t *testing.T) {
	assert.NotPanics(t, func() {
		tx.OnRollback(context.Background(), func() { t.Fatal("must not run") })
	})
}
