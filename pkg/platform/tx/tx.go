package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Executor is satisfied by both *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Execer returns the transaction carried by ctx, or db when there is none.
func Execer(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// Runner runs fn inside a unit of work. Stores called with the context passed
// to fn participate in the same unit.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner begins a database transaction per call. Nested calls reuse the
// outer transaction.
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	ctx, hooks := withHooks(ctx)
	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		hooks.rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		hooks.rollback()
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type memoryTxKey struct{}

// MemoryRunner serializes units of work with a single lock. In-memory stores
// undo their writes through OnRollback when fn fails.
type MemoryRunner struct {
	mu sync.Mutex
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, hooks := withHooks(ctx)
	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		hooks.rollback()
		return err
	}
	return nil
}

type hooksKey struct{}

type rollbackHooks struct {
	mu  sync.Mutex
	fns []func()
}

func withHooks(ctx context.Context) (context.Context, *rollbackHooks) {
	hooks := &rollbackHooks{}
	return context.WithValue(ctx, hooksKey{}, hooks), hooks
}

// rollback runs the registered hooks, last registered first.
func (h *rollbackHooks) rollback() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// OnRollback registers fn to undo a write made outside the database when the
// unit of work carried by ctx fails. Outside a unit of work fn is dropped.
func OnRollback(ctx context.Context, fn func()) {
	hooks, ok := ctx.Value(hooksKey{}).(*rollbackHooks)
	if !ok {
		return
	}
	hooks.mu.Lock()
	hooks.fns = append(hooks.fns, fn)
	hooks.mu.Unlock()
}
