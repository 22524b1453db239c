// Package tx defines the ledger transaction contract shared by all storage backends.
//
// A backend exposes explicit Begin/Commit/Rollback through Beginner, and
// services use Manager.RunInTransaction. Exclusive scopes over ledger keys are
// acquired through the stock repository inside the transaction and are held
// until Commit or Rollback.
package tx

import (
	"context"
	"fmt"
)

// Manager defines the contract for transaction management.
//
// Nested calls reuse the existing transaction from context.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Tx is an open ledger transaction.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner starts transactions. The returned context carries the transaction
// and must be passed to every repository call that should take part in it.
type Beginner interface {
	Begin(ctx context.Context) (context.Context, Tx, error)
}

// Run executes fn inside a transaction obtained from b.
// A panic inside fn rolls the transaction back and is re-raised.
func Run(ctx context.Context, b Beginner, fn func(ctx context.Context) error) (err error) {
	txCtx, t, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = t.Rollback(context.Background())
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := t.Rollback(context.Background()); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := t.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
