package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tsdstock/internal/core/tx"
	"tsdstock/pkg/logger"
)

var tracer = otel.Tracer("tsdstock/tx")

var (
	_ tx.Manager  = (*TxManager)(nil)
	_ tx.Beginner = (*TxManager)(nil)
)

// TxOptions configures transaction behavior.
type TxOptions struct {
	// IsolationLevel: pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted
	IsolationLevel pgx.TxIsoLevel

	// AccessMode: pgx.ReadWrite, pgx.ReadOnly
	AccessMode pgx.TxAccessMode

	// StatementTimeout is applied with SET LOCAL (default 30s)
	StatementTimeout time.Duration

	// UseSavepoint creates savepoint for nested transactions
	UseSavepoint bool
}

// DefaultTxOptions returns production-safe defaults. Ledger writes rely on
// row locks, so READ COMMITTED is sufficient.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// TxManager manages database transactions with support for:
// - Nested transactions (with optional savepoints)
// - Statement timeout protection
// - Distributed tracing integration
type TxManager struct {
	pool *pgxpool.Pool
	opts TxOptions
}

// NewTxManager creates a transaction manager. A zero StatementTimeout in
// opts keeps the default.
func NewTxManager(pool *Pool, opts TxOptions) *TxManager {
	if opts.StatementTimeout == 0 {
		opts.StatementTimeout = DefaultTxOptions().StatementTimeout
	}
	if opts.IsolationLevel == "" {
		opts.IsolationLevel = pgx.ReadCommitted
	}
	if opts.AccessMode == "" {
		opts.AccessMode = pgx.ReadWrite
	}
	return &TxManager{pool: pool.Pool, opts: opts}
}

// txKey is the context key for active transaction.
type txKey struct{}

// Tx wraps pgx.Tx and implements tx.Tx.
type Tx struct {
	pgx.Tx
	span trace.Span
}

// Commit implements tx.Tx.
func (t *Tx) Commit(ctx context.Context) error {
	defer t.span.End()
	if err := t.Tx.Commit(ctx); err != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, "commit failed")
		return err
	}
	return nil
}

// Rollback implements tx.Tx.
func (t *Tx) Rollback(ctx context.Context) error {
	defer t.span.End()
	t.span.SetStatus(codes.Error, "rolled back")
	return t.Tx.Rollback(ctx)
}

// joinedTx is returned by Begin when ctx already carries a transaction.
type joinedTx struct{}

func (joinedTx) Commit(context.Context) error   { return nil }
func (joinedTx) Rollback(context.Context) error { return nil }

// Begin implements tx.Beginner. A transaction already present in ctx is joined.
func (m *TxManager) Begin(ctx context.Context) (context.Context, tx.Tx, error) {
	if m.GetTx(ctx) != nil {
		return ctx, joinedTx{}, nil
	}
	t, err := m.begin(ctx, m.opts)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, txKey{}, t), t, nil
}

func (m *TxManager) begin(ctx context.Context, opts TxOptions) (*Tx, error) {
	_, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.isolation", string(opts.IsolationLevel)),
			attribute.String("tx.access_mode", string(opts.AccessMode)),
		))

	pgTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   opts.IsolationLevel,
		AccessMode: opts.AccessMode,
	})
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	if opts.StatementTimeout > 0 {
		_, err = pgTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds()))
		if err != nil {
			_ = pgTx.Rollback(context.Background())
			span.RecordError(err)
			span.End()
			return nil, fmt.Errorf("set statement_timeout: %w", err)
		}
	}
	return &Tx{Tx: pgTx, span: span}, nil
}

// RunInTransaction executes fn within a transaction.
// If a transaction already exists in ctx, it will be reused.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, m, fn)
}

// RunInTransactionWithOptions executes fn with custom transaction options.
func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	if existing := m.GetTx(ctx); existing != nil {
		return m.handleNestedTransaction(ctx, existing, opts, fn)
	}
	return tx.Run(ctx, beginnerFunc(func(ctx context.Context) (context.Context, tx.Tx, error) {
		t, err := m.begin(ctx, opts)
		if err != nil {
			return ctx, nil, err
		}
		return context.WithValue(ctx, txKey{}, t), t, nil
	}), fn)
}

type beginnerFunc func(ctx context.Context) (context.Context, tx.Tx, error)

func (f beginnerFunc) Begin(ctx context.Context) (context.Context, tx.Tx, error) { return f(ctx) }

// handleNestedTransaction manages nested transaction (reuses or creates savepoint).
func (m *TxManager) handleNestedTransaction(ctx context.Context, existing *Tx, opts TxOptions, fn func(ctx context.Context) error) error {
	if !opts.UseSavepoint {
		return fn(ctx)
	}

	savepointName := fmt.Sprintf("sp_%d", time.Now().UnixNano())
	if _, err := existing.Exec(ctx, "SAVEPOINT "+savepointName); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := existing.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepointName); rbErr != nil {
			logger.Error(ctx, "rollback to savepoint failed", "savepoint", savepointName, "error", rbErr)
		}
		return err
	}

	if _, err := existing.Exec(ctx, "RELEASE SAVEPOINT "+savepointName); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// GetTx returns the current transaction from context, or nil if none.
func (m *TxManager) GetTx(ctx context.Context) *Tx {
	if t, ok := ctx.Value(txKey{}).(*Tx); ok {
		return t
	}
	return nil
}

// Querier is satisfied by both pgx.Tx and the pool, so repositories work
// inside and outside transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns appropriate querier for context.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t.Tx
	}
	return m.pool
}

// ReadOnly executes fn in a read-only transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := m.opts
	opts.AccessMode = pgx.ReadOnly
	return m.RunInTransactionWithOptions(ctx, opts, fn)
}
