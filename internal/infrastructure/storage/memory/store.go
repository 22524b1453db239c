// Package memory is an in-process storage backend. It implements every
// repository of the ledger with the same transactional contract as the
// PostgreSQL backend: exclusive scopes are held until commit or rollback,
// and a rollback restores every write made in the transaction.
//
// Reads outside exclusive scopes see uncommitted writes of concurrent
// transactions. Services only make decisions on data they hold locks for.
package memory

import (
	"context"
	"errors"
	"sync"

	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/tx"
	"tsdstock/internal/domain/auth"
	"tsdstock/internal/domain/devices"
	"tsdstock/internal/domain/documents/inventory"
	"tsdstock/internal/domain/documents/movement"
)

var (
	// ErrNoTransaction is returned by locking reads outside a transaction.
	ErrNoTransaction = errors.New("memory: exclusive access requires a transaction")
	errTxDone        = errors.New("memory: transaction already finished")
)

var (
	_ tx.Manager  = (*Store)(nil)
	_ tx.Beginner = (*Store)(nil)
)

// Store holds all tables. Repositories are views over one Store.
type Store struct {
	mu    sync.RWMutex
	locks *lockTable

	lines     map[entity.StockKey]entity.StockLine
	movements []entity.StockMovement
	seq       int64

	documents map[id.ID]movement.Document
	docItems  map[id.ID]movement.Item

	inventories map[id.ID]inventory.Inventory
	invItems    map[id.ID]inventory.Item

	devices map[string]devices.Device
	users   map[id.ID]auth.User

	refs   map[refKey]refEntry
	outbox []OutboxRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		locks:       newLockTable(),
		lines:       make(map[entity.StockKey]entity.StockLine),
		documents:   make(map[id.ID]movement.Document),
		docItems:    make(map[id.ID]movement.Item),
		inventories: make(map[id.ID]inventory.Inventory),
		invItems:    make(map[id.ID]inventory.Item),
		devices:     make(map[string]devices.Device),
		users:       make(map[id.ID]auth.User),
		refs:        make(map[refKey]refEntry),
	}
}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s, fn)
}

// Begin implements tx.Beginner.
func (s *Store) Begin(ctx context.Context) (context.Context, tx.Tx, error) {
	if u := current(ctx); u != nil {
		return ctx, joined{}, nil
	}
	u := &unitOfWork{store: s, held: make(map[string]struct{})}
	return context.WithValue(ctx, uowKey{}, u), u, nil
}

type uowKey struct{}

// unitOfWork is one transaction. It is owned by a single goroutine.
type unitOfWork struct {
	store *Store
	held  map[string]struct{}
	order []string
	undo  []func()
	done  bool
}

func current(ctx context.Context) *unitOfWork {
	if u, ok := ctx.Value(uowKey{}).(*unitOfWork); ok && !u.done {
		return u
	}
	return nil
}

// Commit implements tx.Tx.
func (u *unitOfWork) Commit(context.Context) error {
	if u.done {
		return errTxDone
	}
	u.done = true
	u.undo = nil
	u.release()
	return nil
}

// Rollback implements tx.Tx.
func (u *unitOfWork) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.store.mu.Lock()
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.store.mu.Unlock()
	u.undo = nil
	u.release()
	return nil
}

func (u *unitOfWork) release() {
	for i := len(u.order) - 1; i >= 0; i-- {
		u.store.locks.release(u.order[i])
	}
	u.order = nil
	clear(u.held)
}

// joined is the Tx handed to nested Begin calls; the outer transaction decides.
type joined struct{}

func (joined) Commit(context.Context) error   { return nil }
func (joined) Rollback(context.Context) error { return nil }

// lock acquires the named scopes for the transaction in ctx, in the given order.
// Scopes already held by the transaction are skipped.
func (s *Store) lock(ctx context.Context, names ...string) error {
	u := current(ctx)
	if u == nil {
		return ErrNoTransaction
	}
	for _, name := range names {
		if _, ok := u.held[name]; ok {
			continue
		}
		if err := s.locks.acquire(ctx, name); err != nil {
			return err
		}
		u.held[name] = struct{}{}
		u.order = append(u.order, name)
	}
	return nil
}

// write runs fn under the store mutex. The undo func it returns is kept by
// the active transaction and replayed on rollback.
func (s *Store) write(ctx context.Context, fn func() (undo func(), err error)) error {
	s.mu.Lock()
	undo, err := fn()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if u := current(ctx); u != nil && undo != nil {
		u.undo = append(u.undo, undo)
	}
	return nil
}

// lockTable hands out one channel-based mutex per scope name. Waiting honours
// context cancellation.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[string]chan struct{})}
}

func (t *lockTable) slot(name string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.slots[name]
	if !ok {
		c = make(chan struct{}, 1)
		t.slots[name] = c
	}
	return c
}

func (t *lockTable) acquire(ctx context.Context, name string) error {
	select {
	case t.slot(name) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *lockTable) release(name string) {
	<-t.slot(name)
}
