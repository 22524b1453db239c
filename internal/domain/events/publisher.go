// Package events carries domain events out of ledger transactions.
// Publishers are called inside the transaction that produced the event, so
// an event exists if and only if its state change committed.
package events

import (
	"context"
	"errors"
	"sync"

	"tsdstock/internal/core/id"
)

const (
	AggregateDocument  = "document"
	AggregateInventory = "inventory"

	DocumentPosted     = "document.posted"
	DocumentCancelled  = "document.cancelled"
	InventoryCompleted = "inventory.completed"
	InventoryCancelled = "inventory.cancelled"
)

// Event is a committed state change.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	UserID        string
	Payload       any
}

// Publisher writes events within the current transaction.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every publisher in order and joins their errors.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory. Tests use it to assert on
// what a service emitted.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
	return nil
}

// Types returns the event types recorded so far.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.EventType)
	}
	return out
}
