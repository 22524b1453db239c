package memory

import (
	"context"
	"time"

	"tsdstock/internal/core/id"
	"tsdstock/internal/domain/events"
)

// OutboxRecord is a stored event.
type OutboxRecord struct {
	ID        id.ID
	Event     events.Event
	CreatedAt time.Time
}

// Outbox implements events.Publisher. Records written inside a transaction
// disappear when it rolls back.
type Outbox struct {
	store *Store
}

// NewOutbox creates an outbox over store.
func NewOutbox(store *Store) *Outbox {
	return &Outbox{store: store}
}

var _ events.Publisher = (*Outbox)(nil)

// Publish implements events.Publisher.
func (o *Outbox) Publish(ctx context.Context, event events.Event) error {
	rec := OutboxRecord{ID: id.New(), Event: event, CreatedAt: time.Now().UTC()}
	return o.store.write(ctx, func() (func(), error) {
		o.store.outbox = append(o.store.outbox, rec)
		return func() {
			for i := len(o.store.outbox) - 1; i >= 0; i-- {
				if o.store.outbox[i].ID == rec.ID {
					o.store.outbox = append(o.store.outbox[:i], o.store.outbox[i+1:]...)
					return
				}
			}
		}, nil
	})
}

// Records returns a copy of the stored events in publish order.
func (o *Outbox) Records() []OutboxRecord {
	o.store.mu.RLock()
	defer o.store.mu.RUnlock()
	return append([]OutboxRecord(nil), o.store.outbox...)
}
