package memory

import (
	"cmp"
	"context"
	"slices"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain"
	"tsdstock/internal/domain/documents/movement"
)

// DocumentRepo implements movement.Repository.
type DocumentRepo struct {
	store *Store
}

// NewDocumentRepo creates a document repository over store.
func NewDocumentRepo(store *Store) *DocumentRepo {
	return &DocumentRepo{store: store}
}

var _ movement.Repository = (*DocumentRepo)(nil)

func documentScope(docID id.ID) string {
	return "document:" + docID.String()
}

// Create implements movement.Repository.
func (r *DocumentRepo) Create(ctx context.Context, doc *movement.Document) error {
	return r.store.write(ctx, func() (func(), error) {
		if _, ok := r.store.documents[doc.ID]; ok {
			return nil, apperror.NewDuplicate("document", "id", doc.ID.String())
		}
		for _, d := range r.store.documents {
			if d.Number == doc.Number {
				return nil, apperror.NewDuplicate("document", "number", doc.Number)
			}
		}
		stored := *doc
		stored.Items = nil
		r.store.documents[doc.ID] = stored
		return func() { delete(r.store.documents, doc.ID) }, nil
	})
}

// GetByID implements movement.Repository.
func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*movement.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	d, ok := r.store.documents[docID]
	if !ok {
		return nil, apperror.NewNotFound("document", docID)
	}
	return &d, nil
}

// GetForUpdate implements movement.Repository.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*movement.Document, error) {
	if err := r.store.lock(ctx, documentScope(docID)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, docID)
}

// Update implements movement.Repository.
func (r *DocumentRepo) Update(ctx context.Context, doc *movement.Document) error {
	return r.store.write(ctx, func() (func(), error) {
		prev, ok := r.store.documents[doc.ID]
		if !ok {
			return nil, apperror.NewNotFound("document", doc.ID)
		}
		if prev.Version != doc.Version {
			return nil, apperror.NewConcurrentModification("document", doc.ID)
		}
		if doc.Number != prev.Number {
			for _, d := range r.store.documents {
				if d.ID != doc.ID && d.Number == doc.Number {
					return nil, apperror.NewDuplicate("document", "number", doc.Number)
				}
			}
		}

		doc.Touch()
		stored := *doc
		stored.Items = nil
		r.store.documents[doc.ID] = stored
		return func() { r.store.documents[doc.ID] = prev }, nil
	})
}

// Delete implements movement.Repository. Items go with the document.
func (r *DocumentRepo) Delete(ctx context.Context, docID id.ID) error {
	return r.store.write(ctx, func() (func(), error) {
		prev, ok := r.store.documents[docID]
		if !ok {
			return nil, apperror.NewNotFound("document", docID)
		}
		var items []movement.Item
		for itemID, it := range r.store.docItems {
			if it.DocumentID == docID {
				items = append(items, it)
				delete(r.store.docItems, itemID)
			}
		}
		delete(r.store.documents, docID)
		return func() {
			r.store.documents[docID] = prev
			for _, it := range items {
				r.store.docItems[it.ID] = it
			}
		}, nil
	})
}

// List implements movement.Repository. Documents are ordered newest first.
func (r *DocumentRepo) List(ctx context.Context, filter movement.ListFilter) (domain.ListResult[*movement.Document], error) {
	r.store.mu.RLock()
	all := make([]*movement.Document, 0)
	for _, d := range r.store.documents {
		if filter.Type != nil && d.Type != *filter.Type {
			continue
		}
		if filter.WarehouseID != nil && d.WarehouseID != *filter.WarehouseID &&
			(d.DestinationWarehouseID == nil || *d.DestinationWarehouseID != *filter.WarehouseID) {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if filter.DeviceID != "" && d.DeviceID != filter.DeviceID {
			continue
		}
		if filter.DateFrom != nil && d.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && d.Date.After(*filter.DateTo) {
			continue
		}
		all = append(all, &d)
	}
	r.store.mu.RUnlock()

	slices.SortFunc(all, func(a, b *movement.Document) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.Number, a.Number)
	})
	return domain.Page(all, filter.ListFilter), nil
}

// GetItems implements movement.Repository. Items are ordered by line number.
func (r *DocumentRepo) GetItems(ctx context.Context, docID id.ID) ([]movement.Item, error) {
	r.store.mu.RLock()
	items := make([]movement.Item, 0)
	for _, it := range r.store.docItems {
		if it.DocumentID == docID {
			items = append(items, it)
		}
	}
	r.store.mu.RUnlock()

	slices.SortFunc(items, func(a, b movement.Item) int { return cmp.Compare(a.LineNo, b.LineNo) })
	return items, nil
}

// GetItem implements movement.Repository.
func (r *DocumentRepo) GetItem(ctx context.Context, itemID id.ID) (movement.Item, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	it, ok := r.store.docItems[itemID]
	if !ok {
		return movement.Item{}, apperror.NewNotFound("document item", itemID)
	}
	return it, nil
}

// CreateItem implements movement.Repository.
func (r *DocumentRepo) CreateItem(ctx context.Context, item *movement.Item) error {
	return r.store.write(ctx, func() (func(), error) {
		if _, ok := r.store.documents[item.DocumentID]; !ok {
			return nil, apperror.NewNotFound("document", item.DocumentID)
		}
		r.store.docItems[item.ID] = *item
		itemID := item.ID
		return func() { delete(r.store.docItems, itemID) }, nil
	})
}

// UpdateItem implements movement.Repository.
func (r *DocumentRepo) UpdateItem(ctx context.Context, item *movement.Item) error {
	return r.store.write(ctx, func() (func(), error) {
		prev, ok := r.store.docItems[item.ID]
		if !ok {
			return nil, apperror.NewNotFound("document item", item.ID)
		}
		r.store.docItems[item.ID] = *item
		return func() { r.store.docItems[prev.ID] = prev }, nil
	})
}

// DeleteItem implements movement.Repository.
func (r *DocumentRepo) DeleteItem(ctx context.Context, itemID id.ID) error {
	return r.store.write(ctx, func() (func(), error) {
		prev, ok := r.store.docItems[itemID]
		if !ok {
			return nil, apperror.NewNotFound("document item", itemID)
		}
		delete(r.store.docItems, itemID)
		return func() { r.store.docItems[itemID] = prev }, nil
	})
}
