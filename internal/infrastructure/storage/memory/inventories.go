package memory

import (
	"cmp"
	"context"
	"slices"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain"
	"tsdstock/internal/domain/documents/inventory"
)

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	store *Store
}

// NewInventoryRepo creates an inventory repository over store.
func NewInventoryRepo(store *Store) *InventoryRepo {
	return &InventoryRepo{store: store}
}

var _ inventory.Repository = (*InventoryRepo)(nil)

// Create implements inventory.Repository.
func (r *InventoryRepo) Create(ctx context.Context, inv *inventory.Inventory) error {
	return r.store.write(ctx, func() (func(), error) {
		if _, ok := r.store.inventories[inv.ID]; ok {
			return nil, apperror.NewDuplicate("inventory", "id", inv.ID.String())
		}
		for _, x := range r.store.inventories {
			if x.Number == inv.Number {
				return nil, apperror.NewDuplicate("inventory", "number", inv.Number)
			}
		}
		stored := *inv
		stored.Items = nil
		r.store.inventories[inv.ID] = stored
		invID := inv.ID
		return func() { delete(r.store.inventories, invID) }, nil
	})
}

// GetByID implements inventory.Repository.
func (r *InventoryRepo) GetByID(ctx context.Context, invID id.ID) (*inventory.Inventory, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	inv, ok := r.store.inventories[invID]
	if !ok {
		return nil, apperror.NewNotFound("inventory", invID)
	}
	return &inv, nil
}

// GetForUpdate implements inventory.Repository.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, invID id.ID) (*inventory.Inventory, error) {
	if err := r.store.lock(ctx, "inventory:"+invID.String()); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, invID)
}

// Update implements inventory.Repository.
func (r *InventoryRepo) Update(ctx context.Context, inv *inventory.Inventory) error {
	return r.store.write(ctx, func() (func(), error) {
		prev, ok := r.store.inventories[inv.ID]
		if !ok {
			return nil, apperror.NewNotFound("inventory", inv.ID)
		}
		if prev.Version != inv.Version {
			return nil, apperror.NewConcurrentModification("inventory", inv.ID)
		}

		inv.Touch()
		stored := *inv
		stored.Items = nil
		r.store.inventories[inv.ID] = stored
		return func() { r.store.inventories[prev.ID] = prev }, nil
	})
}

// Delete implements inventory.Repository. Items go with the inventory.
func (r *InventoryRepo) Delete(ctx context.Context, invID id.ID) error {
	return r.store.write(ctx, func() (func(), error) {
		prev, ok := r.store.inventories[invID]
		if !ok {
			return nil, apperror.NewNotFound("inventory", invID)
		}
		var items []inventory.Item
		for itemID, it := range r.store.invItems {
			if it.InventoryID == invID {
				items = append(items, it)
				delete(r.store.invItems, itemID)
			}
		}
		delete(r.store.inventories, invID)
		return func() {
			r.store.inventories[invID] = prev
			for _, it := range items {
				r.store.invItems[it.ID] = it
			}
		}, nil
	})
}

// List implements inventory.Repository. Inventories are ordered newest first.
func (r *InventoryRepo) List(ctx context.Context, filter inventory.ListFilter) (domain.ListResult[*inventory.Inventory], error) {
	r.store.mu.RLock()
	all := make([]*inventory.Inventory, 0)
	for _, inv := range r.store.inventories {
		if filter.WarehouseID != nil && inv.WarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		if filter.DateFrom != nil && inv.DateStart.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && inv.DateStart.After(*filter.DateTo) {
			continue
		}
		all = append(all, &inv)
	}
	r.store.mu.RUnlock()

	slices.SortFunc(all, func(a, b *inventory.Inventory) int {
		if c := b.DateStart.Compare(a.DateStart); c != 0 {
			return c
		}
		return cmp.Compare(b.Number, a.Number)
	})
	return domain.Page(all, filter.ListFilter), nil
}

// GetItems implements inventory.Repository. Items are ordered by creation.
func (r *InventoryRepo) GetItems(ctx context.Context, invID id.ID) ([]inventory.Item, error) {
	r.store.mu.RLock()
	items := make([]inventory.Item, 0)
	for _, it := range r.store.invItems {
		if it.InventoryID == invID {
			items = append(items, it)
		}
	}
	r.store.mu.RUnlock()

	slices.SortFunc(items, func(a, b inventory.Item) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return items, nil
}

// GetItem implements inventory.Repository.
func (r *InventoryRepo) GetItem(ctx context.Context, itemID id.ID) (inventory.Item, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	it, ok := r.store.invItems[itemID]
	if !ok {
		return inventory.Item{}, apperror.NewNotFound("inventory item", itemID)
	}
	return it, nil
}

// CreateItem implements inventory.Repository.
func (r *InventoryRepo) CreateItem(ctx context.Context, item *inventory.Item) error {
	return r.store.write(ctx, func() (func(), error) {
		if _, ok := r.store.inventories[item.InventoryID]; !ok {
			return nil, apperror.NewNotFound("inventory", item.InventoryID)
		}
		for _, it := range r.store.invItems {
			if it.InventoryID == item.InventoryID && it.NomenclatureID == item.NomenclatureID {
				return nil, apperror.NewDuplicate("inventory item", "nomenclature_id", item.NomenclatureID.String())
			}
		}
		r.store.invItems[item.ID] = *item
		itemID := item.ID
		return func() { delete(r.store.invItems, itemID) }, nil
	})
}

// UpdateItem implements inventory.Repository.
func (r *InventoryRepo) UpdateItem(ctx context.Context, item *inventory.Item) error {
	return r.store.write(ctx, func() (func(), error) {
		prev, ok := r.store.invItems[item.ID]
		if !ok {
			return nil, apperror.NewNotFound("inventory item", item.ID)
		}
		r.store.invItems[item.ID] = *item
		return func() { r.store.invItems[prev.ID] = prev }, nil
	})
}

// DeleteItem implements inventory.Repository.
func (r *InventoryRepo) DeleteItem(ctx context.Context, itemID id.ID) error {
	return r.store.write(ctx, func() (func(), error) {
		prev, ok := r.store.invItems[itemID]
		if !ok {
			return nil, apperror.NewNotFound("inventory item", itemID)
		}
		delete(r.store.invItems, itemID)
		return func() { r.store.invItems[itemID] = prev }, nil
	})
}
