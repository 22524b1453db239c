package memory

import (
	"context"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain/catalog"
)

type refKey struct {
	Kind catalog.Kind
	ID   id.ID
}

type refEntry struct {
	active   bool
	baseUnit id.ID
}

// Catalog implements catalog.Validator over reference rows seeded with the
// Add methods.
type Catalog struct {
	store *Store
}

// NewCatalog creates a catalog view over store.
func NewCatalog(store *Store) *Catalog {
	return &Catalog{store: store}
}

var _ catalog.Validator = (*Catalog)(nil)

func (c *Catalog) put(kind catalog.Kind, refID id.ID, e refEntry) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.refs[refKey{kind, refID}] = e
}

// AddWarehouse registers an active warehouse.
func (c *Catalog) AddWarehouse(warehouseID id.ID) {
	c.put(catalog.KindWarehouse, warehouseID, refEntry{active: true})
}

// AddUnit registers an active unit of measure.
func (c *Catalog) AddUnit(unitID id.ID) {
	c.put(catalog.KindUnit, unitID, refEntry{active: true})
}

// AddCategory registers an active category.
func (c *Catalog) AddCategory(categoryID id.ID) {
	c.put(catalog.KindCategory, categoryID, refEntry{active: true})
}

// AddNomenclature registers an active nomenclature stocked in baseUnit.
// The unit is registered too.
func (c *Catalog) AddNomenclature(nomenclatureID, baseUnit id.ID) {
	c.AddUnit(baseUnit)
	c.put(catalog.KindNomenclature, nomenclatureID, refEntry{active: true, baseUnit: baseUnit})
}

// SetActive toggles a registered entity. Unknown entities are ignored.
func (c *Catalog) SetActive(kind catalog.Kind, refID id.ID, active bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	k := refKey{kind, refID}
	if e, ok := c.store.refs[k]; ok {
		e.active = active
		c.store.refs[k] = e
	}
}

// Exists implements catalog.Validator.
func (c *Catalog) Exists(_ context.Context, kind catalog.Kind, refID id.ID) (bool, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	e, ok := c.store.refs[refKey{kind, refID}]
	return ok && e.active, nil
}

// BaseUnit implements catalog.Validator.
func (c *Catalog) BaseUnit(_ context.Context, nomenclatureID id.ID) (id.ID, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	e, ok := c.store.refs[refKey{catalog.KindNomenclature, nomenclatureID}]
	if !ok || !e.active {
		return id.Nil(), apperror.NewNotFound(string(catalog.KindNomenclature), nomenclatureID)
	}
	return e.baseUnit, nil
}
