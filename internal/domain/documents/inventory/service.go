package inventory

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tsdstock/internal/core/apperror"
	appctx "tsdstock/internal/core/context"
	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/numerator"
	"tsdstock/internal/core/tx"
	"tsdstock/internal/core/types"
	"tsdstock/internal/domain"
	"tsdstock/internal/domain/audit"
	"tsdstock/internal/domain/catalog"
	"tsdstock/internal/domain/events"
	"tsdstock/internal/domain/registers/stock"
	"tsdstock/pkg/logger"
)

var tracer = otel.Tracer("tsdstock/inventory")

// Service provides business operations for inventories.
type Service struct {
	repo      Repository
	stock     *stock.Service
	catalog   catalog.Validator
	numerator numerator.Generator
	txManager tx.Manager
	publisher events.Publisher
	hooks     *domain.HookRegistry[*Inventory]
}

// NewService creates a new inventory service.
func NewService(
	repo Repository,
	stockService *stock.Service,
	validator catalog.Validator,
	numbers numerator.Generator,
	txManager tx.Manager,
	publisher events.Publisher,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	s := &Service{
		repo:      repo,
		stock:     stockService,
		catalog:   validator,
		numerator: numbers,
		txManager: txManager,
		publisher: publisher,
		hooks:     domain.NewHookRegistry[*Inventory](),
	}
	s.hooks.OnBeforeCreate(audit.EnrichCreatedBy[*Inventory])
	s.hooks.OnBeforeUpdate(audit.EnrichUpdatedBy[*Inventory])
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Inventory] {
	return s.hooks
}

// Create opens a new inventory. Items are added afterwards.
func (s *Service) Create(ctx context.Context, inv *Inventory) error {
	base := entity.NewBaseEntity()
	if !id.IsNil(inv.ID) {
		base.ID = inv.ID
	}
	inv.BaseEntity = base
	inv.Status = StatusInProgress
	inv.DateEnd = nil
	inv.Items = nil
	if inv.DateStart.IsZero() {
		inv.DateStart = entity.StampNow()
	}

	if inv.DeviceID == "" {
		inv.DeviceID = appctx.GetDeviceID(ctx)
	}
	if err := s.hooks.Run(ctx, domain.BeforeCreate, inv); err != nil {
		return err
	}
	if err := s.validateHeader(ctx, inv); err != nil {
		return err
	}

	if inv.Number == "" && inv.DeviceID != "" {
		n, err := s.numerator.NextDocumentNumber(ctx, inv.DeviceID, "inventory")
		if err != nil {
			return apperror.Normalize(err)
		}
		inv.Number = n.DocumentNumber
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, inv)
	})
	if err != nil {
		return apperror.Normalize(err)
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, inv); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "inventory created",
		"id", inv.ID,
		"number", inv.Number,
		"warehouse_id", inv.WarehouseID)

	return nil
}

// Get returns an inventory with its items.
func (s *Service) Get(ctx context.Context, invID id.ID) (*Inventory, error) {
	inv, err := s.repo.GetByID(ctx, invID)
	if err != nil {
		return nil, apperror.Normalize(err)
	}
	if inv.Items, err = s.repo.GetItems(ctx, invID); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("get items: %w", err))
	}
	return inv, nil
}

// List returns inventory headers.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Inventory], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	res, err := s.repo.List(ctx, filter)
	if err != nil {
		return res, apperror.Normalize(err)
	}
	return res, nil
}

// Update edits the header of an inventory in progress. The warehouse can
// only change while no items have been snapshotted.
func (s *Service) Update(ctx context.Context, inv *Inventory) (*Inventory, error) {
	var updated *Inventory
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, inv.ID)
		if err != nil {
			return err
		}
		if err := current.CanModify(); err != nil {
			return err
		}
		if inv.Version != 0 && inv.Version != current.Version {
			return apperror.NewConcurrentModification("inventory", inv.ID)
		}

		if inv.WarehouseID != current.WarehouseID {
			items, err := s.repo.GetItems(ctx, inv.ID)
			if err != nil {
				return fmt.Errorf("get items: %w", err)
			}
			if len(items) > 0 {
				return apperror.NewValidation("warehouse cannot change once items are added").
					WithDetail("field", "warehouseId")
			}
		}

		current.Number = inv.Number
		current.WarehouseID = inv.WarehouseID
		current.Description = inv.Description
		if !inv.DateStart.IsZero() {
			current.DateStart = inv.DateStart
		}

		if err := s.hooks.Run(ctx, domain.BeforeUpdate, current); err != nil {
			return err
		}
		if err := s.validateHeader(ctx, current); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, apperror.Normalize(err)
	}
	return updated, nil
}

// Delete removes an inventory that has not been completed.
func (s *Service) Delete(ctx context.Context, invID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetForUpdate(ctx, invID)
		if err != nil {
			return err
		}
		if inv.Status == StatusCompleted {
			return apperror.NewNotEditable("inventory", string(inv.Status))
		}
		return s.repo.Delete(ctx, invID)
	})
	if err != nil {
		return apperror.Normalize(err)
	}
	logger.Info(ctx, "inventory deleted", "id", invID)
	return nil
}

// AddItem adds a nomenclature to the count and snapshots its ledger quantity.
func (s *Service) AddItem(ctx context.Context, invID, nomenclatureID, unitID id.ID) (Item, error) {
	err := catalog.RequireAll(ctx, s.catalog,
		catalog.Ref{Kind: catalog.KindNomenclature, ID: nomenclatureID},
		catalog.Ref{Kind: catalog.KindUnit, ID: unitID},
	)
	if err != nil {
		return Item{}, apperror.Normalize(err)
	}

	var item Item
	err = s.editItems(ctx, invID, func(ctx context.Context, inv *Inventory) error {
		items, err := s.repo.GetItems(ctx, invID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		for _, it := range items {
			if it.NomenclatureID == nomenclatureID {
				return apperror.NewValidation("nomenclature is already in the inventory").
					WithDetail("nomenclatureId", nomenclatureID)
			}
		}

		planned, err := s.stock.Quantity(ctx, entity.StockKey{NomenclatureID: nomenclatureID, WarehouseID: inv.WarehouseID})
		if err != nil {
			return err
		}
		item = newItem(invID, nomenclatureID, unitID, planned)
		return s.repo.CreateItem(ctx, &item)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// FillFromStock adds an item for every non-zero ledger line of the warehouse
// not yet in the inventory. It returns the added items.
func (s *Service) FillFromStock(ctx context.Context, invID id.ID) ([]Item, error) {
	var added []Item
	err := s.editItems(ctx, invID, func(ctx context.Context, inv *Inventory) error {
		items, err := s.repo.GetItems(ctx, invID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		present := make(map[id.ID]struct{}, len(items))
		for _, it := range items {
			present[it.NomenclatureID] = struct{}{}
		}

		lines, err := s.stock.WarehouseLines(ctx, inv.WarehouseID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			if _, ok := present[l.NomenclatureID]; ok {
				continue
			}
			unitID, err := s.catalog.BaseUnit(ctx, l.NomenclatureID)
			if err != nil {
				return fmt.Errorf("base unit of %s: %w", l.NomenclatureID, err)
			}
			it := newItem(invID, l.NomenclatureID, unitID, l.Quantity)
			if err := s.repo.CreateItem(ctx, &it); err != nil {
				return err
			}
			added = append(added, it)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory filled from stock", "id", invID, "added", len(added))
	return added, nil
}

// RecordCount sets the actual quantity of an item. The last write wins.
// An empty counter defaults to the acting user.
func (s *Service) RecordCount(ctx context.Context, itemID id.ID, actual types.Quantity, counter string) (Item, error) {
	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return Item{}, apperror.Normalize(err)
	}
	return s.CountItem(ctx, it.InventoryID, itemID, actual, counter)
}

// CountItem is RecordCount for an item that must belong to invID.
func (s *Service) CountItem(ctx context.Context, invID, itemID id.ID, actual types.Quantity, counter string) (Item, error) {
	if actual.IsNegative() {
		return Item{}, apperror.NewValidation("actual quantity cannot be negative").
			WithDetail("field", "actualQuantity")
	}
	if counter == "" {
		counter = appctx.GetUserID(ctx)
	}

	var item Item
	err := s.editItems(ctx, invID, func(ctx context.Context, inv *Inventory) error {
		it, err := s.item(ctx, invID, itemID)
		if err != nil {
			return err
		}
		if err := it.SetCount(actual, counter, entity.StampNow()); err != nil {
			return err
		}
		if err := s.repo.UpdateItem(ctx, &it); err != nil {
			return err
		}
		item = it
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// UpdateItem changes the unit of an item.
func (s *Service) UpdateItem(ctx context.Context, invID, itemID, unitID id.ID) (Item, error) {
	if err := catalog.Require(ctx, s.catalog, catalog.KindUnit, unitID); err != nil {
		return Item{}, apperror.Normalize(err)
	}

	var item Item
	err := s.editItems(ctx, invID, func(ctx context.Context, inv *Inventory) error {
		it, err := s.item(ctx, invID, itemID)
		if err != nil {
			return err
		}
		it.UnitID = unitID
		if err := s.repo.UpdateItem(ctx, &it); err != nil {
			return err
		}
		item = it
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// RemoveItem deletes an item.
func (s *Service) RemoveItem(ctx context.Context, invID, itemID id.ID) error {
	return s.editItems(ctx, invID, func(ctx context.Context, inv *Inventory) error {
		if _, err := s.item(ctx, invID, itemID); err != nil {
			return err
		}
		return s.repo.DeleteItem(ctx, itemID)
	})
}

// editItems locks an inventory in progress, runs fn and bumps its version.
func (s *Service) editItems(ctx context.Context, invID id.ID, fn func(ctx context.Context, inv *Inventory) error) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetForUpdate(ctx, invID)
		if err != nil {
			return err
		}
		if err := inv.CanModify(); err != nil {
			return err
		}
		if err := fn(ctx, inv); err != nil {
			return err
		}
		if err := s.hooks.Run(ctx, domain.BeforeUpdate, inv); err != nil {
			return err
		}
		return s.repo.Update(ctx, inv)
	})
	return apperror.Normalize(err)
}

func (s *Service) item(ctx context.Context, invID, itemID id.ID) (Item, error) {
	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return Item{}, err
	}
	if it.InventoryID != invID {
		return Item{}, apperror.NewNotFound("inventory item", itemID)
	}
	return it, nil
}

// Complete applies every counted difference to the ledger and moves the
// inventory to Completed. Differences land on the current ledger value, so
// movements recorded since the snapshot are preserved.
func (s *Service) Complete(ctx context.Context, invID id.ID) (_ *Inventory, err error) {
	ctx, span := tracer.Start(ctx, "inventory.complete",
		trace.WithAttributes(attribute.String("inventory.id", invID.String())))
	defer func() { domain.EndSpan(span, err) }()

	var inv *Inventory
	var recorded int
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, invID)
		if err != nil {
			return err
		}
		if current.Items, err = s.repo.GetItems(ctx, invID); err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		if err := current.CanComplete(); err != nil {
			return err
		}

		if err := s.stock.Lock(ctx, current.Keys()...); err != nil {
			return err
		}

		userID := appctx.GetUserID(ctx)
		now := entity.StampNow()
		for _, it := range current.Items {
			if it.Difference.IsZero() {
				continue
			}
			_, err := s.stock.Record(ctx, entity.StockMovement{
				ID:           id.New(),
				StockKey:     entity.StockKey{NomenclatureID: it.NomenclatureID, WarehouseID: current.WarehouseID},
				MovementType: entity.MovementInventory,
				Quantity:     *it.Difference,
				Reference:    entity.InventoryRef(invID),
				Date:         now,
				UserID:       userID,
				Description:  "inventory " + current.Number,
				CreatedAt:    now,
			})
			if err != nil {
				return err
			}
			recorded++
		}

		current.MarkCompleted(now)
		if err := s.hooks.Run(ctx, domain.BeforeUpdate, current); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}
		inv = current
		return s.publish(ctx, current, events.InventoryCompleted)
	})
	if err != nil {
		return nil, apperror.Normalize(err)
	}

	s.afterTransition(ctx, inv)
	logger.Info(ctx, "inventory completed",
		"id", inv.ID,
		"number", inv.Number,
		"movements", recorded)

	return inv, nil
}

// Cancel abandons an inventory in progress. The ledger is not touched.
func (s *Service) Cancel(ctx context.Context, invID id.ID) (_ *Inventory, err error) {
	ctx, span := tracer.Start(ctx, "inventory.cancel",
		trace.WithAttributes(attribute.String("inventory.id", invID.String())))
	defer func() { domain.EndSpan(span, err) }()

	var inv *Inventory
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, invID)
		if err != nil {
			return err
		}
		if err := current.CanCancel(); err != nil {
			return err
		}
		current.MarkCancelled()
		if err := s.hooks.Run(ctx, domain.BeforeUpdate, current); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}
		inv = current
		return s.publish(ctx, current, events.InventoryCancelled)
	})
	if err != nil {
		return nil, apperror.Normalize(err)
	}

	s.afterTransition(ctx, inv)
	logger.Info(ctx, "inventory cancelled", "id", inv.ID, "number", inv.Number)
	return inv, nil
}

// Comparison returns planned versus actual quantities with surplus and shortage totals.
func (s *Service) Comparison(ctx context.Context, invID id.ID) (Comparison, error) {
	inv, err := s.Get(ctx, invID)
	if err != nil {
		return Comparison{}, err
	}
	return inv.Compare(), nil
}

// Movements returns the journal entries recorded by a completed inventory.
func (s *Service) Movements(ctx context.Context, invID id.ID) ([]entity.StockMovement, error) {
	if _, err := s.repo.GetByID(ctx, invID); err != nil {
		return nil, apperror.Normalize(err)
	}
	ms, err := s.stock.MovementsFor(ctx, entity.InventoryRef(invID))
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return ms, nil
}

func (s *Service) validateHeader(ctx context.Context, inv *Inventory) error {
	if err := inv.Validate(ctx); err != nil {
		return err
	}
	return apperror.Normalize(catalog.Require(ctx, s.catalog, catalog.KindWarehouse, inv.WarehouseID))
}

func (s *Service) publish(ctx context.Context, inv *Inventory, eventType string) error {
	err := s.publisher.Publish(ctx, events.Event{
		AggregateType: events.AggregateInventory,
		AggregateID:   inv.ID,
		EventType:     eventType,
		UserID:        appctx.GetUserID(ctx),
		Payload: map[string]any{
			"inventoryId": inv.ID,
			"number":      inv.Number,
			"status":      inv.Status,
			"warehouseId": inv.WarehouseID,
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (s *Service) afterTransition(ctx context.Context, inv *Inventory) {
	if err := s.hooks.Run(ctx, domain.AfterTransition, inv); err != nil {
		logger.Warn(ctx, "after-transition hook failed", "id", inv.ID, "error", err)
	}
}

func newItem(invID, nomenclatureID, unitID id.ID, planned types.Quantity) Item {
	return Item{
		ID:              id.New(),
		InventoryID:     invID,
		NomenclatureID:  nomenclatureID,
		UnitID:          unitID,
		PlannedQuantity: planned,
		CreatedAt:       entity.StampNow(),
	}
}
