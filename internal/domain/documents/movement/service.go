package movement

import (
	"context"
	"fmt"
	"time"

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

var tracer = otel.Tracer("tsdstock/documents")

// Service provides the document lifecycle and its ledger effects.
type Service struct {
	repo      Repository
	stock     *stock.Service
	catalog   catalog.Validator
	numerator numerator.Generator
	txManager tx.Manager
	publisher events.Publisher
	hooks     *domain.HookRegistry[*Document]
}

// NewService creates a new document service.
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
		hooks:     domain.NewHookRegistry[*Document](),
	}
	s.hooks.OnBeforeCreate(audit.EnrichCreatedBy[*Document])
	s.hooks.OnBeforeUpdate(audit.EnrichUpdatedBy[*Document])
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Document] {
	return s.hooks
}

// Create stores a new draft document together with any items it carries.
// DeviceID defaults to the device of the session. An empty number is
// allocated from the device counter once the document is valid.
func (s *Service) Create(ctx context.Context, doc *Document) error {
	if !doc.Type.Valid() {
		return apperror.NewValidation("unknown document type").WithDetail("documentType", string(doc.Type))
	}
	base := entity.NewBaseEntity()
	if !id.IsNil(doc.ID) {
		base.ID = doc.ID
	}
	doc.BaseEntity = base
	doc.Status = StatusDraft
	doc.PostedAt, doc.CancelledAt = nil, nil
	if doc.Date.IsZero() {
		doc.Date = entity.StampNow()
	}

	if doc.DeviceID == "" {
		doc.DeviceID = appctx.GetDeviceID(ctx)
	}
	if err := s.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return err
	}
	if err := s.validateHeader(ctx, doc); err != nil {
		return err
	}
	for i := range doc.Items {
		it := &doc.Items[i]
		it.LineNo = i + 1
		if err := s.validateItem(ctx, it); err != nil {
			return err
		}
		if id.IsNil(it.ID) {
			it.ID = id.New()
		}
		it.DocumentID = doc.ID
		it.Recalculate()
	}

	if doc.Number == "" && doc.DeviceID != "" {
		n, err := s.numerator.NextDocumentNumber(ctx, doc.DeviceID, doc.Type.Tag())
		if err != nil {
			return apperror.Normalize(err)
		}
		doc.Number = n.DocumentNumber
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return err
		}
		for i := range doc.Items {
			if err := s.repo.CreateItem(ctx, &doc.Items[i]); err != nil {
				return fmt.Errorf("create item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return apperror.Normalize(err)
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "document created",
		"id", doc.ID,
		"number", doc.Number,
		"type", doc.Type)

	return nil
}

// Get returns a document with its items.
func (s *Service) Get(ctx context.Context, docID id.ID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, apperror.Normalize(err)
	}
	items, err := s.repo.GetItems(ctx, docID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("get items: %w", err))
	}
	doc.Items = items
	return doc, nil
}

// List returns document headers.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	res, err := s.repo.List(ctx, filter)
	if err != nil {
		return res, apperror.Normalize(err)
	}
	return res, nil
}

// Update edits the header of a draft. A non-zero doc.Version must match the stored one.
func (s *Service) Update(ctx context.Context, doc *Document) (*Document, error) {
	var updated *Document
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, doc.ID)
		if err != nil {
			return err
		}
		if err := current.CanModify(); err != nil {
			return err
		}
		if doc.Version != 0 && doc.Version != current.Version {
			return apperror.NewConcurrentModification("document", doc.ID)
		}

		current.Number = doc.Number
		current.WarehouseID = doc.WarehouseID
		current.DestinationWarehouseID = doc.DestinationWarehouseID
		current.Description = doc.Description
		if !doc.Date.IsZero() {
			current.Date = doc.Date
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

// Delete removes a draft and its items.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify(); err != nil {
			return err
		}
		return s.repo.Delete(ctx, docID)
	})
	if err != nil {
		return apperror.Normalize(err)
	}
	logger.Info(ctx, "document deleted", "id", docID)
	return nil
}

// AddItem appends a line to a draft.
func (s *Service) AddItem(ctx context.Context, docID id.ID, item Item) (Item, error) {
	if err := s.validateItem(ctx, &item); err != nil {
		return Item{}, err
	}

	err := s.editItems(ctx, docID, func(ctx context.Context, doc *Document) error {
		items, err := s.repo.GetItems(ctx, docID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		lineNo := 0
		for _, it := range items {
			lineNo = max(lineNo, it.LineNo)
		}

		item.ID = id.New()
		item.DocumentID = docID
		item.LineNo = lineNo + 1
		item.Recalculate()
		return s.repo.CreateItem(ctx, &item)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// UpdateItem replaces a line of a draft, keeping its position.
func (s *Service) UpdateItem(ctx context.Context, docID id.ID, item Item) (Item, error) {
	if err := s.validateItem(ctx, &item); err != nil {
		return Item{}, err
	}

	err := s.editItems(ctx, docID, func(ctx context.Context, doc *Document) error {
		stored, err := s.item(ctx, docID, item.ID)
		if err != nil {
			return err
		}
		item.DocumentID = docID
		item.LineNo = stored.LineNo
		item.Recalculate()
		return s.repo.UpdateItem(ctx, &item)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// RemoveItem deletes a line of a draft.
func (s *Service) RemoveItem(ctx context.Context, docID, itemID id.ID) error {
	return s.editItems(ctx, docID, func(ctx context.Context, doc *Document) error {
		if _, err := s.item(ctx, docID, itemID); err != nil {
			return err
		}
		return s.repo.DeleteItem(ctx, itemID)
	})
}

// editItems locks a draft, runs fn and bumps the document version.
func (s *Service) editItems(ctx context.Context, docID id.ID, fn func(ctx context.Context, doc *Document) error) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify(); err != nil {
			return err
		}
		if err := fn(ctx, doc); err != nil {
			return err
		}
		if err := s.hooks.Run(ctx, domain.BeforeUpdate, doc); err != nil {
			return err
		}
		return s.repo.Update(ctx, doc)
	})
	return apperror.Normalize(err)
}

func (s *Service) item(ctx context.Context, docID, itemID id.ID) (Item, error) {
	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return Item{}, err
	}
	if it.DocumentID != docID {
		return Item{}, apperror.NewNotFound("document item", itemID)
	}
	return it, nil
}

// Post applies the document to the ledger and moves it to Posted.
// Either every movement lands or none does.
func (s *Service) Post(ctx context.Context, docID id.ID) (_ *Document, err error) {
	ctx, span := tracer.Start(ctx, "document.post",
		trace.WithAttributes(attribute.String("document.id", docID.String())))
	defer func() { domain.EndSpan(span, err) }()

	var doc *Document
	var recorded int
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := d.CanPost(); err != nil {
			return err
		}
		if d.Items, err = s.repo.GetItems(ctx, docID); err != nil {
			return fmt.Errorf("get items: %w", err)
		}
		if len(d.Items) == 0 {
			return apperror.NewEmptyDocument(docID)
		}

		if err := s.stock.Lock(ctx, d.Keys()...); err != nil {
			return err
		}

		userID := appctx.GetUserID(ctx)
		now := entity.StampNow()
		if d.Type == TypeInventoryAdjustment {
			recorded, err = s.postAdjustment(ctx, d, userID, now)
			if err != nil {
				return err
			}
		} else {
			for _, m := range d.Movements(userID, now) {
				if _, err := s.stock.Record(ctx, m); err != nil {
					return err
				}
				recorded++
			}
		}

		d.MarkPosted(now)
		if err := s.hooks.Run(ctx, domain.BeforeUpdate, d); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, d); err != nil {
			return err
		}
		doc = d
		return s.publish(ctx, d, events.DocumentPosted)
	})
	if err != nil {
		return nil, apperror.Normalize(err)
	}

	s.afterTransition(ctx, doc)
	logger.Info(ctx, "document posted",
		"id", doc.ID,
		"number", doc.Number,
		"type", doc.Type,
		"movements", recorded)

	return doc, nil
}

// postAdjustment brings each item's line to the counted quantity.
// Items are applied in line order, so a repeated nomenclature sees the
// result of the previous line.
func (s *Service) postAdjustment(ctx context.Context, d *Document, userID string, now time.Time) (int, error) {
	recorded := 0
	for _, it := range d.Items {
		key := entity.StockKey{NomenclatureID: it.NomenclatureID, WarehouseID: d.WarehouseID}
		current, err := s.stock.Quantity(ctx, key)
		if err != nil {
			return recorded, err
		}
		delta := it.Quantity.Sub(current)
		if delta.IsZero() {
			continue
		}
		_, err = s.stock.Record(ctx, entity.StockMovement{
			ID:           id.New(),
			StockKey:     key,
			MovementType: entity.MovementInventory,
			Quantity:     delta,
			Reference:    entity.DocumentRef(d.ID),
			Date:         d.Date,
			UserID:       userID,
			Description:  it.Description,
			CreatedAt:    now,
		})
		if err != nil {
			return recorded, err
		}
		recorded++
	}
	return recorded, nil
}

// Cancel moves the document to Cancelled. A posted document has each of its
// journal entries reversed first; if a reversal would drive a line below
// zero or below its reservation, nothing changes and ReversalConflict is returned.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (_ *Document, err error) {
	ctx, span := tracer.Start(ctx, "document.cancel",
		trace.WithAttributes(attribute.String("document.id", docID.String())))
	defer func() { domain.EndSpan(span, err) }()

	var doc *Document
	var reversed int
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := d.CanCancel(); err != nil {
			return err
		}

		now := entity.StampNow()
		if d.Status == StatusPosted {
			if reversed, err = s.reverse(ctx, d, now); err != nil {
				return err
			}
		}

		d.MarkCancelled(now)
		if err := s.hooks.Run(ctx, domain.BeforeUpdate, d); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, d); err != nil {
			return err
		}
		doc = d
		return s.publish(ctx, d, events.DocumentCancelled)
	})
	if err != nil {
		return nil, apperror.Normalize(err)
	}

	s.afterTransition(ctx, doc)
	logger.Info(ctx, "document cancelled",
		"id", doc.ID,
		"number", doc.Number,
		"reversed", reversed)

	return doc, nil
}

func (s *Service) reverse(ctx context.Context, d *Document, now time.Time) (int, error) {
	entries, err := s.stock.MovementsFor(ctx, entity.DocumentRef(d.ID))
	if err != nil {
		return 0, err
	}

	keys := make([]entity.StockKey, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.StockKey)
	}
	if err := s.stock.Lock(ctx, keys...); err != nil {
		return 0, err
	}

	userID := appctx.GetUserID(ctx)
	for i, e := range entries {
		rev := e.Reversal(userID, now)
		line, err := s.stock.Current(ctx, rev.StockKey)
		if err != nil {
			return i, err
		}
		delta := rev.SignedDelta()
		if line.Quantity.Add(delta).LessThan(line.ReservedQuantity) {
			return i, apperror.NewReversalConflict(d.ID, rev.NomenclatureID, rev.WarehouseID, delta.Neg(), line.Available())
		}
		if _, err := s.stock.Record(ctx, rev); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

// Movements returns the journal entries recorded for a document.
func (s *Service) Movements(ctx context.Context, docID id.ID) ([]entity.StockMovement, error) {
	if _, err := s.repo.GetByID(ctx, docID); err != nil {
		return nil, apperror.Normalize(err)
	}
	ms, err := s.stock.MovementsFor(ctx, entity.DocumentRef(docID))
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return ms, nil
}

func (s *Service) validateHeader(ctx context.Context, doc *Document) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	refs := []catalog.Ref{{Kind: catalog.KindWarehouse, ID: doc.WarehouseID}}
	if doc.DestinationWarehouseID != nil {
		refs = append(refs, catalog.Ref{Kind: catalog.KindWarehouse, ID: *doc.DestinationWarehouseID})
	}
	return apperror.Normalize(catalog.RequireAll(ctx, s.catalog, refs...))
}

func (s *Service) validateItem(ctx context.Context, it *Item) error {
	it.Quantity = types.NormalizeQuantity(it.Quantity)
	if err := it.Validate(); err != nil {
		return err
	}
	return apperror.Normalize(catalog.RequireAll(ctx, s.catalog,
		catalog.Ref{Kind: catalog.KindNomenclature, ID: it.NomenclatureID},
		catalog.Ref{Kind: catalog.KindUnit, ID: it.UnitID},
	))
}

func (s *Service) publish(ctx context.Context, d *Document, eventType string) error {
	err := s.publisher.Publish(ctx, events.Event{
		AggregateType: events.AggregateDocument,
		AggregateID:   d.ID,
		EventType:     eventType,
		UserID:        appctx.GetUserID(ctx),
		Payload: map[string]any{
			"documentId":   d.ID,
			"number":       d.Number,
			"documentType": d.Type,
			"status":       d.Status,
			"warehouseId":  d.WarehouseID,
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (s *Service) afterTransition(ctx context.Context, d *Document) {
	if err := s.hooks.Run(ctx, domain.AfterTransition, d); err != nil {
		logger.Warn(ctx, "after-transition hook failed", "id", d.ID, "error", err)
	}
}
