package main

import (
	"context"
	"fmt"

	"tsdstock/internal/core/id"
	"tsdstock/internal/core/tx"
	"tsdstock/internal/domain/auth"
	"tsdstock/internal/domain/catalog"
	"tsdstock/internal/domain/devices"
	"tsdstock/internal/domain/documents/inventory"
	"tsdstock/internal/domain/documents/movement"
	"tsdstock/internal/domain/events"
	"tsdstock/internal/domain/idempotency"
	"tsdstock/internal/domain/registers/stock"
	"tsdstock/internal/infrastructure/cache"
	"tsdstock/internal/infrastructure/http/v1/handlers"
	"tsdstock/internal/infrastructure/storage/memory"
	"tsdstock/internal/infrastructure/storage/postgres"
	"tsdstock/internal/infrastructure/storage/postgres/auth_repo"
	"tsdstock/internal/infrastructure/storage/postgres/catalog_repo"
	"tsdstock/internal/infrastructure/storage/postgres/device_repo"
	"tsdstock/internal/infrastructure/storage/postgres/document_repo"
	"tsdstock/internal/infrastructure/storage/postgres/register_repo"
	"tsdstock/pkg/config"
	"tsdstock/pkg/logger"
)

// backend bundles the repositories of one storage driver.
type backend struct {
	txm         tx.Manager
	stock       stock.Repository
	documents   movement.Repository
	inventories inventory.Repository
	devices     devices.Repository
	users       auth.UserRepository
	catalog     catalog.Validator
	publisher   events.Publisher
	idempotency idempotency.Store

	// db is nil for the in-memory driver
	db    handlers.Pinger
	close func()
}

func newPostgresBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DB.ConnectionString())
	poolCfg.ApplicationName = cfg.App.Name
	poolCfg.MaxConns = cfg.DB.MaxConns
	poolCfg.MinConns = cfg.DB.MinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.DB.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	txOpts := postgres.DefaultTxOptions()
	txOpts.StatementTimeout = cfg.Ledger.StatementTimeout
	txm := postgres.NewTxManager(pool, txOpts)

	catalogCache := cache.NewCatalogCache(catalog_repo.NewValidator(txm), pool.Pool)
	catalogCache.Start(ctx)

	audit, err := postgres.NewAuditService(txm)
	if err != nil {
		catalogCache.Stop()
		pool.Close()
		return nil, err
	}

	return &backend{
		txm:         txm,
		stock:       register_repo.NewStockRepo(txm),
		documents:   document_repo.NewDocumentRepo(txm),
		inventories: document_repo.NewInventoryRepo(txm),
		devices:     device_repo.NewDeviceRepo(txm),
		users:       auth_repo.NewUserRepo(txm),
		catalog:     catalogCache,
		publisher:   events.Fanout{postgres.NewOutboxPublisher(txm), audit},
		idempotency: postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL),
		db:          pool,
		close:       func() {
			catalogCache.Stop()
			pool.Close()
		},
	}, nil
}

// newMemoryBackend keeps everything in process. The catalog holds a single
// demo warehouse, unit and nomenclature so documents can be exercised.
func newMemoryBackend(ctx context.Context, cfg *config.Config) *backend {
	store := memory.NewStore()
	cat := memory.NewCatalog(store)

	warehouseID, unitID, nomenclatureID := id.New(), id.New(), id.New()
	cat.AddWarehouse(warehouseID)
	cat.AddUnit(unitID)
	cat.AddNomenclature(nomenclatureID, unitID)
	logger.Info(ctx, "in-memory catalog seeded",
		"warehouse_id", warehouseID,
		"unit_id", unitID,
		"nomenclature_id", nomenclatureID)

	return &backend{
		txm:         store,
		stock:       memory.NewStockRepo(store),
		documents:   memory.NewDocumentRepo(store),
		inventories: memory.NewInventoryRepo(store),
		devices:     memory.NewDeviceRepo(store),
		users:       memory.NewUserRepo(store),
		catalog:     cat,
		publisher:   memory.NewOutbox(store),
		idempotency: memory.NewIdempotencyStore(cfg.Idempotency.TTL),
		close:       func() {},
	}
}
