// Package main provides a CLI tool for seeding the database with reference
// data and an administrator account.
package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/security"
	"tsdstock/internal/core/types"
	"tsdstock/internal/domain/auth"
	"tsdstock/internal/domain/registers/stock"
	"tsdstock/internal/infrastructure/storage/postgres"
	"tsdstock/internal/infrastructure/storage/postgres/auth_repo"
	"tsdstock/internal/infrastructure/storage/postgres/register_repo"
	"tsdstock/pkg/config"
	"tsdstock/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := logger.WithLogger(context.Background(), log)

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DB.ConnectionString()))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}

	txm := postgres.NewTxManager(pool, postgres.DefaultTxOptions())

	if err := seedAdminUser(ctx, txm, cfg, log); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		data := newDemoData()
		seeded, err := seedCatalog(ctx, txm, data, log)
		if err != nil {
			log.Fatalw("failed to seed catalog", "error", err)
		}
		if seeded {
			if err := seedStock(ctx, txm, data, log); err != nil {
				log.Fatalw("failed to seed stock", "error", err)
			}
		}
	}

	log.Info("seeding completed successfully")
}

func seedAdminUser(ctx context.Context, txm *postgres.TxManager, cfg *config.Config, log *logger.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@tsdstock.local"
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "Admin123!"
	}

	userRepo := auth_repo.NewUserRepo(txm)
	existing, err := userRepo.GetByLogin(ctx, adminEmail)
	if err == nil {
		log.Infow("admin user already exists", "email", adminEmail, "user_id", existing.ID)
		return nil
	}
	if !apperror.IsNotFound(err) {
		return fmt.Errorf("check admin exists: %w", err)
	}

	svc := auth.NewService(
		userRepo,
		txm,
		security.NewBcryptHasher(bcrypt.DefaultCost),
		auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWT.Secret)),
		auth.DefaultServiceConfig(),
	)
	user, _, err := svc.Register(ctx, auth.RegisterRequest{
		Username: "admin",
		Email:    adminEmail,
		Password: adminPassword,
		FullName: "System Admin",
	})
	if err != nil {
		return err
	}

	log.Infow("admin user created",
		"email", adminEmail,
		"user_id", user.ID,
	)
	return nil
}

// demoData is a small warehouse: two sites, a handful of goods with barcodes.
type demoData struct {
	units        [][]any
	categories   [][]any
	warehouses   [][]any
	nomenclature [][]any
	barcodes     [][]any
	openingStock []entity.StockMovement
}

func newDemoData() demoData {
	pcs, kg, box := id.New(), id.New(), id.New()
	food, tools := id.New(), id.New()
	mainWH, shopWH := id.New(), id.New()

	d := demoData{
		units: [][]any{
			{pcs, "PCS", "шт"},
			{kg, "KG", "кг"},
			{box, "BOX", "упак"},
		},
		categories: [][]any{
			{food, "Продукты"},
			{tools, "Инструменты"},
		},
		warehouses: [][]any{
			{mainWH, "MAIN", "Основной склад", ""},
			{shopWH, "SHOP", "Торговый зал", ""},
		},
	}

	goods := []struct {
		article, name, barcode string
		category, unit         id.ID
		opening                int64
	}{
		{"A-001", "Сахар 1 кг", "4600000000011", food, pcs, 120},
		{"A-002", "Мука пшеничная", "4600000000028", food, kg, 300},
		{"A-003", "Чай черный", "4600000000035", food, box, 48},
		{"T-001", "Отвертка крестовая", "4600000000103", tools, pcs, 25},
		{"T-002", "Молоток", "4600000000110", tools, pcs, 10},
	}
	for _, g := range goods {
		nomID := id.New()
		d.nomenclature = append(d.nomenclature, []any{nomID, g.article, g.name, g.category, g.unit})
		d.barcodes = append(d.barcodes, []any{g.barcode, nomID, g.unit})
		d.openingStock = append(d.openingStock, entity.StockMovement{
			StockKey: entity.StockKey{NomenclatureID: nomID, WarehouseID: mainWH},
			Quantity: types.NewQuantity(g.opening),
		})
	}
	return d
}

// seedCatalog loads the demo catalog into empty tables. It reports false when
// the catalog already had data.
func seedCatalog(ctx context.Context, txm *postgres.TxManager, d demoData, log *logger.Logger) (bool, error) {
	var units int64
	if err := txm.GetQuerier(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM cat_units`).Scan(&units); err != nil {
		return false, fmt.Errorf("count units: %w", err)
	}
	if units > 0 {
		log.Info("catalog already populated, skipping")
		return false, nil
	}

	inserter := postgres.NewBatchInserter(txm)
	tables := []struct {
		name    string
		columns []string
		rows    [][]any
	}{
		{"cat_units", []string{"id", "code", "name"}, d.units},
		{"cat_categories", []string{"id", "name"}, d.categories},
		{"cat_warehouses", []string{"id", "code", "name", "address"}, d.warehouses},
		{"cat_nomenclature", []string{"id", "article", "name", "category_id", "base_unit_id"}, d.nomenclature},
		{"cat_barcodes", []string{"barcode", "nomenclature_id", "unit_id"}, d.barcodes},
	}

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, t := range tables {
			n, err := inserter.CopyFromSlice(ctx, t.name, t.columns, t.rows)
			if err != nil {
				return err
			}
			log.Infow("seeded table", "table", t.name, "rows", n)
		}
		return nil
	})
	return err == nil, err
}

// seedStock books opening balances as adjustments so the movement journal
// explains every quantity.
func seedStock(ctx context.Context, txm *postgres.TxManager, d demoData, log *logger.Logger) error {
	svc := stock.NewService(register_repo.NewStockRepo(txm), txm)
	for _, m := range d.openingStock {
		line, err := svc.Adjust(ctx, m.StockKey, m.Quantity, "opening balance")
		if err != nil {
			return err
		}
		log.Infow("opening balance booked",
			"nomenclature_id", line.NomenclatureID,
			"warehouse_id", line.WarehouseID,
			"quantity", line.Quantity)
	}
	return nil
}
