// Package main is the entry point for the tsdstock API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"tsdstock/internal/core/security"
	"tsdstock/internal/domain/auth"
	"tsdstock/internal/domain/devices"
	"tsdstock/internal/domain/documents/inventory"
	"tsdstock/internal/domain/documents/movement"
	"tsdstock/internal/domain/registers/stock"
	v1 "tsdstock/internal/infrastructure/http/v1"
	"tsdstock/pkg/config"
	"tsdstock/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting tsdstock server", "env", cfg.App.Env, "driver", cfg.DB.Driver, "version", version)

	// --- Storage ---
	var be *backend
	if cfg.DB.Driver == "memory" {
		log.Warn("using in-memory storage, data is lost on restart")
		be = newMemoryBackend(ctx, cfg)
	} else {
		be, err = newPostgresBackend(ctx, cfg)
		if err != nil {
			log.Fatalw("failed to initialize database", "error", err)
		}
		log.Info("database connection established")
	}
	defer be.close()

	// --- Auth ---
	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		log.Warn("JWT_SECRET is empty, using an insecure development secret")
		jwtSecret = "tsdstock-development-secret"
	}
	jwtConfig := auth.DefaultJWTConfig(jwtSecret)
	jwtConfig.Issuer = cfg.JWT.Issuer
	jwtConfig.AccessTokenTTL = cfg.JWT.AccessTTL

	authService := auth.NewService(
		be.users,
		be.txm,
		security.NewBcryptHasher(bcrypt.DefaultCost),
		auth.NewJWTService(jwtConfig),
		auth.DefaultServiceConfig(),
	)

	// --- Ledger ---
	stockService := stock.NewService(be.stock, be.txm)
	deviceService := devices.NewService(be.devices, be.txm)
	documentService := movement.NewService(be.documents, stockService, be.catalog, deviceService, be.txm, be.publisher)
	inventoryService := inventory.NewService(be.inventories, stockService, be.catalog, deviceService, be.txm, be.publisher)

	// --- Router ---
	mode := gin.ReleaseMode
	if cfg.App.IsDevelopment() {
		mode = gin.DebugMode
	}
	router := v1.NewRouter(v1.RouterConfig{
		Logger:      log,
		AuthService: authService,
		Documents:   documentService,
		Inventories: inventoryService,
		Stock:       stockService,
		Devices:     deviceService,
		Idempotency: be.idempotency,
		DB:          be.db,
		AppName:     cfg.App.Name,
		Version:     version,
		Mode:        mode,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
