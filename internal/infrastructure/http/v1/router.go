package v1

import (
	"github.com/gin-gonic/gin"

	"tsdstock/internal/domain/auth"
	"tsdstock/internal/domain/devices"
	"tsdstock/internal/domain/documents/inventory"
	"tsdstock/internal/domain/documents/movement"
	"tsdstock/internal/domain/idempotency"
	"tsdstock/internal/domain/registers/stock"
	"tsdstock/internal/infrastructure/http/v1/handlers"
	"tsdstock/internal/infrastructure/http/v1/middleware"
	"tsdstock/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// AuthService serves the auth endpoints and validates bearer tokens
	AuthService *auth.Service

	Documents   *movement.Service
	Inventories *inventory.Service
	Stock       *stock.Service
	Devices     *devices.Service

	// Idempotency enables X-Idempotency-Key handling when set
	Idempotency idempotency.Store

	// DB backs the readiness probe; nil for the in-memory backend
	DB handlers.Pinger

	AppName string
	Version string

	// Mode is the gin mode (debug, release, test)
	Mode string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.AppName, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()
	api := router.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)
	publicAuth := api.Group("/auth")
	{
		publicAuth.POST("/register", authHandler.Register)
		publicAuth.POST("/login", authHandler.Login)
	}

	protected := api.Group("")
	protected.Use(middleware.Auth(cfg.AuthService))
	if cfg.Idempotency != nil {
		protected.Use(middleware.Idempotency(cfg.Idempotency))
	}

	protected.GET("/auth/me", authHandler.Me)

	registerDocumentRoutes(protected.Group("/documents"), handlers.NewDocumentHandler(baseHandler, cfg.Documents))
	registerInventoryRoutes(protected.Group("/inventories"), handlers.NewInventoryHandler(baseHandler, cfg.Inventories))
	registerStockRoutes(protected.Group("/stock"), handlers.NewStockHandler(baseHandler, cfg.Stock))
	registerDeviceRoutes(protected.Group("/devices"), handlers.NewDeviceHandler(baseHandler, cfg.Devices))

	return router
}

func registerDocumentRoutes(rg *gin.RouterGroup, h *handlers.DocumentHandler) {
	RegisterCRUDRoutes(rg, h)
	RegisterItemRoutes(rg, h)
	rg.POST("/:id/post", h.Post)
	rg.POST("/:id/cancel", h.Cancel)
	rg.GET("/:id/movements", h.Movements)
}

func registerInventoryRoutes(rg *gin.RouterGroup, h *handlers.InventoryHandler) {
	RegisterCRUDRoutes(rg, h)
	RegisterItemRoutes(rg, h)
	rg.PUT("/:id/items/:itemId/count", h.Count)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/fill", h.Fill)
	rg.GET("/:id/comparison", h.Comparison)
}

func registerStockRoutes(rg *gin.RouterGroup, h *handlers.StockHandler) {
	rg.GET("", h.List)
	rg.GET("/summary", h.Summary)
	rg.GET("/movements", h.Movements)
	rg.GET("/:nomenclatureId/:warehouseId", h.Get)
	rg.POST("/reserve", h.Reserve)
	rg.POST("/release", h.Release)
}

func registerDeviceRoutes(rg *gin.RouterGroup, h *handlers.DeviceHandler) {
	rg.POST("/register", h.Register)
	rg.POST("/next-document-number", h.NextDocumentNumber)
	rg.GET("", h.List)
	rg.GET("/:deviceId", h.Get)
	rg.PUT("/:deviceId", h.Update)
	rg.PATCH("/:deviceId/active", h.SetActive)
}
