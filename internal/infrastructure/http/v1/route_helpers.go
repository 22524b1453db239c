// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
)

// CRUDRouteHandler is implemented by the document and inventory handlers.
type CRUDRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// ItemRouteHandler edits the lines of a parent entity.
type ItemRouteHandler interface {
	AddItem(c *gin.Context)
	UpdateItem(c *gin.Context)
	RemoveItem(c *gin.Context)
}

// RegisterCRUDRoutes registers the list, create, read, update and delete routes.
//
// Usage:
//
//	handler := handlers.NewDocumentHandler(baseHandler, service)
//	RegisterCRUDRoutes(api.Group("/documents"), handler)
func RegisterCRUDRoutes(group *gin.RouterGroup, handler CRUDRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
}

// RegisterItemRoutes registers the line routes under /:id/items.
func RegisterItemRoutes(group *gin.RouterGroup, handler ItemRouteHandler) {
	group.POST("/:id/items", handler.AddItem)
	group.PUT("/:id/items/:itemId", handler.UpdateItem)
	group.DELETE("/:id/items/:itemId", handler.RemoveItem)
}
