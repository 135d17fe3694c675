package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"api_pos/internal/pos"
)

// InitRoutes registers the inventory and register endpoints on the given Gin
// engine, binding each HTTP method and path to its handler.
func InitRoutes(e *gin.Engine, service *pos.Service, logger *zap.Logger) {
	h := NewInventoryHandler(service, logger)

	e.Use(RequestLogger(logger))

	products := e.Group("/products")
	products.GET("", h.handleCatalog)
	products.POST("", h.handleCreateProduct)
	products.GET("/barcode/:barcode", h.handleLookupBarcode)
	products.POST("/barcode/:barcode/stock", h.handleStockIn)

	sales := e.Group("/sales")
	sales.POST("", h.handleSell)
	sales.GET("", h.handleSalesSummary)
	sales.GET("/:id", h.handleGetSale)

	e.GET("/alerts/low-stock", h.handleLowStock)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
