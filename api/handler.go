package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"api_pos/internal/pos"
)

// inventoryHandler holds the pos service and implements the HTTP handlers
// used by the register and the stock screens.
type inventoryHandler struct {
	service *pos.Service
	logger  *zap.Logger
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(service *pos.Service, logger *zap.Logger) *inventoryHandler {
	return &inventoryHandler{
		service: service,
		logger:  logger,
	}
}

// writeError maps service errors to HTTP status codes.
func (h *inventoryHandler) writeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, pos.ErrProductNotFound), errors.Is(err, pos.ErrSaleNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pos.ErrOutOfStock),
		errors.Is(err, pos.ErrDuplicateBarcode),
		errors.Is(err, pos.ErrStockConflict):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, pos.ErrInvalidQuantity),
		errors.Is(err, pos.ErrInvalidProduct),
		errors.Is(err, pos.ErrInvalidPeriod):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// handleCatalog handles GET /products.
func (h *inventoryHandler) handleCatalog(ctx *gin.Context) {
	groups, err := h.service.Catalog(ctx.Request.Context())
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"categories": groups})
}

// handleLookupBarcode handles GET /products/barcode/:barcode.
func (h *inventoryHandler) handleLookupBarcode(ctx *gin.Context) {
	view, err := h.service.LookupBarcode(ctx.Request.Context(), ctx.Param("barcode"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// handleCreateProduct handles POST /products.
func (h *inventoryHandler) handleCreateProduct(ctx *gin.Context) {
	var req pos.NewProductRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	p, err := h.service.CreateProduct(ctx.Request.Context(), req)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, p)
}

// handleStockIn handles POST /products/barcode/:barcode/stock.
func (h *inventoryHandler) handleStockIn(ctx *gin.Context) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	p, err := h.service.StockIn(ctx.Request.Context(), ctx.Param("barcode"), req.Quantity)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, p)
}

// handleSell handles POST /sales. The body names the product either by ID
// or by barcode.
func (h *inventoryHandler) handleSell(ctx *gin.Context) {
	var req struct {
		ProductID string `json:"product_id"`
		Barcode   string `json:"barcode"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	var (
		sale *pos.Sale
		err  error
	)
	switch {
	case req.ProductID != "":
		sale, err = h.service.Sell(ctx.Request.Context(), req.ProductID)
	case req.Barcode != "":
		sale, err = h.service.SellByBarcode(ctx.Request.Context(), req.Barcode)
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "product_id or barcode is required"})
		return
	}
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, sale)
}

// handleSalesSummary handles GET /sales?period=today|month.
func (h *inventoryHandler) handleSalesSummary(ctx *gin.Context) {
	period, err := pos.ParsePeriod(ctx.Query("period"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	summary, err := h.service.SalesSummary(ctx.Request.Context(), period)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// handleGetSale handles GET /sales/:id.
func (h *inventoryHandler) handleGetSale(ctx *gin.Context) {
	sale, err := h.service.GetSale(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, sale)
}

// handleLowStock handles GET /alerts/low-stock.
func (h *inventoryHandler) handleLowStock(ctx *gin.Context) {
	threshold := h.service.LowStockThreshold()
	if raw := ctx.Query("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a non-negative integer"})
			return
		}
		threshold = n
	}

	products, err := h.service.LowStockProducts(ctx.Request.Context(), threshold)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	// Siempre devolvemos una lista, aunque esté vacía
	if products == nil {
		products = []*pos.Product{}
	}
	ctx.JSON(http.StatusOK, gin.H{"threshold": threshold, "count": len(products), "products": products})
}
