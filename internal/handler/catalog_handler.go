package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/catalog"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/contacts"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
)

type CatalogHandler struct {
	catalog  *catalog.Catalog
	contacts *contacts.Directory
	logger   *zap.Logger
}

func NewCatalogHandler(catalog *catalog.Catalog, contacts *contacts.Directory, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalog,
		contacts: contacts,
		logger:   logger,
	}
}

func (h *CatalogHandler) Register(rg *gin.RouterGroup) {
	cat := rg.Group("/catalog")
	cat.GET("/products", h.ListProducts)
	cat.POST("/products/refresh", h.RefreshProducts)
	cat.POST("/products", h.CreateProduct)
	cat.PUT("/products/:id", h.UpdateProduct)
	cat.POST("/stock", h.AdjustStock)
	cat.POST("/stock/bulk", h.BulkAdjustStock)
	cat.GET("/low-stock", h.LowStock)
	cat.DELETE("/banner", h.DismissBanner)

	rg.GET("/contacts", h.SearchContacts)
	rg.POST("/contacts/refresh", h.RefreshContacts)
}

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"products": h.catalog.Search(c.Query("q")),
		"loaded":   h.catalog.Loaded(),
		"banner":   h.catalog.Banner(),
	})
}

// RefreshProducts refetches the product list. A failure keeps the stale
// list and raises the banner, which is returned alongside the error.
func (h *CatalogHandler) RefreshProducts(c *gin.Context) {
	if err := h.catalog.Refresh(c.Request.Context()); err != nil {
		writeError(c, h.logger, err, gin.H{
			"loaded": h.catalog.Loaded(),
			"banner": h.catalog.Banner(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": h.catalog.List(),
		"loaded":   h.catalog.Loaded(),
		"banner":   h.catalog.Banner(),
	})
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req domain.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}
	var req domain.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *CatalogHandler) AdjustStock(c *gin.Context) {
	var req domain.StockUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if err := h.catalog.AdjustStock(c.Request.Context(), req); err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	product, _ := h.catalog.Product(req.ProductID)
	c.JSON(http.StatusOK, product)
}

func (h *CatalogHandler) BulkAdjustStock(c *gin.Context) {
	var req domain.BulkStockUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if err := h.catalog.BulkAdjustStock(c.Request.Context(), req.Updates); err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": h.catalog.List()})
}

func (h *CatalogHandler) LowStock(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.catalog.LowStock()})
}

func (h *CatalogHandler) DismissBanner(c *gin.Context) {
	h.catalog.DismissBanner()
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) SearchContacts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"contacts": h.contacts.Search(c.Query("q"))})
}

func (h *CatalogHandler) RefreshContacts(c *gin.Context) {
	if err := h.contacts.Refresh(c.Request.Context()); err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": h.contacts.List()})
}
