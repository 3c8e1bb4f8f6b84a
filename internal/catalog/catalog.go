// Package catalog caches the product list and backs the billing search,
// the product editor and the stock adjustment screen.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
)

// Backend is the slice of the REST client the catalog needs.
type Backend interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int, in domain.ProductInput) (*domain.Product, error)
	AddStock(ctx context.Context, update domain.StockUpdate) error
	BulkAddStock(ctx context.Context, bulk domain.BulkStockUpdate) error
}

const loadFailedBanner = "Failed to load products. Please try again later."

type Catalog struct {
	backend Backend
	logger  *zap.Logger

	mu       sync.RWMutex
	products []domain.Product
	byID     map[int]domain.Product
	banner   string
	loaded   bool
}

func New(backend Backend, logger *zap.Logger) *Catalog {
	return &Catalog{
		backend: backend,
		logger:  logger,
		byID:    map[int]domain.Product{},
	}
}

// Refresh replaces the cached list. On failure the stale list is kept and
// the error banner is raised.
func (c *Catalog) Refresh(ctx context.Context) error {
	products, err := c.backend.ListProducts(ctx)
	if err != nil {
		c.logger.Error("Failed to fetch products", zap.Error(err))
		c.mu.Lock()
		c.banner = loadFailedBanner
		c.mu.Unlock()
		return fmt.Errorf("refresh catalog: %w", err)
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	byID := make(map[int]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	c.mu.Lock()
	c.products = products
	c.byID = byID
	c.banner = ""
	c.loaded = true
	c.mu.Unlock()

	c.logger.Debug("Catalog refreshed", zap.Int("products", len(products)))
	return nil
}

// List returns the cached products ordered by id.
func (c *Catalog) List() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Search matches term against English and Tamil names, case-insensitively.
func (c *Catalog) Search(term string) []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Product
	for _, p := range c.products {
		if p.Matches(term) {
			out = append(out, p)
		}
	}
	return out
}

// Product returns the latest fetched copy of a product.
func (c *Catalog) Product(id int) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	return p, ok
}

// LowStock lists products at or under their minimum stock level.
func (c *Catalog) LowStock() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Product
	for _, p := range c.products {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Catalog) Banner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.banner
}

func (c *Catalog) DismissBanner() {
	c.mu.Lock()
	c.banner = ""
	c.mu.Unlock()
}

func (c *Catalog) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	product, err := c.backend.CreateProduct(ctx, in)
	if err != nil {
		c.logger.Error("Failed to create product", zap.String("name", in.Name), zap.Error(err))
		return nil, fmt.Errorf("create product: %w", err)
	}
	c.logger.Info("Product created", zap.Int("product_id", product.ID), zap.String("name", product.Name))
	c.refreshAfterWrite(ctx)
	return product, nil
}

func (c *Catalog) UpdateProduct(ctx context.Context, id int, in domain.ProductInput) (*domain.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	product, err := c.backend.UpdateProduct(ctx, id, in)
	if err != nil {
		c.logger.Error("Failed to update product", zap.Int("product_id", id), zap.Error(err))
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	c.logger.Info("Product updated", zap.Int("product_id", id))
	c.refreshAfterWrite(ctx)
	return product, nil
}

// AdjustStock adds quantity (negative to remove) to a product's stock.
func (c *Catalog) AdjustStock(ctx context.Context, update domain.StockUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	if err := c.backend.AddStock(ctx, update); err != nil {
		c.logger.Error("Failed to update stock",
			zap.Int("product_id", update.ProductID),
			zap.Int("quantity", update.Quantity),
			zap.Error(err))
		return fmt.Errorf("adjust stock of %d: %w", update.ProductID, err)
	}
	c.logger.Info("Stock updated",
		zap.Int("product_id", update.ProductID),
		zap.Int("quantity", update.Quantity))
	c.refreshAfterWrite(ctx)
	return nil
}

func (c *Catalog) BulkAdjustStock(ctx context.Context, updates []domain.StockUpdate) error {
	if len(updates) == 0 {
		return &domain.ValidationError{Err: domain.ErrInvalidQuantity, Details: "no stock updates"}
	}
	for _, u := range updates {
		if err := u.Validate(); err != nil {
			return err
		}
	}
	if err := c.backend.BulkAddStock(ctx, domain.BulkStockUpdate{Updates: updates}); err != nil {
		c.logger.Error("Failed to bulk update stock", zap.Int("updates", len(updates)), zap.Error(err))
		return fmt.Errorf("bulk adjust stock: %w", err)
	}
	c.logger.Info("Bulk stock updated", zap.Int("updates", len(updates)))
	c.refreshAfterWrite(ctx)
	return nil
}

// refreshAfterWrite refetches after a successful write. A failure here only
// leaves the list stale until the next refresh.
func (c *Catalog) refreshAfterWrite(ctx context.Context) {
	_ = c.Refresh(ctx)
}
