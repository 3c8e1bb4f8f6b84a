package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// The backend speaks plain JSON numbers for money.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a catalog entry as served by the shop backend.
type Product struct {
	ID            int             `json:"_id"`
	Name          string          `json:"name"`
	NameTamil     string          `json:"nameTamil"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	MinStockLevel int             `json:"minStockLevel"`
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

func (p Product) LowStock() bool {
	return p.Stock <= p.MinStockLevel
}

// DisplayName prefers the Tamil name, which is what the receipt prints.
func (p Product) DisplayName() string {
	if p.NameTamil != "" {
		return p.NameTamil
	}
	return p.Name
}

// Matches reports whether term is a case-insensitive substring of either name.
func (p Product) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.NameTamil), term)
}

// ProductInput is the body of POST /api/products and PUT /api/products/{id}.
type ProductInput struct {
	Name          string          `json:"name"`
	NameTamil     string          `json:"nameTamil"`
	Price         decimal.Decimal `json:"price"`
	MinStockLevel int             `json:"minStockLevel,omitempty"`
}

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.NameTamil) == "" {
		return &ValidationError{Err: ErrInvalidProduct, Details: "both English and Tamil names are required"}
	}
	if in.Price.IsNegative() {
		return &ValidationError{Err: ErrInvalidProduct, Details: "price must not be negative"}
	}
	if in.MinStockLevel < 0 {
		return &ValidationError{Err: ErrInvalidProduct, Details: "minimum stock level must not be negative"}
	}
	return nil
}

// StockUpdate is the body of POST /api/products/stock.
type StockUpdate struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

func (u StockUpdate) Validate() error {
	if u.ProductID <= 0 {
		return &ValidationError{Err: ErrProductNotFound, Details: "select a valid product"}
	}
	if u.Quantity == 0 {
		return &ValidationError{Err: ErrInvalidQuantity, Details: "quantity must not be zero"}
	}
	return nil
}

// BulkStockUpdate is the body of POST /api/products/stock/bulk.
type BulkStockUpdate struct {
	Updates []StockUpdate `json:"updates"`
}
