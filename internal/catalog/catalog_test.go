package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
)

type fakeBackend struct {
	products []domain.Product
	listErr  error
	stock    []domain.StockUpdate
	bulk     []domain.BulkStockUpdate
	created  []domain.ProductInput
}

func (f *fakeBackend) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Product, len(f.products))
	copy(out, f.products)
	return out, nil
}

func (f *fakeBackend) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	f.created = append(f.created, in)
	p := domain.Product{ID: len(f.products) + 1, Name: in.Name, NameTamil: in.NameTamil, Price: in.Price}
	f.products = append(f.products, p)
	return &p, nil
}

func (f *fakeBackend) UpdateProduct(ctx context.Context, id int, in domain.ProductInput) (*domain.Product, error) {
	for i := range f.products {
		if f.products[i].ID == id {
			f.products[i].Name = in.Name
			f.products[i].NameTamil = in.NameTamil
			f.products[i].Price = in.Price
			f.products[i].MinStockLevel = in.MinStockLevel
			return &f.products[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeBackend) AddStock(ctx context.Context, update domain.StockUpdate) error {
	f.stock = append(f.stock, update)
	for i := range f.products {
		if f.products[i].ID == update.ProductID {
			f.products[i].Stock += update.Quantity
		}
	}
	return nil
}

func (f *fakeBackend) BulkAddStock(ctx context.Context, bulk domain.BulkStockUpdate) error {
	f.bulk = append(f.bulk, bulk)
	return nil
}

func seeded() *fakeBackend {
	return &fakeBackend{products: []domain.Product{
		{ID: 9, Name: "Murukku", NameTamil: "முறுக்கு", Price: decimal.NewFromInt(30), Stock: 1, MinStockLevel: 5},
		{ID: 7, Name: "Milk", NameTamil: "பால்", Price: decimal.RequireFromString("12.50"), Stock: 5, MinStockLevel: 2},
		{ID: 8, Name: "Mixture", NameTamil: "மிக்சர்", Price: decimal.NewFromInt(40), Stock: 0},
	}}
}

func TestRefreshSortsAndIndexes(t *testing.T) {
	c := New(seeded(), zaptest.NewLogger(t))
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	list := c.List()
	if len(list) != 3 || list[0].ID != 7 || list[2].ID != 9 {
		t.Errorf("List() not sorted by id: %+v", list)
	}
	if p, ok := c.Product(7); !ok || p.Stock != 5 {
		t.Errorf("Product(7) = %+v, %v", p, ok)
	}
	if !c.Loaded() {
		t.Error("Loaded() = false after refresh")
	}
}

func TestSearch(t *testing.T) {
	c := New(seeded(), zaptest.NewLogger(t))
	c.Refresh(context.Background())

	tests := []struct {
		term string
		want int
	}{
		{"mi", 2},
		{"MILK", 1},
		{"பால்", 1},
		{"", 3},
		{"zzz", 0},
	}
	for _, tt := range tests {
		if got := len(c.Search(tt.term)); got != tt.want {
			t.Errorf("Search(%q) = %d results, want %d", tt.term, got, tt.want)
		}
	}
}

func TestRefreshFailureKeepsStaleList(t *testing.T) {
	backend := seeded()
	c := New(backend, zaptest.NewLogger(t))
	c.Refresh(context.Background())

	backend.listErr = errors.New("connection refused")
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil, want failure")
	}
	if len(c.List()) != 3 {
		t.Error("stale list was cleared")
	}
	if c.Banner() == "" {
		t.Error("Banner() empty after failure")
	}

	c.DismissBanner()
	if c.Banner() != "" {
		t.Error("DismissBanner() did not clear the banner")
	}
}

func TestLowStock(t *testing.T) {
	c := New(seeded(), zaptest.NewLogger(t))
	c.Refresh(context.Background())

	low := c.LowStock()
	if len(low) != 2 {
		t.Fatalf("LowStock() = %d products, want 2", len(low))
	}
}

func TestAdjustStockRefreshes(t *testing.T) {
	backend := seeded()
	c := New(backend, zaptest.NewLogger(t))
	c.Refresh(context.Background())

	if err := c.AdjustStock(context.Background(), domain.StockUpdate{ProductID: 8, Quantity: 10}); err != nil {
		t.Fatalf("AdjustStock() error = %v", err)
	}
	if p, _ := c.Product(8); p.Stock != 10 {
		t.Errorf("stock after adjust = %d, want 10", p.Stock)
	}

	err := c.AdjustStock(context.Background(), domain.StockUpdate{ProductID: 8})
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("zero quantity error = %v, want ErrInvalidQuantity", err)
	}
	if len(backend.stock) != 1 {
		t.Errorf("backend saw %d stock calls, want 1", len(backend.stock))
	}
}

func TestCreateProductValidates(t *testing.T) {
	backend := seeded()
	c := New(backend, zaptest.NewLogger(t))

	_, err := c.CreateProduct(context.Background(), domain.ProductInput{Name: "Tea", Price: decimal.NewFromInt(10)})
	if !errors.Is(err, domain.ErrInvalidProduct) {
		t.Errorf("missing Tamil name error = %v", err)
	}
	_, err = c.CreateProduct(context.Background(), domain.ProductInput{Name: "Tea", NameTamil: "டீ", Price: decimal.NewFromInt(-1)})
	if !errors.Is(err, domain.ErrInvalidProduct) {
		t.Errorf("negative price error = %v", err)
	}

	p, err := c.CreateProduct(context.Background(), domain.ProductInput{Name: "Tea", NameTamil: "டீ", Price: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	if _, ok := c.Product(p.ID); !ok {
		t.Error("created product not in refreshed catalog")
	}
}

func TestBulkAdjustStock(t *testing.T) {
	backend := seeded()
	c := New(backend, zaptest.NewLogger(t))

	if err := c.BulkAdjustStock(context.Background(), nil); err == nil {
		t.Error("empty bulk update accepted")
	}
	updates := []domain.StockUpdate{{ProductID: 7, Quantity: 3}, {ProductID: 9, Quantity: 2}}
	if err := c.BulkAdjustStock(context.Background(), updates); err != nil {
		t.Fatalf("BulkAdjustStock() error = %v", err)
	}
	if len(backend.bulk) != 1 || len(backend.bulk[0].Updates) != 2 {
		t.Errorf("unexpected bulk calls %+v", backend.bulk)
	}
}
