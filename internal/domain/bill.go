package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contact is a saved customer used to prefill bills.
type Contact struct {
	ID    string `json:"_id,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// HistoricalItem is a bill row as stored by the backend. Product is the
// server-resolved snapshot and is absent on summary rows.
type HistoricalItem struct {
	ProductID int             `json:"productId"`
	Product   *Product        `json:"product,omitempty"`
	Name      string          `json:"name,omitempty"`
	NameTamil string          `json:"nameTamil,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (it HistoricalItem) DisplayNames() (name, tamil string) {
	name, tamil = it.Name, it.NameTamil
	if it.Product != nil {
		if name == "" {
			name = it.Product.Name
		}
		if tamil == "" {
			tamil = it.Product.NameTamil
		}
	}
	return name, tamil
}

func (it HistoricalItem) Total() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// HistoricalBill is a saved bill. It is read-only on this side.
type HistoricalBill struct {
	ID           string           `json:"_id"`
	BillNumber   string           `json:"billNumber"`
	CustomerName string           `json:"customerName"`
	MobileNumber string           `json:"mobileNumber"`
	Items        []HistoricalItem `json:"items"`
	TotalAmount  decimal.Decimal  `json:"totalAmount"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt,omitempty"`
}

// Detailed reports whether every item carries a product snapshot or name.
func (b HistoricalBill) Detailed() bool {
	if len(b.Items) == 0 {
		return false
	}
	for _, it := range b.Items {
		name, tamil := it.DisplayNames()
		if name == "" && tamil == "" {
			return false
		}
	}
	return true
}

// BillSummary is the daily aggregate served by GET /api/bills/summary.
type BillSummary struct {
	Count         int             `json:"count"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	AverageAmount decimal.Decimal `json:"averageAmount"`
}

// Summarize aggregates bills locally.
func Summarize(bills []HistoricalBill) BillSummary {
	s := BillSummary{Count: len(bills), TotalAmount: decimal.Zero, AverageAmount: decimal.Zero}
	for _, b := range bills {
		total := b.TotalAmount
		if total.IsZero() {
			for _, it := range b.Items {
				total = total.Add(it.Total())
			}
		}
		s.TotalAmount = s.TotalAmount.Add(total)
	}
	if s.Count > 0 {
		s.AverageAmount = s.TotalAmount.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	}
	return s
}

// BillItemRequest is one row of a bill save request.
type BillItemRequest struct {
	ProductID int             `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// CreateBillRequest is the body of POST /api/bills and PUT /api/bills/{id}.
type CreateBillRequest struct {
	Items        []BillItemRequest `json:"items"`
	CustomerName string            `json:"customerName"`
	MobileNumber string            `json:"mobileNumber"`
	BillNumber   string            `json:"billNumber,omitempty"`
}

// NewCreateBillRequest builds the save request from the valid rows of a draft.
func NewCreateBillRequest(d BillDraft) CreateBillRequest {
	req := CreateBillRequest{
		CustomerName: d.CustomerName,
		MobileNumber: d.MobileNumber,
		BillNumber:   d.BillNumber,
	}
	for _, it := range d.ValidItems() {
		q, _ := it.Qty()
		req.Items = append(req.Items, BillItemRequest{
			ProductID: *it.ProductID,
			Quantity:  q,
			Price:     it.Price,
		})
	}
	return req
}
