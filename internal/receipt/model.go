// Package receipt turns bills into paginated thermal-printer documents and
// hands them to a print window.
package receipt

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
)

// Line is one printed row.
type Line struct {
	Name      string          `json:"name"`
	NameTamil string          `json:"nameTamil"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

// Label is the printed product name: Tamil, or English when no Tamil name
// is known.
func (l Line) Label() string {
	if l.NameTamil != "" {
		return l.NameTamil
	}
	return l.Name
}

// Bill is everything a receipt shows, independent of where it came from.
type Bill struct {
	Number       string          `json:"billNumber"`
	CustomerName string          `json:"customerName"`
	MobileNumber string          `json:"mobileNumber"`
	PrintedAt    time.Time       `json:"printedAt"`
	Lines        []Line          `json:"lines"`
	Total        decimal.Decimal `json:"total"`
}

// FromDraft snapshots the valid rows of an open tab.
func FromDraft(d domain.BillDraft, at time.Time) Bill {
	b := Bill{
		Number:       d.BillNumber,
		CustomerName: d.CustomerName,
		MobileNumber: d.MobileNumber,
		PrintedAt:    at,
		Total:        decimal.Zero,
	}
	for _, it := range d.ValidItems() {
		q, _ := it.Qty()
		line := Line{
			Name:      it.ProductName,
			NameTamil: it.NameTamil,
			Quantity:  q,
			Price:     it.Price,
			Total:     it.Total(),
		}
		b.Lines = append(b.Lines, line)
		b.Total = b.Total.Add(line.Total)
	}
	return b
}

// FromHistorical rebuilds the receipt of a saved bill. The stored total
// wins over the sum of its rows.
func FromHistorical(h domain.HistoricalBill) Bill {
	b := Bill{
		Number:       h.BillNumber,
		CustomerName: h.CustomerName,
		MobileNumber: h.MobileNumber,
		PrintedAt:    h.CreatedAt,
		Total:        decimal.Zero,
	}
	for _, it := range h.Items {
		name, tamil := it.DisplayNames()
		line := Line{
			Name:      name,
			NameTamil: tamil,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Total:     it.Total(),
		}
		b.Lines = append(b.Lines, line)
		b.Total = b.Total.Add(line.Total)
	}
	if !h.TotalAmount.IsZero() {
		b.Total = h.TotalAmount
	}
	return b
}
