package domain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names a focusable input of a bill tab.
type Field string

const (
	FieldProductSearch Field = "productSearch"
	FieldQuantity      Field = "quantity"
	FieldCustomerName  Field = "customerName"
	FieldMobileNumber  Field = "mobileNumber"
)

// FocusTarget is the input the renderer should focus after a state change.
type FocusTarget struct {
	Row   int   `json:"row"`
	Field Field `json:"field"`
}

// LineItem is one product+quantity row of a bill. Name and price are
// snapshotted when the product is selected.
type LineItem struct {
	ProductID   *int            `json:"productId,omitempty"`
	ProductName string          `json:"productName"`
	NameTamil   string          `json:"nameTamil"`
	Price       decimal.Decimal `json:"price"`
	Quantity    string          `json:"quantity"`
	Search      string          `json:"search"`
}

func (li LineItem) HasProduct() bool {
	return li.ProductID != nil
}

// Qty parses the quantity text. ok is false for empty or non-numeric input.
func (li LineItem) Qty() (int, bool) {
	q, err := strconv.Atoi(strings.TrimSpace(li.Quantity))
	if err != nil {
		return 0, false
	}
	return q, true
}

// Valid rows have a product and a quantity; only they are billed.
func (li LineItem) Valid() bool {
	if !li.HasProduct() {
		return false
	}
	q, ok := li.Qty()
	return ok && q > 0
}

// Total is price × quantity, or zero when the row is missing either.
func (li LineItem) Total() decimal.Decimal {
	if !li.HasProduct() {
		return decimal.Zero
	}
	q, ok := li.Qty()
	if !ok {
		return decimal.Zero
	}
	return li.Price.Mul(decimal.NewFromInt(int64(q)))
}

func (li LineItem) Empty() bool {
	return !li.HasProduct() && strings.TrimSpace(li.Quantity) == "" && li.Search == ""
}

// BillDraft is one open billing tab.
type BillDraft struct {
	ID           string      `json:"id"`
	BackendID    string      `json:"backendId,omitempty"`
	BillNumber   string      `json:"billNumber"`
	CustomerName string      `json:"customerName"`
	MobileNumber string      `json:"mobileNumber"`
	Items        []LineItem  `json:"items"`
	Focus        FocusTarget `json:"focus"`
	ShowProducts bool        `json:"showProducts"`
	ShowContacts bool        `json:"showContacts"`
	Printing     bool        `json:"printing"`
	// Reserved holds, per product id, the units the saved version of this
	// bill already took out of stock.
	Reserved map[int]int `json:"reserved,omitempty"`
	// PendingPrint marks a new bill that was saved but never printed; it
	// is cleared once a print goes through.
	PendingPrint bool `json:"pendingPrint,omitempty"`
}

// NewBillDraft returns a draft with a single empty row focused on product search.
func NewBillDraft(id, billNumber string) BillDraft {
	return BillDraft{
		ID:         id,
		BillNumber: billNumber,
		Items:      []LineItem{{}},
		Focus:      FocusTarget{Row: 0, Field: FieldProductSearch},
	}
}

// Clone copies the draft so the item slice is not shared.
func (d BillDraft) Clone() BillDraft {
	items := make([]LineItem, len(d.Items))
	copy(items, d.Items)
	d.Items = items
	return d
}

// Available is the stock this bill may draw from: live stock plus what its
// saved version already holds.
func (d BillDraft) Available(p Product) int {
	return p.Stock + d.Reserved[p.ID]
}

// Reservations sums the quantities of the valid rows per product.
func Reservations(d BillDraft) map[int]int {
	out := map[int]int{}
	for _, it := range d.ValidItems() {
		q, _ := it.Qty()
		out[*it.ProductID] += q
	}
	return out
}

func (d BillDraft) ValidItems() []LineItem {
	var out []LineItem
	for _, it := range d.Items {
		if it.Valid() {
			out = append(out, it)
		}
	}
	return out
}

func (d BillDraft) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.Total())
	}
	return total
}

// Pristine reports whether there is nothing to clear.
func (d BillDraft) Pristine() bool {
	return len(d.Items) == 1 && d.Items[0].Empty() &&
		d.CustomerName == "" && d.MobileNumber == ""
}

// Validate checks everything required before a bill may be saved or printed.
func (d BillDraft) Validate() error {
	if len(d.ValidItems()) == 0 {
		return &ValidationError{Err: ErrNoItems, Details: "add items to the bill before printing"}
	}
	if strings.TrimSpace(d.CustomerName) == "" {
		return &ValidationError{Err: ErrMissingCustomer}
	}
	if !ValidPhone(d.MobileNumber) {
		return &ValidationError{Err: ErrInvalidPhone, Details: d.MobileNumber}
	}
	return nil
}

var phonePattern = regexp.MustCompile(`^\d{10}$`)

func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
