// Package editor is the per-row line item state machine of a bill tab.
//
// Every operation takes a draft and returns the next one. A non-nil error is
// a warning for the user; the returned draft is always safe to store, and
// for warnings that change nothing it equals the input.
package editor

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
)

var ErrNoSuchRow = errors.New("no such row")

// ProductSource yields the most recently fetched products.
type ProductSource interface {
	Product(id int) (domain.Product, bool)
	Search(term string) []domain.Product
}

type Key string

const (
	KeyEnter     Key = "Enter"
	KeyTab       Key = "Tab"
	KeyBackspace Key = "Backspace"
	KeyEscape    Key = "Escape"
)

type Editor struct {
	products ProductSource
}

func New(products ProductSource) Editor {
	return Editor{products: products}
}

// Search updates the search text of a row and opens the product dropdown.
func (e Editor) Search(d domain.BillDraft, row int, text string) (domain.BillDraft, error) {
	if !hasRow(d, row) {
		return d, ErrNoSuchRow
	}
	d = d.Clone()
	d.Items[row].Search = text
	d.ShowProducts = strings.TrimSpace(text) != ""
	d.Focus = domain.FocusTarget{Row: row, Field: domain.FieldProductSearch}
	return d, nil
}

// Select puts a product on a row. Out of stock products are refused.
func (e Editor) Select(d domain.BillDraft, row, productID int) (domain.BillDraft, error) {
	if !hasRow(d, row) {
		return d, ErrNoSuchRow
	}
	p, ok := e.products.Product(productID)
	if !ok {
		return d, &domain.ValidationError{Err: domain.ErrProductNotFound, Details: strconv.Itoa(productID)}
	}
	if d.Available(p) <= 0 {
		return d, &domain.ValidationError{Err: domain.ErrOutOfStock, Details: p.DisplayName()}
	}

	d = d.Clone()
	id := p.ID
	d.Items[row] = domain.LineItem{
		ProductID:   &id,
		ProductName: p.Name,
		NameTamil:   p.NameTamil,
		Price:       p.Price,
		Quantity:    d.Items[row].Quantity,
	}
	d.ShowProducts = false
	d.Focus = domain.FocusTarget{Row: row, Field: domain.FieldQuantity}
	return d, nil
}

// SetQuantity stores the raw quantity text. It is parsed on commit.
func (e Editor) SetQuantity(d domain.BillDraft, row int, text string) (domain.BillDraft, error) {
	if !hasRow(d, row) {
		return d, ErrNoSuchRow
	}
	d = d.Clone()
	d.Items[row].Quantity = strings.TrimSpace(text)
	d.Focus = domain.FocusTarget{Row: row, Field: domain.FieldQuantity}
	return d, nil
}

// Focus moves the cursor, e.g. when the user clicks into a field.
func (e Editor) Focus(d domain.BillDraft, target domain.FocusTarget) (domain.BillDraft, error) {
	switch target.Field {
	case domain.FieldProductSearch, domain.FieldQuantity:
		if !hasRow(d, target.Row) {
			return d, ErrNoSuchRow
		}
	case domain.FieldCustomerName, domain.FieldMobileNumber:
		target.Row = 0
	default:
		return d, fmt.Errorf("unknown field %q", target.Field)
	}
	d.Focus = target
	return d, nil
}

// Key applies a key press to the focused field.
func (e Editor) Key(d domain.BillDraft, key Key) (domain.BillDraft, error) {
	if key == KeyEscape {
		d.ShowProducts = false
		d.ShowContacts = false
		return d, nil
	}

	row := d.Focus.Row
	switch d.Focus.Field {
	case domain.FieldCustomerName:
		return e.customerKey(d, key)
	case domain.FieldMobileNumber:
		return e.mobileKey(d, key)
	}
	if !hasRow(d, row) {
		return d, ErrNoSuchRow
	}

	switch d.Focus.Field {
	case domain.FieldProductSearch:
		switch key {
		case KeyEnter:
			return e.enterProduct(d, row)
		case KeyTab:
			if d.Items[row].HasProduct() {
				d.ShowProducts = false
				d.Focus = domain.FocusTarget{Row: row, Field: domain.FieldQuantity}
			}
			return d, nil
		case KeyBackspace:
			if d.Items[row].Search == "" && row > 0 {
				d.ShowProducts = false
				d.Focus = domain.FocusTarget{Row: row - 1, Field: domain.FieldQuantity}
			}
			return d, nil
		}
	case domain.FieldQuantity:
		switch key {
		case KeyEnter, KeyTab:
			return e.Commit(d, row)
		case KeyBackspace:
			if d.Items[row].Quantity == "" {
				d.Focus = domain.FocusTarget{Row: row, Field: domain.FieldProductSearch}
			}
			return d, nil
		}
	}
	return d, nil
}

func (e Editor) customerKey(d domain.BillDraft, key Key) (domain.BillDraft, error) {
	if key == KeyEnter || key == KeyTab {
		d.ShowContacts = false
		d.Focus = domain.FocusTarget{Field: domain.FieldMobileNumber}
	}
	return d, nil
}

func (e Editor) mobileKey(d domain.BillDraft, key Key) (domain.BillDraft, error) {
	switch key {
	case KeyEnter, KeyTab:
		d.ShowContacts = false
		d.Focus = domain.FocusTarget{Row: len(d.Items) - 1, Field: domain.FieldProductSearch}
	case KeyBackspace:
		if d.MobileNumber == "" {
			d.Focus = domain.FocusTarget{Field: domain.FieldCustomerName}
		}
	}
	return d, nil
}

// enterProduct resolves the search text: an exact product id or a single
// name match selects; an empty search on a filled row moves on.
func (e Editor) enterProduct(d domain.BillDraft, row int) (domain.BillDraft, error) {
	item := d.Items[row]
	term := strings.TrimSpace(item.Search)
	if term == "" {
		if item.HasProduct() {
			d.ShowProducts = false
			d.Focus = domain.FocusTarget{Row: row, Field: domain.FieldQuantity}
		}
		return d, nil
	}

	if id, err := strconv.Atoi(term); err == nil {
		if _, ok := e.products.Product(id); ok {
			return e.Select(d, row, id)
		}
	}

	matches := e.products.Search(term)
	switch len(matches) {
	case 0:
		return d, &domain.ValidationError{Err: domain.ErrProductNotFound, Details: term}
	case 1:
		return e.Select(d, row, matches[0].ID)
	default:
		d.ShowProducts = true
		return d, nil
	}
}

// Commit validates the quantity of a row against the stock available to the
// bill and advances.
func (e Editor) Commit(d domain.BillDraft, row int) (domain.BillDraft, error) {
	if !hasRow(d, row) {
		return d, ErrNoSuchRow
	}
	item := d.Items[row]
	if !item.HasProduct() {
		d.Focus = domain.FocusTarget{Row: row, Field: domain.FieldProductSearch}
		return d, &domain.ValidationError{Err: domain.ErrProductNotFound, Details: "select a product first"}
	}

	p, ok := e.products.Product(*item.ProductID)
	if !ok || d.Available(p) <= 0 {
		name := item.NameTamil
		if name == "" {
			name = item.ProductName
		}
		return removeRow(d, row), &domain.ValidationError{Err: domain.ErrOutOfStock, Details: name + " was removed from the bill"}
	}

	q, ok := item.Qty()
	if !ok || q <= 0 {
		return d, &domain.ValidationError{Err: domain.ErrInvalidQuantity, Details: "enter a whole number above zero"}
	}

	remaining := d.Available(p) - reservedElsewhere(d, row, p.ID)
	if remaining < 0 {
		remaining = 0
	}
	if q > remaining {
		return d, &domain.ValidationError{
			Err:     domain.ErrInsufficientStock,
			Details: fmt.Sprintf("only %d items available for %s", remaining, p.DisplayName()),
		}
	}

	d = d.Clone()
	if row == len(d.Items)-1 {
		d.Items = append(d.Items, domain.LineItem{})
	}
	d.ShowProducts = false
	d.Focus = domain.FocusTarget{Row: row + 1, Field: domain.FieldProductSearch}
	return d, nil
}

// CheckStock validates the whole bill against live stock, plus the units
// its saved version holds, before saving.
func (e Editor) CheckStock(d domain.BillDraft) error {
	wanted := domain.Reservations(d)

	ids := make([]int, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		p, ok := e.products.Product(id)
		if !ok {
			return &domain.ValidationError{Err: domain.ErrProductNotFound, Details: strconv.Itoa(id)}
		}
		available := d.Available(p)
		if available <= 0 {
			return &domain.ValidationError{Err: domain.ErrOutOfStock, Details: p.DisplayName()}
		}
		if wanted[id] > available {
			return &domain.ValidationError{
				Err:     domain.ErrInsufficientStock,
				Details: fmt.Sprintf("only %d items available for %s", available, p.DisplayName()),
			}
		}
	}
	return nil
}

func reservedElsewhere(d domain.BillDraft, row, productID int) int {
	total := 0
	for i, it := range d.Items {
		if i == row || !it.HasProduct() || *it.ProductID != productID {
			continue
		}
		if q, ok := it.Qty(); ok && q > 0 {
			total += q
		}
	}
	return total
}

func removeRow(d domain.BillDraft, row int) domain.BillDraft {
	d = d.Clone()
	if len(d.Items) == 1 {
		d.Items[0] = domain.LineItem{}
	} else {
		d.Items = append(d.Items[:row], d.Items[row+1:]...)
	}
	if row >= len(d.Items) {
		row = len(d.Items) - 1
	}
	d.ShowProducts = false
	d.Focus = domain.FocusTarget{Row: row, Field: domain.FieldProductSearch}
	return d
}

func hasRow(d domain.BillDraft, row int) bool {
	return row >= 0 && row < len(d.Items)
}
