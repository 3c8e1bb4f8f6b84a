// Package workspace holds the open bill tabs and the operations that move
// them from one state to the next.
package workspace

import (
	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
)

// State is the set of open tabs and the index of the active one.
// Bills is never empty and Active is always a valid index.
type State struct {
	Bills  []domain.BillDraft `json:"bills"`
	Active int                `json:"active"`
}

// ActiveBill returns the draft of the active tab.
func (s State) ActiveBill() domain.BillDraft {
	return s.Bills[s.Active]
}

// Index returns the position of the tab holding bill id, or -1.
func (s State) Index(id string) int {
	for i, b := range s.Bills {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (s State) clone() State {
	bills := make([]domain.BillDraft, len(s.Bills))
	copy(bills, s.Bills)
	s.Bills = bills
	return s
}

// Action is one of the transitions understood by Reduce.
type Action interface {
	isAction()
}

// CreateBill appends Draft and activates it.
type CreateBill struct {
	Draft domain.BillDraft
}

// CloseBill removes the tab at Index. Fallback replaces the last tab when
// it is closed.
type CloseBill struct {
	Index    int
	Fallback domain.BillDraft
}

type SwitchBill struct {
	Index int
}

// UpdateBill merges Patch into the bill with the given id.
type UpdateBill struct {
	ID    string
	Patch BillPatch
}

// ClearBill empties a bill and gives it a new number.
type ClearBill struct {
	ID         string
	BillNumber string
}

// OpenDraft activates the tab already showing Draft's bill number, or
// appends Draft as a new tab.
type OpenDraft struct {
	Draft domain.BillDraft
}

func (CreateBill) isAction() {}
func (CloseBill) isAction()  {}
func (SwitchBill) isAction() {}
func (UpdateBill) isAction() {}
func (ClearBill) isAction()  {}
func (OpenDraft) isAction()  {}

// BillPatch is a partial update. Nil fields are left alone.
type BillPatch struct {
	BackendID    *string
	BillNumber   *string
	CustomerName *string
	MobileNumber *string
	Items        []domain.LineItem
	Focus        *domain.FocusTarget
	ShowProducts *bool
	ShowContacts *bool
	Printing     *bool
	PendingPrint *bool
	// Reserved replaces the held units when non-nil.
	Reserved map[int]int
}

// Replace builds a patch that overwrites every editable field with d's.
func Replace(d domain.BillDraft) BillPatch {
	return BillPatch{
		CustomerName: &d.CustomerName,
		MobileNumber: &d.MobileNumber,
		Items:        d.Items,
		Focus:        &d.Focus,
		ShowProducts: &d.ShowProducts,
		ShowContacts: &d.ShowContacts,
	}
}

func (p BillPatch) apply(d domain.BillDraft) domain.BillDraft {
	if p.BackendID != nil {
		d.BackendID = *p.BackendID
	}
	if p.BillNumber != nil {
		d.BillNumber = *p.BillNumber
	}
	if p.CustomerName != nil {
		d.CustomerName = *p.CustomerName
	}
	if p.MobileNumber != nil {
		d.MobileNumber = *p.MobileNumber
	}
	if p.Items != nil {
		d.Items = append([]domain.LineItem(nil), p.Items...)
	}
	if p.Focus != nil {
		d.Focus = *p.Focus
	}
	if p.ShowProducts != nil {
		d.ShowProducts = *p.ShowProducts
	}
	if p.ShowContacts != nil {
		d.ShowContacts = *p.ShowContacts
	}
	if p.Printing != nil {
		d.Printing = *p.Printing
	}
	if p.PendingPrint != nil {
		d.PendingPrint = *p.PendingPrint
	}
	if p.Reserved != nil {
		d.Reserved = make(map[int]int, len(p.Reserved))
		for id, q := range p.Reserved {
			d.Reserved[id] = q
		}
	}
	return d
}

// Reduce returns the state after applying a. It never mutates s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case CreateBill:
		s = s.clone()
		s.Bills = append(s.Bills, a.Draft)
		s.Active = len(s.Bills) - 1

	case CloseBill:
		if a.Index < 0 || a.Index >= len(s.Bills) {
			return s
		}
		if len(s.Bills) == 1 {
			return State{Bills: []domain.BillDraft{a.Fallback}, Active: 0}
		}
		s = s.clone()
		s.Bills = append(s.Bills[:a.Index], s.Bills[a.Index+1:]...)
		switch {
		case a.Index < s.Active:
			s.Active--
		case a.Index == s.Active && s.Active >= len(s.Bills):
			s.Active = len(s.Bills) - 1
		}

	case SwitchBill:
		if a.Index < 0 || a.Index >= len(s.Bills) {
			return s
		}
		s.Active = a.Index

	case UpdateBill:
		i := s.Index(a.ID)
		if i < 0 {
			return s
		}
		s = s.clone()
		s.Bills[i] = a.Patch.apply(s.Bills[i])

	case ClearBill:
		i := s.Index(a.ID)
		if i < 0 {
			return s
		}
		s = s.clone()
		fresh := domain.NewBillDraft(a.ID, a.BillNumber)
		s.Bills[i] = fresh

	case OpenDraft:
		for i, b := range s.Bills {
			if a.Draft.BillNumber != "" && b.BillNumber == a.Draft.BillNumber {
				s.Active = i
				return s
			}
		}
		s = s.clone()
		s.Bills = append(s.Bills, a.Draft)
		s.Active = len(s.Bills) - 1
	}
	return s
}
