// Package history lists saved bills by day and turns them back into
// receipts or editable drafts.
package history

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/receipt"
)

type Backend interface {
	ListBills(ctx context.Context, date time.Time) ([]domain.HistoricalBill, error)
	BillSummary(ctx context.Context, date time.Time) (*domain.BillSummary, error)
	GetBill(ctx context.Context, id string) (*domain.HistoricalBill, error)
}

type Printer interface {
	PrintBill(ctx context.Context, b receipt.Bill) error
}

// Day is the history view for one date.
type Day struct {
	Date    string                  `json:"date"`
	Bills   []domain.HistoricalBill `json:"bills"`
	Summary domain.BillSummary      `json:"summary"`
}

type Service struct {
	backend Backend
	printer Printer
	logger  *zap.Logger

	mu    sync.Mutex
	date  time.Time
	bills map[string]domain.HistoricalBill
}

func New(backend Backend, printer Printer, logger *zap.Logger) *Service {
	now := time.Now()
	return &Service{
		backend: backend,
		printer: printer,
		logger:  logger,
		date:    time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		bills:   map[string]domain.HistoricalBill{},
	}
}

// Date is the currently selected day.
func (s *Service) Date() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// SetDate selects a day and fetches it.
func (s *Service) SetDate(ctx context.Context, date time.Time) (*Day, error) {
	s.mu.Lock()
	s.date = date
	s.mu.Unlock()
	return s.List(ctx, date)
}

// List fetches the bills of a day and their summary. A failed summary call
// falls back to totals computed from the bills. Only the listed day's bills
// stay cached.
func (s *Service) List(ctx context.Context, date time.Time) (*Day, error) {
	bills, err := s.backend.ListBills(ctx, date)
	if err != nil {
		s.logger.Error("Failed to fetch bills", zap.Time("date", date), zap.Error(err))
		return nil, fmt.Errorf("list bills: %w", err)
	}

	day := &Day{Date: date.Format("2006-01-02"), Bills: bills}
	summary, err := s.backend.BillSummary(ctx, date)
	if err != nil {
		s.logger.Warn("Bill summary unavailable, computing locally", zap.Error(err))
		day.Summary = domain.Summarize(bills)
	} else {
		day.Summary = *summary
	}

	cached := make(map[string]domain.HistoricalBill, len(bills))
	for _, b := range bills {
		cached[b.ID] = b
	}
	s.mu.Lock()
	s.bills = cached
	s.mu.Unlock()
	return day, nil
}

// Bill returns the full bill, fetching it when only a summary row is held.
func (s *Service) Bill(ctx context.Context, id string) (domain.HistoricalBill, error) {
	s.mu.Lock()
	b, ok := s.bills[id]
	s.mu.Unlock()
	if ok && b.Detailed() {
		return b, nil
	}

	full, err := s.backend.GetBill(ctx, id)
	if err != nil {
		return domain.HistoricalBill{}, fmt.Errorf("get bill %s: %w", id, err)
	}
	s.mu.Lock()
	s.bills[id] = *full
	s.mu.Unlock()
	return *full, nil
}

// Reprint prints a saved bill again. Nothing is saved or cleared.
func (s *Service) Reprint(ctx context.Context, id string) error {
	b, err := s.Bill(ctx, id)
	if err != nil {
		return err
	}
	if err := s.printer.PrintBill(ctx, receipt.FromHistorical(b)); err != nil {
		return err
	}
	s.logger.Info("Bill reprinted", zap.String("bill_number", b.BillNumber))
	return nil
}

// EditAsDraft loads a saved bill as an editable draft.
func (s *Service) EditAsDraft(ctx context.Context, id string) (domain.BillDraft, error) {
	b, err := s.Bill(ctx, id)
	if err != nil {
		return domain.BillDraft{}, err
	}
	return ToDraft(b), nil
}

// ToDraft converts a saved bill into a draft that remembers its backend id
// and ends with an empty row.
func ToDraft(b domain.HistoricalBill) domain.BillDraft {
	d := domain.BillDraft{
		BackendID:    b.ID,
		BillNumber:   b.BillNumber,
		CustomerName: b.CustomerName,
		MobileNumber: b.MobileNumber,
	}
	for _, it := range b.Items {
		id := it.ProductID
		name, tamil := it.DisplayNames()
		d.Items = append(d.Items, domain.LineItem{
			ProductID:   &id,
			ProductName: name,
			NameTamil:   tamil,
			Price:       it.Price,
			Quantity:    strconv.Itoa(it.Quantity),
		})
	}
	d.Reserved = domain.Reservations(d)
	d.Items = append(d.Items, domain.LineItem{})
	d.Focus = domain.FocusTarget{Row: len(d.Items) - 1, Field: domain.FieldProductSearch}
	return d
}
