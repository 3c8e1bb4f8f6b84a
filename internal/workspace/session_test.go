package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/events"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/receipt"
)

type memStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemStore() *memStore { return &memStore{values: map[string][]byte{}} }

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

func (m *memStore) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

type fakeCatalog struct {
	mu        sync.Mutex
	products  map[int]domain.Product
	refreshes int
}

func (c *fakeCatalog) Product(id int) (domain.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	return p, ok
}

func (c *fakeCatalog) Search(term string) []domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Product
	for _, p := range c.products {
		if p.Matches(term) {
			out = append(out, p)
		}
	}
	return out
}

func (c *fakeCatalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.refreshes++
	c.mu.Unlock()
	return nil
}

type fakeContacts struct {
	known   map[string]domain.Contact
	upserts chan domain.Contact
}

func (c *fakeContacts) Find(name string) (domain.Contact, bool) {
	ct, ok := c.known[name]
	return ct, ok
}

func (c *fakeContacts) Upsert(ctx context.Context, name, phone string) error {
	c.upserts <- domain.Contact{Name: name, Phone: phone}
	return nil
}

type fakeBills struct {
	mu      sync.Mutex
	created []domain.CreateBillRequest
	updated map[string]domain.CreateBillRequest
	err     error
	entered chan struct{}
	release chan struct{}
}

func (b *fakeBills) CreateBill(ctx context.Context, req domain.CreateBillRequest) (*domain.HistoricalBill, error) {
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.created = append(b.created, req)
	return &domain.HistoricalBill{ID: fmt.Sprintf("srv-%d", len(b.created)), BillNumber: req.BillNumber}, nil
}

func (b *fakeBills) UpdateBill(ctx context.Context, id string, req domain.CreateBillRequest) (*domain.HistoricalBill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updated == nil {
		b.updated = map[string]domain.CreateBillRequest{}
	}
	b.updated[id] = req
	return &domain.HistoricalBill{ID: id, BillNumber: req.BillNumber}, nil
}

func (b *fakeBills) KeepAlive(ctx context.Context) error { return nil }

type fakePrinter struct {
	err     error
	printed []receipt.Bill
}

func (p *fakePrinter) PrintBill(ctx context.Context, b receipt.Bill) error {
	if p.err != nil {
		return p.err
	}
	p.printed = append(p.printed, b)
	return nil
}

type fakePublisher struct {
	events []events.BillSavedEvent
}

func (p *fakePublisher) PublishBillSaved(ctx context.Context, e events.BillSavedEvent) error {
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type harness struct {
	session   *Session
	store     *memStore
	catalog   *fakeCatalog
	contacts  *fakeContacts
	bills     *fakeBills
	printer   *fakePrinter
	publisher *fakePublisher
}

func newHarness(t *testing.T, store *memStore) *harness {
	t.Helper()
	if store == nil {
		store = newMemStore()
	}
	h := &harness{
		store: store,
		catalog: &fakeCatalog{products: map[int]domain.Product{
			7: {ID: 7, Name: "Milk", NameTamil: "பால்", Price: decimal.RequireFromString("12.50"), Stock: 5},
			9: {ID: 9, Name: "Murukku", NameTamil: "முறுக்கு", Price: decimal.NewFromInt(30), Stock: 10},
		}},
		contacts:  &fakeContacts{known: map[string]domain.Contact{}, upserts: make(chan domain.Contact, 4)},
		bills:     &fakeBills{},
		printer:   &fakePrinter{},
		publisher: &fakePublisher{},
	}
	n := 0
	h.session = NewSession(Deps{
		Store:     h.store,
		Catalog:   h.catalog,
		Contacts:  h.contacts,
		Bills:     h.bills,
		Printer:   h.printer,
		Publisher: h.publisher,
	}, Options{
		BillPrefix: "T",
		Now:        func() time.Time { return time.Date(2026, 10, 17, 10, 15, 0, 0, time.UTC) },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}, zaptest.NewLogger(t))
	return h
}

// fill makes the active bill printable: 3 × Milk for Kumar.
func (h *harness) fill(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	id := h.session.State().ActiveBill().ID
	if _, err := h.session.SelectProduct(ctx, id, 0, 7); err != nil {
		t.Fatal(err)
	}
	if _, err := h.session.SetQuantity(ctx, id, 0, "3"); err != nil {
		t.Fatal(err)
	}
	name, phone := "Kumar", "98765-43210"
	if _, err := h.session.SetCustomer(ctx, id, CustomerPatch{CustomerName: &name, MobileNumber: &phone}); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestRestoreFallsBackOnBadState(t *testing.T) {
	tests := []struct {
		name   string
		bills  string
		active string
	}{
		{"nothing stored", "", ""},
		{"corrupt bills", "{not json", "0"},
		{"empty list", "[]", "0"},
		{"active out of range", `[{"id":"a","billNumber":"B-1","items":[{}]}]`, "3"},
		{"corrupt active", `[{"id":"a","billNumber":"B-1","items":[{}]}]`, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if tt.bills != "" {
				store.values[KeyOpenBills] = []byte(tt.bills)
				store.values[KeyActiveTab] = []byte(tt.active)
			}
			h := newHarness(t, store)
			s := h.session.Restore(context.Background())
			if len(s.Bills) != 1 || s.Active != 0 {
				t.Fatalf("restored %d bills, active %d; want one fresh bill", len(s.Bills), s.Active)
			}
			if !s.Bills[0].Pristine() {
				t.Errorf("fallback bill is not fresh: %+v", s.Bills[0])
			}
		})
	}
}

func TestStatePersistsAcrossSessions(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	first := newHarness(t, store)
	first.session.Restore(ctx)
	first.session.NewBill(ctx)
	first.session.NewBill(ctx)
	id := first.fill(t)
	first.session.SwitchBill(ctx, 1)

	second := newHarness(t, store)
	s := second.session.Restore(ctx)
	if len(s.Bills) != 3 || s.Active != 1 {
		t.Fatalf("restored %d bills, active %d; want 3, 1", len(s.Bills), s.Active)
	}
	b, err := second.session.Bill(id)
	if err != nil {
		t.Fatal(err)
	}
	if b.CustomerName != "Kumar" || b.MobileNumber != "9876543210" {
		t.Errorf("restored customer = %q %q", b.CustomerName, b.MobileNumber)
	}
}

func TestPrintSavesPrintsAndClears(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	id := h.fill(t)
	before, _ := h.session.Bill(id)

	saved, err := h.session.Print(ctx, id)
	if err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	if saved.ID != "srv-1" || len(h.bills.created) != 1 {
		t.Fatalf("backend saw %d creates", len(h.bills.created))
	}
	req := h.bills.created[0]
	if len(req.Items) != 1 || req.Items[0].Quantity != 3 || req.CustomerName != "Kumar" {
		t.Errorf("request = %+v", req)
	}
	if len(h.printer.printed) != 1 || h.printer.printed[0].Total.StringFixed(2) != "37.50" {
		t.Errorf("printed = %+v", h.printer.printed)
	}
	if h.catalog.refreshes != 1 || len(h.publisher.events) != 1 {
		t.Errorf("refreshes = %d, events = %d", h.catalog.refreshes, len(h.publisher.events))
	}

	after, _ := h.session.Bill(id)
	if !after.Pristine() || after.Printing {
		t.Errorf("bill not cleared: %+v", after)
	}
	if after.BillNumber == before.BillNumber {
		t.Error("cleared bill kept its number")
	}
}

func TestPrintBlockedKeepsBill(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.printer.err = fmt.Errorf("%w: denied", receipt.ErrPopupBlocked)
	id := h.fill(t)

	_, err := h.session.Print(ctx, id)
	if !errors.Is(err, receipt.ErrPopupBlocked) {
		t.Fatalf("Print() error = %v, want ErrPopupBlocked", err)
	}
	b, _ := h.session.Bill(id)
	if b.Printing {
		t.Error("printing flag left set")
	}
	if b.CustomerName != "Kumar" || len(b.ValidItems()) != 1 {
		t.Error("bill was cleared after a blocked print")
	}
}

func TestRetryAfterBlockedPrintUpdatesSavedBill(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.printer.err = fmt.Errorf("%w: denied", receipt.ErrPopupBlocked)
	id := h.fill(t)

	if _, err := h.session.Print(ctx, id); !errors.Is(err, receipt.ErrPopupBlocked) {
		t.Fatalf("Print() error = %v, want ErrPopupBlocked", err)
	}
	b, _ := h.session.Bill(id)
	if b.BackendID != "srv-1" || !b.PendingPrint || b.Reserved[7] != 3 {
		t.Fatalf("after blocked print = backend %q pending %v reserved %v", b.BackendID, b.PendingPrint, b.Reserved)
	}

	// the first save took 3 of the 5 units
	h.catalog.mu.Lock()
	milk := h.catalog.products[7]
	milk.Stock = 2
	h.catalog.products[7] = milk
	h.catalog.mu.Unlock()

	h.printer.err = nil
	saved, err := h.session.Print(ctx, id)
	if err != nil {
		t.Fatalf("retry Print() error = %v", err)
	}
	if saved.ID != "srv-1" {
		t.Errorf("retry saved %q, want srv-1", saved.ID)
	}
	if len(h.bills.created) != 1 || len(h.bills.updated) != 1 {
		t.Fatalf("creates = %d, updates = %d; want 1 and 1", len(h.bills.created), len(h.bills.updated))
	}
	if _, ok := h.bills.updated["srv-1"]; !ok {
		t.Errorf("updated %v, want srv-1", h.bills.updated)
	}
	if len(h.printer.printed) != 1 {
		t.Errorf("printed %d receipts, want 1", len(h.printer.printed))
	}

	after, _ := h.session.Bill(id)
	if !after.Pristine() || after.BackendID != "" || after.PendingPrint || after.Reserved != nil {
		t.Errorf("bill not cleared after the retry: %+v", after)
	}
}

func TestEditSavedBillWhoseStockIsGone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.session.Restore(ctx)

	h.catalog.mu.Lock()
	milk := h.catalog.products[7]
	milk.Stock = 0
	h.catalog.products[7] = milk
	h.catalog.mu.Unlock()

	id7 := 7
	draft := domain.BillDraft{
		ID:           "edit-1",
		BackendID:    "srv-42",
		BillNumber:   "T-OLD-1",
		CustomerName: "Kumr",
		MobileNumber: "9876543210",
		Items: []domain.LineItem{
			{ProductID: &id7, ProductName: "Milk", NameTamil: "பால்", Price: decimal.RequireFromString("12.50"), Quantity: "5"},
			{},
		},
	}
	draft.Reserved = domain.Reservations(draft)
	h.session.OpenDraft(ctx, draft)

	name := "Kumar"
	if _, err := h.session.SetCustomer(ctx, "edit-1", CustomerPatch{CustomerName: &name}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.session.Print(ctx, "edit-1"); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	req, ok := h.bills.updated["srv-42"]
	if !ok || req.CustomerName != "Kumar" || len(req.Items) != 1 || req.Items[0].Quantity != 5 {
		t.Fatalf("updates = %+v", h.bills.updated)
	}
	if len(h.bills.created) != 0 {
		t.Errorf("edited bill was created again")
	}

	b, _ := h.session.Bill("edit-1")
	if b.BackendID != "srv-42" || b.Reserved[7] != 5 {
		t.Errorf("edited bill after print = %+v", b)
	}

	if _, err := h.session.SetQuantity(ctx, "edit-1", 0, "6"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.session.Print(ctx, "edit-1"); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("Print() above the held units = %v, want ErrInsufficientStock", err)
	}
}

func TestPrintRejectsInvalidBills(t *testing.T) {
	ctx := context.Background()

	t.Run("missing customer", func(t *testing.T) {
		h := newHarness(t, nil)
		id := h.fill(t)
		empty := ""
		h.session.SetCustomer(ctx, id, CustomerPatch{CustomerName: &empty})
		if _, err := h.session.Print(ctx, id); !errors.Is(err, domain.ErrMissingCustomer) {
			t.Errorf("error = %v", err)
		}
		if len(h.bills.created) != 0 {
			t.Error("invalid bill reached the backend")
		}
	})

	t.Run("short phone", func(t *testing.T) {
		h := newHarness(t, nil)
		id := h.fill(t)
		phone := "98765"
		h.session.SetCustomer(ctx, id, CustomerPatch{MobileNumber: &phone})
		if _, err := h.session.Print(ctx, id); !errors.Is(err, domain.ErrInvalidPhone) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("stock sold elsewhere", func(t *testing.T) {
		h := newHarness(t, nil)
		id := h.fill(t)
		p := h.catalog.products[7]
		p.Stock = 2
		h.catalog.products[7] = p
		if _, err := h.session.Print(ctx, id); !errors.Is(err, domain.ErrInsufficientStock) {
			t.Errorf("error = %v", err)
		}
		if len(h.bills.created) != 0 {
			t.Error("short bill reached the backend")
		}
	})

	t.Run("unknown bill", func(t *testing.T) {
		h := newHarness(t, nil)
		if _, err := h.session.Print(ctx, "nope"); !errors.Is(err, ErrBillNotFound) {
			t.Errorf("error = %v", err)
		}
	})
}

func TestPrintBackendFailureKeepsDraft(t *testing.T) {
	h := newHarness(t, nil)
	h.bills.err = errors.New("connection refused")
	id := h.fill(t)

	if _, err := h.session.Print(context.Background(), id); err == nil {
		t.Fatal("Print() error = nil")
	}
	b, _ := h.session.Bill(id)
	if b.Printing || b.CustomerName != "Kumar" {
		t.Errorf("draft after failure = %+v", b)
	}
	if len(h.printer.printed) != 0 {
		t.Error("unsaved bill was printed")
	}
}

func TestSecondPrintWhilePrinting(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.bills.entered = make(chan struct{})
	h.bills.release = make(chan struct{})
	id := h.fill(t)

	done := make(chan error, 1)
	go func() {
		_, err := h.session.Print(ctx, id)
		done <- err
	}()
	<-h.bills.entered

	if _, err := h.session.Print(ctx, id); !errors.Is(err, ErrPrintInProgress) {
		t.Errorf("second Print() error = %v, want ErrPrintInProgress", err)
	}
	close(h.bills.release)
	if err := <-done; err != nil {
		t.Fatalf("first Print() error = %v", err)
	}
	if len(h.bills.created) != 1 {
		t.Errorf("backend saw %d creates, want 1", len(h.bills.created))
	}
}

func TestEditedBillIsUpdatedNotCleared(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	id7 := 7
	draft := domain.BillDraft{
		BackendID:    "srv-42",
		BillNumber:   "B-OLD-1",
		CustomerName: "Lakshmi",
		MobileNumber: "9123456780",
		Items: []domain.LineItem{
			{ProductID: &id7, ProductName: "Milk", Price: decimal.RequireFromString("12.50"), Quantity: "1"},
			{},
		},
	}
	s := h.session.OpenDraft(ctx, draft)
	id := s.ActiveBill().ID

	if _, err := h.session.Print(ctx, id); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	if _, ok := h.bills.updated["srv-42"]; !ok || len(h.bills.created) != 0 {
		t.Errorf("creates = %d, updates = %v", len(h.bills.created), h.bills.updated)
	}
	b, _ := h.session.Bill(id)
	if b.CustomerName != "Lakshmi" {
		t.Error("edited bill was cleared after printing")
	}

	again := h.session.OpenDraft(ctx, draft)
	if len(again.Bills) != 2 {
		t.Errorf("reopening the same bill number opened %d tabs", len(again.Bills))
	}
}

func TestShortcuts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	s, err := h.session.Key(ctx, "Alt+N")
	if err != nil || len(s.Bills) != 2 || s.Active != 1 {
		t.Fatalf("Alt+N: %d bills active %d err %v", len(s.Bills), s.Active, err)
	}

	id := h.fill(t)
	if _, err := h.session.Key(ctx, "Alt+C"); err != nil {
		t.Fatal(err)
	}
	if b, _ := h.session.Bill(id); !b.Pristine() {
		t.Error("Alt+C did not clear the active bill")
	}

	h.session.Search(ctx, id, 0, "m")
	if _, err := h.session.Key(ctx, "Escape"); err != nil {
		t.Fatal(err)
	}
	if b, _ := h.session.Bill(id); b.ShowProducts {
		t.Error("Escape left the product dropdown open")
	}

	if _, err := h.session.Key(ctx, "Alt+P"); !errors.Is(err, domain.ErrNoItems) {
		t.Errorf("Alt+P on an empty bill error = %v", err)
	}
}

func TestBlurCustomerSavesContact(t *testing.T) {
	h := newHarness(t, nil)
	id := h.fill(t)

	if err := h.session.BlurCustomer(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	h.session.Stop()

	select {
	case c := <-h.contacts.upserts:
		if c.Name != "Kumar" || c.Phone != "9876543210" {
			t.Errorf("upserted %+v", c)
		}
	default:
		t.Fatal("contact was not saved")
	}
}

func TestSelectContactFillsPhone(t *testing.T) {
	h := newHarness(t, nil)
	h.contacts.known["Lakshmi"] = domain.Contact{Name: "Lakshmi", Phone: "9123456780"}
	id := h.session.State().ActiveBill().ID

	b, err := h.session.SelectContact(context.Background(), id, "Lakshmi")
	if err != nil {
		t.Fatal(err)
	}
	if b.MobileNumber != "9123456780" || b.ShowContacts {
		t.Errorf("bill = %+v", b)
	}
	if _, err := h.session.SelectContact(context.Background(), id, "Ravi"); !errors.Is(err, ErrUnknownContact) {
		t.Errorf("unknown contact error = %v", err)
	}
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	h.session.Stop()
	h.session.Stop()
}
