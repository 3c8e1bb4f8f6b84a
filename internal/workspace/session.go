package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/editor"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/events"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/receipt"
)

const (
	KeyOpenBills = "billing.openBills"
	KeyActiveTab = "billing.activeTab"
)

var (
	ErrBillNotFound    = errors.New("bill not found")
	ErrPrintInProgress = errors.New("bill is already printing")
	ErrUnknownContact  = errors.New("unknown contact")
)

// Store persists UI state under fixed keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

type Catalog interface {
	editor.ProductSource
	Refresh(ctx context.Context) error
}

type Contacts interface {
	Find(name string) (domain.Contact, bool)
	Upsert(ctx context.Context, name, phone string) error
}

type Bills interface {
	CreateBill(ctx context.Context, req domain.CreateBillRequest) (*domain.HistoricalBill, error)
	UpdateBill(ctx context.Context, id string, req domain.CreateBillRequest) (*domain.HistoricalBill, error)
	KeepAlive(ctx context.Context) error
}

type Printer interface {
	PrintBill(ctx context.Context, b receipt.Bill) error
}

// Deps are the collaborators of a Session.
type Deps struct {
	Store     Store
	Catalog   Catalog
	Contacts  Contacts
	Bills     Bills
	Printer   Printer
	Publisher events.Publisher
}

type Options struct {
	BillPrefix        string
	KeepAliveInterval time.Duration
	UpsertTimeout     time.Duration
	Now               func() time.Time
	NewID             func() string
}

// Session owns the open tabs of one workstation. Transitions are
// serialised; network calls run without the lock held.
type Session struct {
	deps   Deps
	opts   Options
	editor editor.Editor
	logger *zap.Logger

	mu    sync.Mutex
	state State
	seq   int

	cron *cron.Cron
	wg   sync.WaitGroup
}

func NewSession(deps Deps, opts Options, logger *zap.Logger) *Session {
	if opts.BillPrefix == "" {
		opts.BillPrefix = "B"
	}
	if opts.KeepAliveInterval <= 0 {
		opts.KeepAliveInterval = 5 * time.Minute
	}
	if opts.UpsertTimeout <= 0 {
		opts.UpsertTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{Logger: logger}
	}

	s := &Session{
		deps:   deps,
		opts:   opts,
		editor: editor.New(deps.Catalog),
		logger: logger,
	}
	s.state = State{Bills: []domain.BillDraft{s.freshBill()}}
	return s
}

// freshBill must be called with mu held, or before the session is shared.
func (s *Session) freshBill() domain.BillDraft {
	return domain.NewBillDraft(s.opts.NewID(), s.nextBillNumber())
}

func (s *Session) nextBillNumber() string {
	s.seq++
	return fmt.Sprintf("%s-%s-%d", s.opts.BillPrefix, s.opts.Now().Format("20060102-150405"), s.seq)
}

// Restore loads the persisted tabs. Missing or unusable state leaves a
// single fresh bill.
func (s *Session) Restore(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("Starting with a fresh workspace", zap.Error(err))
		state = State{Bills: []domain.BillDraft{s.freshBill()}}
	} else {
		s.logger.Info("Workspace restored",
			zap.Int("bills", len(state.Bills)),
			zap.Int("active", state.Active))
	}
	s.state = state
	s.persist(ctx)
	return s.state
}

func (s *Session) load(ctx context.Context) (State, error) {
	raw, err := s.deps.Store.Get(ctx, KeyOpenBills)
	if err != nil {
		return State{}, fmt.Errorf("read %s: %w", KeyOpenBills, err)
	}
	var bills []domain.BillDraft
	if err := json.Unmarshal(raw, &bills); err != nil {
		return State{}, fmt.Errorf("decode %s: %w", KeyOpenBills, err)
	}
	if len(bills) == 0 {
		return State{}, fmt.Errorf("%s is empty", KeyOpenBills)
	}

	raw, err = s.deps.Store.Get(ctx, KeyActiveTab)
	if err != nil {
		return State{}, fmt.Errorf("read %s: %w", KeyActiveTab, err)
	}
	var active int
	if err := json.Unmarshal(raw, &active); err != nil {
		return State{}, fmt.Errorf("decode %s: %w", KeyActiveTab, err)
	}
	if active < 0 || active >= len(bills) {
		return State{}, fmt.Errorf("%s %d out of range", KeyActiveTab, active)
	}

	for i := range bills {
		if bills[i].ID == "" {
			bills[i].ID = s.opts.NewID()
		}
		if len(bills[i].Items) == 0 {
			bills[i].Items = []domain.LineItem{{}}
		}
		// a print cannot survive a restart
		bills[i].Printing = false
	}
	s.seq = len(bills)
	return State{Bills: bills, Active: active}, nil
}

// persist mirrors the state to the store. Must be called with mu held.
func (s *Session) persist(ctx context.Context) {
	bills, err := json.Marshal(s.state.Bills)
	if err != nil {
		s.logger.Error("Failed to encode open bills", zap.Error(err))
		return
	}
	if err := s.deps.Store.Put(ctx, KeyOpenBills, bills); err != nil {
		s.logger.Error("Failed to save open bills", zap.Error(err))
	}
	if err := s.deps.Store.Put(ctx, KeyActiveTab, []byte(fmt.Sprint(s.state.Active))); err != nil {
		s.logger.Error("Failed to save active tab", zap.Error(err))
	}
}

func (s *Session) dispatch(ctx context.Context, a Action) State {
	s.state = Reduce(s.state, a)
	s.persist(ctx)
	return s.state
}

// Start schedules the keep-alive ping.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	schedule := "@every " + s.opts.KeepAliveInterval.String()
	if _, err := c.AddFunc(schedule, s.keepAlive); err != nil {
		return fmt.Errorf("schedule keep-alive %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("Keep-alive scheduled", zap.Duration("interval", s.opts.KeepAliveInterval))
	return nil
}

func (s *Session) keepAlive() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.deps.Bills.KeepAlive(ctx); err != nil {
		s.logger.Warn("Keep-alive ping failed", zap.Error(err))
		return
	}
	s.logger.Debug("Keep-alive ping ok")
}

// Stop cancels the keep-alive and waits for background contact saves.
func (s *Session) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Session) Bill(id string) (domain.BillDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bill(id)
}

func (s *Session) bill(id string) (domain.BillDraft, error) {
	i := s.state.Index(id)
	if i < 0 {
		return domain.BillDraft{}, fmt.Errorf("%w: %s", ErrBillNotFound, id)
	}
	return s.state.Bills[i], nil
}

func (s *Session) NewBill(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatch(ctx, CreateBill{Draft: s.freshBill()})
}

func (s *Session) CloseBill(ctx context.Context, index int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fallback domain.BillDraft
	if len(s.state.Bills) == 1 {
		fallback = s.freshBill()
	}
	return s.dispatch(ctx, CloseBill{Index: index, Fallback: fallback})
}

func (s *Session) SwitchBill(ctx context.Context, index int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatch(ctx, SwitchBill{Index: index})
}

// ClearBill empties a bill and gives it a new number.
func (s *Session) ClearBill(ctx context.Context, id string) (domain.BillDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.bill(id)
	if err != nil {
		return d, err
	}
	if d.Printing {
		return d, ErrPrintInProgress
	}
	s.dispatch(ctx, ClearBill{ID: id, BillNumber: s.nextBillNumber()})
	return s.bill(id)
}

// OpenDraft shows draft in a tab, reusing a tab with the same bill number.
func (s *Session) OpenDraft(ctx context.Context, draft domain.BillDraft) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if draft.ID == "" {
		draft.ID = s.opts.NewID()
	}
	if len(draft.Items) == 0 {
		draft.Items = []domain.LineItem{{}}
	}
	return s.dispatch(ctx, OpenDraft{Draft: draft})
}

// edit applies an editor operation to a bill and stores the result even
// when the operation returned a warning.
func (s *Session) edit(ctx context.Context, id string, op func(domain.BillDraft) (domain.BillDraft, error)) (domain.BillDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.bill(id)
	if err != nil {
		return d, err
	}
	next, opErr := op(d)
	s.dispatch(ctx, UpdateBill{ID: id, Patch: Replace(next)})
	return next, opErr
}

func (s *Session) Search(ctx context.Context, id string, row int, text string) (domain.BillDraft, error) {
	return s.edit(ctx, id, func(d domain.BillDraft) (domain.BillDraft, error) {
		return s.editor.Search(d, row, text)
	})
}

func (s *Session) SelectProduct(ctx context.Context, id string, row, productID int) (domain.BillDraft, error) {
	return s.edit(ctx, id, func(d domain.BillDraft) (domain.BillDraft, error) {
		return s.editor.Select(d, row, productID)
	})
}

func (s *Session) SetQuantity(ctx context.Context, id string, row int, text string) (domain.BillDraft, error) {
	return s.edit(ctx, id, func(d domain.BillDraft) (domain.BillDraft, error) {
		return s.editor.SetQuantity(d, row, text)
	})
}

func (s *Session) Focus(ctx context.Context, id string, target domain.FocusTarget) (domain.BillDraft, error) {
	return s.edit(ctx, id, func(d domain.BillDraft) (domain.BillDraft, error) {
		return s.editor.Focus(d, target)
	})
}

// CustomerPatch carries the header fields typed into a bill.
type CustomerPatch struct {
	CustomerName *string `json:"customerName"`
	MobileNumber *string `json:"mobileNumber"`
}

// SetCustomer updates the customer fields. Typing a name opens the contact
// dropdown; the mobile number keeps digits only, at most ten.
func (s *Session) SetCustomer(ctx context.Context, id string, p CustomerPatch) (domain.BillDraft, error) {
	return s.edit(ctx, id, func(d domain.BillDraft) (domain.BillDraft, error) {
		if p.CustomerName != nil {
			d.CustomerName = *p.CustomerName
			d.ShowContacts = strings.TrimSpace(d.CustomerName) != ""
			d.Focus = domain.FocusTarget{Field: domain.FieldCustomerName}
		}
		if p.MobileNumber != nil {
			d.MobileNumber = digits(*p.MobileNumber, 10)
			d.Focus = domain.FocusTarget{Field: domain.FieldMobileNumber}
		}
		return d, nil
	})
}

// SelectContact fills the customer fields from a saved contact.
func (s *Session) SelectContact(ctx context.Context, id, name string) (domain.BillDraft, error) {
	c, ok := s.deps.Contacts.Find(name)
	if !ok {
		return domain.BillDraft{}, fmt.Errorf("%w: %s", ErrUnknownContact, name)
	}
	return s.edit(ctx, id, func(d domain.BillDraft) (domain.BillDraft, error) {
		d.CustomerName = c.Name
		d.MobileNumber = c.Phone
		d.ShowContacts = false
		d.Focus = domain.FocusTarget{Row: len(d.Items) - 1, Field: domain.FieldProductSearch}
		return d, nil
	})
}

// BlurCustomer saves the customer as a contact in the background. Failures
// are logged only.
func (s *Session) BlurCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	d, err := s.bill(id)
	if err == nil && d.ShowContacts {
		s.dispatch(ctx, UpdateBill{ID: id, Patch: BillPatch{ShowContacts: boolPtr(false)}})
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	name, phone := strings.TrimSpace(d.CustomerName), d.MobileNumber
	if name == "" || !domain.ValidPhone(phone) {
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.UpsertTimeout)
		defer cancel()
		if err := s.deps.Contacts.Upsert(ctx, name, phone); err != nil {
			s.logger.Warn("Failed to save contact", zap.String("name", name), zap.Error(err))
		}
	}()
	return nil
}

// Key routes a key press. Global shortcuts act on the active tab; any
// other key goes to the focused field of the active tab.
func (s *Session) Key(ctx context.Context, key string) (State, error) {
	switch key {
	case "Alt+N", "Alt+n":
		return s.NewBill(ctx), nil
	case "Alt+C", "Alt+c":
		_, err := s.ClearBill(ctx, s.activeID())
		return s.State(), err
	case "Alt+P", "Alt+p":
		_, err := s.Print(ctx, s.activeID())
		return s.State(), err
	}

	_, err := s.edit(ctx, s.activeID(), func(d domain.BillDraft) (domain.BillDraft, error) {
		return s.editor.Key(d, editor.Key(key))
	})
	return s.State(), err
}

func (s *Session) activeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActiveBill().ID
}

// Receipt builds the receipt a bill would print right now.
func (s *Session) Receipt(id string) (receipt.Bill, error) {
	d, err := s.Bill(id)
	if err != nil {
		return receipt.Bill{}, err
	}
	return receipt.FromDraft(d, s.opts.Now()), nil
}

// Print validates, saves, prints and (for new bills) clears a bill. A bill
// saved once is updated on every later attempt, so a print that fails after
// the save never creates a second bill.
func (s *Session) Print(ctx context.Context, id string) (*domain.HistoricalBill, error) {
	s.mu.Lock()
	d, err := s.bill(id)
	if err == nil {
		err = s.checkPrintable(d)
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.dispatch(ctx, UpdateBill{ID: id, Patch: BillPatch{Printing: boolPtr(true), ShowProducts: boolPtr(false), ShowContacts: boolPtr(false)}})
	s.mu.Unlock()

	updating := d.BackendID != ""
	req := domain.NewCreateBillRequest(d)

	var saved *domain.HistoricalBill
	if updating {
		saved, err = s.deps.Bills.UpdateBill(ctx, d.BackendID, req)
	} else {
		saved, err = s.deps.Bills.CreateBill(ctx, req)
	}
	if err != nil {
		s.logger.Error("Failed to save bill",
			zap.String("bill_number", d.BillNumber),
			zap.Bool("update", updating),
			zap.Error(err))
		s.finishPrint(ctx, id, false, BillPatch{})
		return nil, fmt.Errorf("save bill %s: %w", d.BillNumber, err)
	}
	s.logger.Info("Bill saved",
		zap.String("bill_id", saved.ID),
		zap.String("bill_number", d.BillNumber),
		zap.Int("items", len(req.Items)))

	if err := s.deps.Catalog.Refresh(ctx); err != nil {
		s.logger.Warn("Catalog refresh after save failed", zap.Error(err))
	}
	if err := s.deps.Publisher.PublishBillSaved(ctx, events.NewBillSavedEvent(*saved, updating, s.opts.Now())); err != nil {
		s.logger.Warn("Failed to publish bill event", zap.String("bill_number", d.BillNumber), zap.Error(err))
	}

	if saved.BillNumber != "" {
		d.BillNumber = saved.BillNumber
	}
	// From here on the bill exists on the backend: a retry must update it,
	// and its units count as held by this draft.
	savedPatch := BillPatch{
		BillNumber: &d.BillNumber,
		Reserved:   reservedBy(req),
	}
	if saved.ID != "" {
		savedPatch.BackendID = &saved.ID
	}
	if err := s.deps.Printer.PrintBill(ctx, receipt.FromDraft(d, s.opts.Now())); err != nil {
		if !updating {
			savedPatch.PendingPrint = boolPtr(true)
		}
		s.finishPrint(ctx, id, false, savedPatch)
		return saved, err
	}
	s.finishPrint(ctx, id, !updating || d.PendingPrint, savedPatch)
	return saved, nil
}

func reservedBy(req domain.CreateBillRequest) map[int]int {
	out := map[int]int{}
	for _, it := range req.Items {
		out[it.ProductID] += it.Quantity
	}
	return out
}

func (s *Session) checkPrintable(d domain.BillDraft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := s.editor.CheckStock(d); err != nil {
		return err
	}
	if d.Printing {
		return ErrPrintInProgress
	}
	return nil
}

// finishPrint ends a print: a cleared bill starts over, any other bill
// gets patch applied and leaves the printing state.
func (s *Session) finishPrint(ctx context.Context, id string, clear bool, patch BillPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clear {
		s.dispatch(ctx, ClearBill{ID: id, BillNumber: s.nextBillNumber()})
		return
	}
	patch.Printing = boolPtr(false)
	s.dispatch(ctx, UpdateBill{ID: id, Patch: patch})
}

func digits(s string, max int) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' && b.Len() < max {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func boolPtr(v bool) *bool { return &v }
