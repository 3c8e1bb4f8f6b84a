package contacts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
)

// ErrUpsertSkipped means the name/phone pair was not complete enough to save.
var ErrUpsertSkipped = errors.New("contact upsert skipped")

type Backend interface {
	ListContacts(ctx context.Context) ([]domain.Contact, error)
	UpsertContact(ctx context.Context, contact domain.Contact) error
}

// Directory is the client-local contact cache behind the customer autocomplete.
type Directory struct {
	backend Backend
	logger  *zap.Logger

	mu       sync.RWMutex
	contacts []domain.Contact
}

func NewDirectory(backend Backend, logger *zap.Logger) *Directory {
	return &Directory{backend: backend, logger: logger}
}

func (d *Directory) Refresh(ctx context.Context) error {
	contacts, err := d.backend.ListContacts(ctx)
	if err != nil {
		d.logger.Error("Failed to fetch contacts", zap.Error(err))
		return fmt.Errorf("refresh contacts: %w", err)
	}
	d.mu.Lock()
	d.contacts = contacts
	d.mu.Unlock()
	return nil
}

func (d *Directory) List() []domain.Contact {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Contact, len(d.contacts))
	copy(out, d.contacts)
	return out
}

// Search matches term against the name (case-insensitive) or the phone.
func (d *Directory) Search(term string) []domain.Contact {
	term = strings.ToLower(strings.TrimSpace(term))
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.Contact
	for _, c := range d.contacts {
		if term == "" ||
			strings.Contains(strings.ToLower(c.Name), term) ||
			strings.Contains(c.Phone, term) {
			out = append(out, c)
		}
	}
	return out
}

// Find looks a contact up by exact name, ignoring case.
func (d *Directory) Find(name string) (domain.Contact, bool) {
	name = strings.TrimSpace(name)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.contacts {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return domain.Contact{}, false
}

// Upsert saves the pair when both fields are present and the phone has
// exactly 10 digits, then refetches the list.
func (d *Directory) Upsert(ctx context.Context, name, phone string) error {
	name = strings.TrimSpace(name)
	if name == "" || !domain.ValidPhone(phone) {
		return ErrUpsertSkipped
	}
	if c, ok := d.Find(name); ok && c.Phone == phone {
		return nil
	}

	if err := d.backend.UpsertContact(ctx, domain.Contact{Name: name, Phone: phone}); err != nil {
		return fmt.Errorf("upsert contact %q: %w", name, err)
	}
	d.logger.Info("Contact saved", zap.String("name", name))
	return d.Refresh(ctx)
}
