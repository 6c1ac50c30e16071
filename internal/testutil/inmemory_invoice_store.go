package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/laia-connect/billing/internal/domain/invoice"
	ierr "github.com/laia-connect/billing/internal/errors"
)

// InMemoryInvoiceStore mirrors the postgres repository semantics: at most
// one invoice per charge attempt, unique invoice numbers, a per-year
// numbering sequence.
type InMemoryInvoiceStore struct {
	mu        sync.RWMutex
	invoices  map[string]*invoice.Invoice
	sequences map[int]int
}

var _ invoice.Repository = (*InMemoryInvoiceStore)(nil)

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		invoices:  make(map[string]*invoice.Invoice),
		sequences: make(map[int]int),
	}
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.ID]; exists {
		return ierr.NewError("invoice already exists").Mark(ierr.ErrAlreadyExists)
	}
	for _, existing := range s.invoices {
		if existing.ChargeAttemptID == inv.ChargeAttemptID {
			return ierr.NewError("charge attempt already invoiced").Mark(ierr.ErrAlreadyExists)
		}
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return ierr.NewError("invoice number already exists").Mark(ierr.ErrAlreadyExists)
		}
	}

	cp := *inv
	s.invoices[inv.ID] = &cp
	return nil
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, exists := s.invoices[id]
	if !exists {
		return nil, ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
	}
	cp := *inv
	return &cp, nil
}

func (s *InMemoryInvoiceStore) GetByChargeAttempt(ctx context.Context, chargeAttemptID string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.invoices {
		if inv.ChargeAttemptID == chargeAttemptID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
}

func (s *InMemoryInvoiceStore) NextSequence(ctx context.Context, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequences[year]++
	return s.sequences[year], nil
}

func (s *InMemoryInvoiceStore) ListByTenant(ctx context.Context, tenantID string) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*invoice.Invoice
	for _, inv := range s.invoices {
		if inv.TenantID == tenantID {
			cp := *inv
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].IssuedAt.After(result[j].IssuedAt)
	})
	return result, nil
}

// Clear removes all stored invoices and resets numbering
func (s *InMemoryInvoiceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = make(map[string]*invoice.Invoice)
	s.sequences = make(map[int]int)
}
