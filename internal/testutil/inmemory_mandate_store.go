package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/laia-connect/billing/internal/domain/mandate"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/types"
)

// InMemoryMandateStore mirrors the postgres repository semantics, including
// the partial unique constraint of one ACTIVE mandate per tenant.
type InMemoryMandateStore struct {
	mu       sync.RWMutex
	mandates map[string]*mandate.Mandate
}

var _ mandate.Repository = (*InMemoryMandateStore)(nil)

func NewInMemoryMandateStore() *InMemoryMandateStore {
	return &InMemoryMandateStore{
		mandates: make(map[string]*mandate.Mandate),
	}
}

func (s *InMemoryMandateStore) Create(ctx context.Context, m *mandate.Mandate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.mandates[m.ID]; exists {
		return ierr.NewError("mandate already exists").Mark(ierr.ErrAlreadyExists)
	}
	for _, existing := range s.mandates {
		if existing.MandateRef == m.MandateRef {
			return ierr.NewError("mandate reference already exists").Mark(ierr.ErrAlreadyExists)
		}
		if existing.TenantID == m.TenantID &&
			existing.MandateStatus == types.MandateStatusActive &&
			m.MandateStatus == types.MandateStatusActive {
			return ierr.NewError("tenant already has an active mandate").Mark(ierr.ErrAlreadyExists)
		}
	}

	cp := *m
	s.mandates[m.ID] = &cp
	return nil
}

func (s *InMemoryMandateStore) Get(ctx context.Context, id string) (*mandate.Mandate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.mandates[id]
	if !exists {
		return nil, ierr.NewError("mandate not found").Mark(ierr.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *InMemoryMandateStore) GetActiveByTenant(ctx context.Context, tenantID string) (*mandate.Mandate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.mandates {
		if m.TenantID == tenantID && m.MandateStatus == types.MandateStatusActive {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ierr.NewError("no active mandate for tenant").Mark(ierr.ErrNotFound)
}

func (s *InMemoryMandateStore) ExistsRef(ctx context.Context, mandateRef string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.mandates {
		if m.MandateRef == mandateRef {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryMandateStore) Update(ctx context.Context, m *mandate.Mandate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.mandates[m.ID]; !exists {
		return ierr.NewError("mandate not found").Mark(ierr.ErrNotFound)
	}

	cp := *m
	cp.UpdatedAt = time.Now().UTC()
	s.mandates[m.ID] = &cp
	return nil
}

func (s *InMemoryMandateStore) ListByTenant(ctx context.Context, tenantID string) ([]*mandate.Mandate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*mandate.Mandate
	for _, m := range s.mandates {
		if m.TenantID == tenantID {
			cp := *m
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Clear removes all stored mandates
func (s *InMemoryMandateStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mandates = make(map[string]*mandate.Mandate)
}
