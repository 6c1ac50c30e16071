package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/laia-connect/billing/internal/domain/charge"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/types"
)

// InMemoryChargeStore mirrors the postgres repository semantics, including
// the partial unique constraint of one non-FAILED attempt per
// (tenant, billing cycle date).
type InMemoryChargeStore struct {
	mu       sync.RWMutex
	attempts map[string]*charge.Attempt
}

var _ charge.Repository = (*InMemoryChargeStore)(nil)

func NewInMemoryChargeStore() *InMemoryChargeStore {
	return &InMemoryChargeStore{
		attempts: make(map[string]*charge.Attempt),
	}
}

func (s *InMemoryChargeStore) Create(ctx context.Context, attempt *charge.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.attempts[attempt.ID]; exists {
		return ierr.NewError("charge attempt already exists").Mark(ierr.ErrAlreadyExists)
	}
	if attempt.Outcome.CountsForCycle() {
		for _, existing := range s.attempts {
			if existing.TenantID == attempt.TenantID &&
				existing.BillingCycleDate.Equal(attempt.BillingCycleDate) &&
				existing.Outcome.CountsForCycle() {
				return ierr.NewError("billing cycle already has a charge attempt").Mark(ierr.ErrAlreadyExists)
			}
		}
	}

	cp := *attempt
	s.attempts[attempt.ID] = &cp
	return nil
}

func (s *InMemoryChargeStore) Get(ctx context.Context, id string) (*charge.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attempt, exists := s.attempts[id]
	if !exists {
		return nil, ierr.NewError("charge attempt not found").Mark(ierr.ErrNotFound)
	}
	cp := *attempt
	return &cp, nil
}

func (s *InMemoryChargeStore) GetByCycle(ctx context.Context, tenantID string, cycleDate time.Time) (*charge.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, attempt := range s.attempts {
		if attempt.TenantID == tenantID &&
			attempt.BillingCycleDate.Equal(cycleDate) &&
			attempt.Outcome.CountsForCycle() {
			cp := *attempt
			return &cp, nil
		}
	}
	return nil, ierr.NewError("no charge attempt for cycle").Mark(ierr.ErrNotFound)
}

func (s *InMemoryChargeStore) GetByGatewayChargeID(ctx context.Context, gatewayChargeID string) (*charge.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, attempt := range s.attempts {
		if attempt.GatewayChargeID != nil && *attempt.GatewayChargeID == gatewayChargeID {
			cp := *attempt
			return &cp, nil
		}
	}
	return nil, ierr.NewError("charge attempt not found").Mark(ierr.ErrNotFound)
}

func (s *InMemoryChargeStore) UpdateOutcomeIfCurrent(ctx context.Context, id string, from, to types.ChargeOutcome, errorMessage *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, exists := s.attempts[id]
	if !exists {
		return false, ierr.NewError("charge attempt not found").Mark(ierr.ErrNotFound)
	}
	if attempt.Outcome != from {
		return false, nil
	}
	attempt.Outcome = to
	attempt.ErrorMessage = errorMessage
	attempt.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *InMemoryChargeStore) ExistsNonFailedAfter(ctx context.Context, tenantID string, cycleDate time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, attempt := range s.attempts {
		if attempt.TenantID == tenantID &&
			attempt.BillingCycleDate.After(cycleDate) &&
			attempt.Outcome.CountsForCycle() {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryChargeStore) ListByTenant(ctx context.Context, tenantID string) ([]*charge.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*charge.Attempt
	for _, attempt := range s.attempts {
		if attempt.TenantID == tenantID {
			cp := *attempt
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BillingCycleDate.After(result[j].BillingCycleDate)
	})
	return result, nil
}

// Clear removes all stored charge attempts
func (s *InMemoryChargeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = make(map[string]*charge.Attempt)
}
