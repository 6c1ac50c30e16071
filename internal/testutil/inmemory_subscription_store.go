package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/laia-connect/billing/internal/domain/subscription"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/types"
)

// InMemorySubscriptionStore mirrors the postgres repository semantics:
// one subscription per tenant, status moved only through the optimistic
// UpdateStatusIfCurrent, Update never touching the status column.
type InMemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]*subscription.Subscription
}

var _ subscription.Repository = (*InMemorySubscriptionStore)(nil)

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		subs: make(map[string]*subscription.Subscription),
	}
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.ID]; exists {
		return ierr.NewError("subscription already exists").Mark(ierr.ErrAlreadyExists)
	}
	for _, existing := range s.subs {
		if existing.TenantID == sub.TenantID {
			return ierr.NewError("tenant already has a subscription").Mark(ierr.ErrAlreadyExists)
		}
	}

	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.subs[id]
	if !exists {
		return nil, ierr.NewError("subscription not found").Mark(ierr.ErrNotFound)
	}
	cp := *sub
	return &cp, nil
}

func (s *InMemorySubscriptionStore) GetByTenant(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.TenantID == tenantID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ierr.NewError("subscription not found").Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.subs[sub.ID]
	if !exists {
		return ierr.NewError("subscription not found").Mark(ierr.ErrNotFound)
	}

	cp := *sub
	// status moves only through UpdateStatusIfCurrent
	cp.SubscriptionStatus = existing.SubscriptionStatus
	s.subs[sub.ID] = &cp
	return nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		cp := *sub
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *InMemorySubscriptionStore) ListDue(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*subscription.Subscription
	for _, sub := range s.subs {
		if !sub.SubscriptionStatus.IsBillable() {
			continue
		}
		if sub.NextBillingAt.After(asOf) {
			continue
		}
		if sub.TrialEndsAt != nil && sub.TrialEndsAt.After(asOf) {
			continue
		}
		cp := *sub
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].NextBillingAt.Before(result[j].NextBillingAt)
	})
	return result, nil
}

func (s *InMemorySubscriptionStore) UpdateStatusIfCurrent(ctx context.Context, id string, from, to types.SubscriptionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.subs[id]
	if !exists {
		return false, ierr.NewError("subscription not found").Mark(ierr.ErrNotFound)
	}
	if sub.SubscriptionStatus != from {
		return false, nil
	}
	sub.SubscriptionStatus = to
	sub.UpdatedAt = time.Now().UTC()
	return true, nil
}

// Clear removes all stored subscriptions
func (s *InMemorySubscriptionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[string]*subscription.Subscription)
}
