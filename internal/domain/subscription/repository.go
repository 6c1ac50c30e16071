package subscription

import (
	"context"
	"time"

	"github.com/laia-connect/billing/internal/types"
)

// Repository defines the interface for subscription persistence
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	GetByTenant(ctx context.Context, tenantID string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	List(ctx context.Context) ([]*Subscription, error)

	// ListDue returns the consistent snapshot of subscriptions the
	// scheduler must process for a run: billable status, next billing
	// date reached, trial over.
	ListDue(ctx context.Context, asOf time.Time) ([]*Subscription, error)

	// UpdateStatusIfCurrent transitions the subscription status only if
	// it still equals from. It returns false without error when the
	// optimistic check fails, so a stale reconciliation event cannot
	// undo a more recent transition.
	UpdateStatusIfCurrent(ctx context.Context, id string, from, to types.SubscriptionStatus) (bool, error)
}
