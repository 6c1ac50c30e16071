package charge

import (
	"context"
	"time"

	"github.com/laia-connect/billing/internal/types"
)

// Repository defines the interface for charge attempt persistence.
//
// Create must enforce the partial unique constraint on
// (tenant_id, billing_cycle_date) for non-FAILED outcomes and surface a
// violation as ErrAlreadyExists: a duplicate insert is rejected, not
// silently accepted. That rejection doubles as the mutual-exclusion
// mechanism between concurrent scheduler runs.
type Repository interface {
	Create(ctx context.Context, attempt *Attempt) error
	Get(ctx context.Context, id string) (*Attempt, error)

	// GetByCycle returns the non-FAILED attempt occupying the
	// (tenant, cycle) slot, or ErrNotFound.
	GetByCycle(ctx context.Context, tenantID string, cycleDate time.Time) (*Attempt, error)

	// GetByGatewayChargeID resolves a reconciliation notification to the
	// attempt it settles.
	GetByGatewayChargeID(ctx context.Context, gatewayChargeID string) (*Attempt, error)

	// UpdateOutcomeIfCurrent settles the attempt outcome only if it still
	// equals from. Returns false without error when the attempt already
	// moved on, so replayed notifications are no-ops.
	UpdateOutcomeIfCurrent(ctx context.Context, id string, from, to types.ChargeOutcome, errorMessage *string) (bool, error)

	// ExistsNonFailedAfter reports whether a later cycle already produced
	// a non-FAILED attempt for the tenant. Used as the optimistic guard
	// before a late failure notification suspends the tenant.
	ExistsNonFailedAfter(ctx context.Context, tenantID string, cycleDate time.Time) (bool, error)

	ListByTenant(ctx context.Context, tenantID string) ([]*Attempt, error)
}
