package mandate

import (
	"context"
)

// Repository defines the interface for mandate persistence
type Repository interface {
	Create(ctx context.Context, mandate *Mandate) error
	Get(ctx context.Context, id string) (*Mandate, error)

	// GetActiveByTenant returns the tenant's single ACTIVE mandate, or
	// ErrNotFound when the tenant holds none.
	GetActiveByTenant(ctx context.Context, tenantID string) (*Mandate, error)

	// ExistsRef reports whether a mandate reference was ever issued,
	// including for revoked mandates. References are never reused.
	ExistsRef(ctx context.Context, mandateRef string) (bool, error)

	Update(ctx context.Context, mandate *Mandate) error
	ListByTenant(ctx context.Context, tenantID string) ([]*Mandate, error)
}
