package invoice

import (
	"context"
)

// Repository defines the interface for invoice persistence
type Repository interface {
	// Create persists a new invoice. A second invoice for the same charge
	// attempt violates the unique constraint and surfaces ErrAlreadyExists.
	Create(ctx context.Context, invoice *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetByChargeAttempt returns the invoice documenting the attempt,
	// or ErrNotFound.
	GetByChargeAttempt(ctx context.Context, chargeAttemptID string) (*Invoice, error)

	// NextSequence returns the next invoice sequence number for the year
	NextSequence(ctx context.Context, year int) (int, error)

	ListByTenant(ctx context.Context, tenantID string) ([]*Invoice, error)
}
