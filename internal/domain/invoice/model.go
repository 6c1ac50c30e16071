package invoice

import (
	"time"

	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is the immutable billing document produced for a successful
// charge attempt. Exactly one exists per SUCCESS attempt and it is never
// mutated after creation.
type Invoice struct {
	ID       string `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenant_id"`
	// InvoiceNumber is sequential per year, format LAIA-YYYY-NNNNNN
	InvoiceNumber string `db:"invoice_number" json:"invoice_number"`
	// ChargeAttemptID links the invoice to the charge it documents; unique
	ChargeAttemptID string          `db:"charge_attempt_id" json:"charge_attempt_id"`
	Plan            types.PlanTier  `db:"plan" json:"plan"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	IssuedAt        time.Time       `db:"issued_at" json:"issued_at"`
	// DocumentRef points to the rendered invoice document
	DocumentRef string `db:"document_ref" json:"document_ref"`

	types.BaseModel
}

// Validate validates the invoice
func (i *Invoice) Validate() error {
	if i.TenantID == "" {
		return ierr.NewError("tenant id is required").
			WithHint("Tenant ID must not be empty").
			Mark(ierr.ErrValidation)
	}
	if i.InvoiceNumber == "" {
		return ierr.NewError("invoice number is required").
			WithHint("Invoice number must not be empty").
			Mark(ierr.ErrValidation)
	}
	if i.ChargeAttemptID == "" {
		return ierr.NewError("charge attempt id is required").
			WithHint("An invoice documents exactly one successful charge").
			Mark(ierr.ErrValidation)
	}
	if i.Amount.IsZero() || i.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	return nil
}
