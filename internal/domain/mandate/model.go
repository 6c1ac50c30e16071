package mandate

import (
	"time"

	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/types"
)

// Mandate is a signed authorization permitting recurring debits from a
// tenant's bank account. Bank identifiers are stored encrypted; the only
// displayable form is the masked IBAN. At most one ACTIVE mandate exists
// per tenant.
type Mandate struct {
	ID       string `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenant_id"`
	// MandateRef is the unique human-readable mandate reference; generated
	// once and never reused, even after revocation
	MandateRef string `db:"mandate_ref" json:"mandate_ref"`
	// AccountHolderName is the name on the debited bank account
	AccountHolderName string `db:"account_holder_name" json:"account_holder_name"`
	// IBANCiphertext and BICCiphertext are vault-encrypted; the plaintext
	// values are never persisted or logged
	IBANCiphertext string `db:"iban_ciphertext" json:"-"`
	BICCiphertext  string `db:"bic_ciphertext" json:"-"`
	// IBANMasked keeps the first 8 and last 4 characters only
	IBANMasked    string              `db:"iban_masked" json:"iban_masked"`
	MandateStatus types.MandateStatus `db:"mandate_status" json:"mandate_status"`
	SignedAt      time.Time           `db:"signed_at" json:"signed_at"`
	// DocumentRef points to the generated mandate document
	DocumentRef string `db:"document_ref" json:"document_ref"`

	types.BaseModel
}

// Validate validates the mandate
func (m *Mandate) Validate() error {
	if m.TenantID == "" {
		return ierr.NewError("tenant id is required").
			WithHint("Tenant ID must not be empty").
			Mark(ierr.ErrValidation)
	}
	if m.MandateRef == "" {
		return ierr.NewError("mandate reference is required").
			WithHint("Mandate reference must not be empty").
			Mark(ierr.ErrValidation)
	}
	if m.IBANCiphertext == "" || m.BICCiphertext == "" {
		return ierr.NewError("encrypted bank identifiers are required").
			WithHint("Bank identifiers must be encrypted before persisting").
			Mark(ierr.ErrValidation)
	}
	if err := m.MandateStatus.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Mandate status is invalid").
			Mark(ierr.ErrValidation)
	}
	return nil
}
