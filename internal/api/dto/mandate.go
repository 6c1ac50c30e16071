package dto

import (
	"time"

	"github.com/laia-connect/billing/internal/domain/mandate"
	"github.com/laia-connect/billing/internal/types"
	"github.com/laia-connect/billing/internal/validator"
)

// CreateMandateRequest carries the tenant's bank authorization. The IBAN
// and BIC exist in plaintext only inside this request; they are encrypted
// before anything is persisted and never appear in logs or responses.
type CreateMandateRequest struct {
	TenantID          string `json:"tenant_id" validate:"required"`
	AccountHolderName string `json:"account_holder_name" validate:"required"`
	IBAN              string `json:"iban" validate:"required"`
	BIC               string `json:"bic" validate:"required"`
	// Email is used for the payment network billing contact
	Email string `json:"email" validate:"omitempty,email"`
}

func (r *CreateMandateRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// MandateResponse represents the mandate response. Bank identifiers are
// exposed only in masked form.
type MandateResponse struct {
	ID                string              `json:"id"`
	TenantID          string              `json:"tenant_id"`
	MandateRef        string              `json:"mandate_ref"`
	AccountHolderName string              `json:"account_holder_name"`
	IBANMasked        string              `json:"iban_masked"`
	MandateStatus     types.MandateStatus `json:"mandate_status"`
	SignedAt          time.Time           `json:"signed_at"`
	DocumentRef       string              `json:"document_ref,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

// NewMandateResponse builds the masked response from the domain mandate
func NewMandateResponse(m *mandate.Mandate) *MandateResponse {
	return &MandateResponse{
		ID:                m.ID,
		TenantID:          m.TenantID,
		MandateRef:        m.MandateRef,
		AccountHolderName: m.AccountHolderName,
		IBANMasked:        m.IBANMasked,
		MandateStatus:     m.MandateStatus,
		SignedAt:          m.SignedAt,
		DocumentRef:       m.DocumentRef,
		CreatedAt:         m.CreatedAt,
	}
}

// ListMandatesResponse represents the response for listing mandates
type ListMandatesResponse struct {
	Items []*MandateResponse `json:"items"`
	Total int                `json:"total"`
}
