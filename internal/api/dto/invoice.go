package dto

import (
	"github.com/laia-connect/billing/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// InvoiceResponse represents the invoice response
type InvoiceResponse struct {
	*invoice.Invoice

	// PlanDisplayName is the marketing name of the billed tier
	PlanDisplayName string `json:"plan_display_name"`
}

// NewInvoiceResponse builds the response from the domain invoice
func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		Invoice:         inv,
		PlanDisplayName: inv.Plan.DisplayName(),
	}
}

// RefundInvoiceRequest asks for a refund of the charge behind an invoice
type RefundInvoiceRequest struct {
	// Amount is the partial refund amount; omit to refund in full
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// RefundResponse reports the refund issued against an invoice's charge
type RefundResponse struct {
	InvoiceID       string          `json:"invoice_id"`
	ChargeAttemptID string          `json:"charge_attempt_id"`
	RefundRef       string          `json:"refund_ref"`
	Amount          decimal.Decimal `json:"amount"`
}

// ListInvoicesResponse represents the response for listing invoices
type ListInvoicesResponse struct {
	Items []*InvoiceResponse `json:"items"`
	Total int                `json:"total"`
}
