package pdf

import (
	"time"
)

// InvoiceData represents the data model for invoice PDF generation
type InvoiceData struct {
	ID            string    `json:"id"`
	InvoiceNumber string    `json:"invoice_number"`
	IssuingDate   time.Time `json:"issuing_date"`
	Currency      string    `json:"currency"`
	AmountDue     float64   `json:"amount_due"`
	PlanName      string    `json:"plan_name"`
	Notes         string    `json:"notes"`

	Biller    *BillerInfo    `json:"biller"`
	Recipient *RecipientInfo `json:"recipient"`
}

// MandateData represents the data model for SEPA mandate PDF generation.
// The IBAN here is the masked display form; the unmasked value must never
// reach this layer.
type MandateData struct {
	ID                string    `json:"id"`
	MandateRef        string    `json:"mandate_ref"`
	AccountHolderName string    `json:"account_holder_name"`
	IBANMasked        string    `json:"iban_masked"`
	SignedAt          time.Time `json:"signed_at"`

	Creditor *BillerInfo    `json:"creditor"`
	Debtor   *RecipientInfo `json:"debtor"`
}

// BillerInfo contains the platform's identity as document issuer
type BillerInfo struct {
	Name      string      `json:"name"`
	Email     string      `json:"email,omitempty"`
	Website   string      `json:"website,omitempty"`
	HelpEmail string      `json:"help_email,omitempty"`
	Address   AddressInfo `json:"address"`
}

// RecipientInfo contains tenant billing identity for the document
type RecipientInfo struct {
	Name    string      `json:"name"`
	Email   string      `json:"email,omitempty"`
	Address AddressInfo `json:"address"`
}

// AddressInfo represents a physical address
type AddressInfo struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}
