package webhookDto

import "github.com/laia-connect/billing/internal/api/dto"

// InternalInvoiceEvent is the event payload placed on the bus when an
// invoice is issued. Builders enrich it before delivery.
type InternalInvoiceEvent struct {
	InvoiceID string `json:"invoice_id"`
	TenantID  string `json:"tenant_id"`
}

// InvoiceWebhookPayload is the delivered form of an invoice event
type InvoiceWebhookPayload struct {
	EventType string               `json:"event_type"`
	Invoice   *dto.InvoiceResponse `json:"invoice"`
}

func NewInvoiceWebhookPayload(eventType string, invoice *dto.InvoiceResponse) *InvoiceWebhookPayload {
	return &InvoiceWebhookPayload{
		EventType: eventType,
		Invoice:   invoice,
	}
}
