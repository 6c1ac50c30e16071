package webhookDto

import "github.com/laia-connect/billing/internal/api/dto"

// InternalMandateEvent is the event payload placed on the bus when a
// mandate is created or revoked
type InternalMandateEvent struct {
	MandateID string `json:"mandate_id"`
	TenantID  string `json:"tenant_id"`
}

// MandateWebhookPayload is the delivered form of a mandate event. It only
// ever carries the masked instrument.
type MandateWebhookPayload struct {
	EventType string               `json:"event_type"`
	Mandate   *dto.MandateResponse `json:"mandate"`
}

func NewMandateWebhookPayload(eventType string, mandate *dto.MandateResponse) *MandateWebhookPayload {
	return &MandateWebhookPayload{
		EventType: eventType,
		Mandate:   mandate,
	}
}
