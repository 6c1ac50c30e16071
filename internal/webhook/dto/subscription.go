package webhookDto

import "github.com/laia-connect/billing/internal/api/dto"

// InternalSubscriptionEvent is the event payload placed on the bus when a
// subscription state transition commits
type InternalSubscriptionEvent struct {
	SubscriptionID string `json:"subscription_id"`
	TenantID       string `json:"tenant_id"`
}

// SubscriptionWebhookPayload is the delivered form of a subscription event
type SubscriptionWebhookPayload struct {
	EventType    string                    `json:"event_type"`
	Subscription *dto.SubscriptionResponse `json:"subscription"`
}

func NewSubscriptionWebhookPayload(eventType string, sub *dto.SubscriptionResponse) *SubscriptionWebhookPayload {
	return &SubscriptionWebhookPayload{
		EventType:    eventType,
		Subscription: sub,
	}
}
