package types

import (
	"encoding/json"
	"time"
)

// WebhookEvent represents an outbound notification event emitted after a
// core state transition commits. The notification collaborator consumes
// these to send tenant facing confirmation/failure messages; a delivery
// failure never blocks or fails the transition that produced the event.
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	TenantID  string          `json:"tenant_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// invoice event names
const (
	WebhookEventInvoicePaymentSucceeded = "invoice.payment.succeeded"
)

// subscription event names
const (
	WebhookEventSubscriptionActivated = "subscription.activated"
	WebhookEventSubscriptionSuspended = "subscription.suspended"
	WebhookEventSubscriptionCancelled = "subscription.cancelled"
)

// mandate event names
const (
	WebhookEventMandateCreated = "mandate.created"
	WebhookEventMandateRevoked = "mandate.revoked"
)
