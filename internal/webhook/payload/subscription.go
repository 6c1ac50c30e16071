package payload

import (
	"context"
	"encoding/json"

	ierr "github.com/laia-connect/billing/internal/errors"
	webhookDto "github.com/laia-connect/billing/internal/webhook/dto"
)

type SubscriptionPayloadBuilder struct {
	services *Services
}

func NewSubscriptionPayloadBuilder(services *Services) PayloadBuilder {
	return &SubscriptionPayloadBuilder{
		services: services,
	}
}

// BuildPayload builds the delivered payload for subscription events
func (b *SubscriptionPayloadBuilder) BuildPayload(ctx context.Context, eventType string, data json.RawMessage) (json.RawMessage, error) {
	var parsedPayload webhookDto.InternalSubscriptionEvent

	if err := json.Unmarshal(data, &parsedPayload); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unable to unmarshal subscription event payload").
			Mark(ierr.ErrInvalidOperation)
	}

	if parsedPayload.SubscriptionID == "" || parsedPayload.TenantID == "" {
		return nil, ierr.NewError("invalid subscription event payload").
			WithHint("Subscription ID and tenant ID are required").
			Mark(ierr.ErrInvalidOperation)
	}

	sub, err := b.services.SubscriptionService.GetSubscription(ctx, parsedPayload.SubscriptionID)
	if err != nil {
		return nil, err
	}

	payload := webhookDto.NewSubscriptionWebhookPayload(eventType, sub)
	return json.Marshal(payload)
}
