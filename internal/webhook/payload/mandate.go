package payload

import (
	"context"
	"encoding/json"

	ierr "github.com/laia-connect/billing/internal/errors"
	webhookDto "github.com/laia-connect/billing/internal/webhook/dto"
)

type MandatePayloadBuilder struct {
	services *Services
}

func NewMandatePayloadBuilder(services *Services) PayloadBuilder {
	return &MandatePayloadBuilder{
		services: services,
	}
}

// BuildPayload builds the delivered payload for mandate events
func (b *MandatePayloadBuilder) BuildPayload(ctx context.Context, eventType string, data json.RawMessage) (json.RawMessage, error) {
	var parsedPayload webhookDto.InternalMandateEvent

	if err := json.Unmarshal(data, &parsedPayload); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unable to unmarshal mandate event payload").
			Mark(ierr.ErrInvalidOperation)
	}

	if parsedPayload.MandateID == "" || parsedPayload.TenantID == "" {
		return nil, ierr.NewError("invalid mandate event payload").
			WithHint("Mandate ID and tenant ID are required").
			Mark(ierr.ErrInvalidOperation)
	}

	mandate, err := b.services.MandateService.GetMandate(ctx, parsedPayload.MandateID)
	if err != nil {
		return nil, err
	}

	payload := webhookDto.NewMandateWebhookPayload(eventType, mandate)
	return json.Marshal(payload)
}
