package payload

import (
	"context"
	"encoding/json"

	ierr "github.com/laia-connect/billing/internal/errors"
	webhookDto "github.com/laia-connect/billing/internal/webhook/dto"
)

type InvoicePayloadBuilder struct {
	services *Services
}

func NewInvoicePayloadBuilder(services *Services) PayloadBuilder {
	return &InvoicePayloadBuilder{
		services: services,
	}
}

// BuildPayload builds the delivered payload for invoice events
func (b *InvoicePayloadBuilder) BuildPayload(ctx context.Context, eventType string, data json.RawMessage) (json.RawMessage, error) {
	var parsedPayload webhookDto.InternalInvoiceEvent

	if err := json.Unmarshal(data, &parsedPayload); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unable to unmarshal invoice event payload").
			Mark(ierr.ErrInvalidOperation)
	}

	if parsedPayload.InvoiceID == "" || parsedPayload.TenantID == "" {
		return nil, ierr.NewError("invalid invoice event payload").
			WithHint("Invoice ID and tenant ID are required").
			Mark(ierr.ErrInvalidOperation)
	}

	invoice, err := b.services.InvoiceService.GetInvoice(ctx, parsedPayload.InvoiceID)
	if err != nil {
		return nil, err
	}

	payload := webhookDto.NewInvoiceWebhookPayload(eventType, invoice)
	return json.Marshal(payload)
}
