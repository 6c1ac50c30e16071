package payload

import (
	"github.com/laia-connect/billing/internal/types"

	ierr "github.com/laia-connect/billing/internal/errors"
)

// PayloadBuilderFactory returns the event-specific payload builder
type PayloadBuilderFactory interface {
	GetBuilder(eventType string) (PayloadBuilder, error)
}

type payloadBuilderFactory struct {
	builders map[string]func() PayloadBuilder
	services *Services
}

// NewPayloadBuilderFactory creates a new factory with registered builders
func NewPayloadBuilderFactory(services *Services) PayloadBuilderFactory {
	f := &payloadBuilderFactory{
		builders: make(map[string]func() PayloadBuilder),
		services: services,
	}

	f.builders[types.WebhookEventInvoicePaymentSucceeded] = func() PayloadBuilder {
		return NewInvoicePayloadBuilder(f.services)
	}

	f.builders[types.WebhookEventSubscriptionActivated] = func() PayloadBuilder {
		return NewSubscriptionPayloadBuilder(f.services)
	}
	f.builders[types.WebhookEventSubscriptionSuspended] = func() PayloadBuilder {
		return NewSubscriptionPayloadBuilder(f.services)
	}
	f.builders[types.WebhookEventSubscriptionCancelled] = func() PayloadBuilder {
		return NewSubscriptionPayloadBuilder(f.services)
	}

	f.builders[types.WebhookEventMandateCreated] = func() PayloadBuilder {
		return NewMandatePayloadBuilder(f.services)
	}
	f.builders[types.WebhookEventMandateRevoked] = func() PayloadBuilder {
		return NewMandatePayloadBuilder(f.services)
	}

	return f
}

// GetBuilder returns a payload builder for the given event type
func (f *payloadBuilderFactory) GetBuilder(eventType string) (PayloadBuilder, error) {
	builderFn, ok := f.builders[eventType]
	if !ok {
		return nil, ierr.NewError("no builder registered for event type").
			WithReportableDetails(map[string]any{
				"event_type": eventType,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	return builderFn(), nil
}
