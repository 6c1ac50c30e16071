package payload

import "github.com/laia-connect/billing/internal/service"

// Services bundles the read-side services the payload builders need
type Services struct {
	SubscriptionService service.SubscriptionService
	MandateService      service.MandateService
	InvoiceService      service.InvoiceService
}

// NewServices creates a new services bundle for payload builders
func NewServices(
	subscriptionService service.SubscriptionService,
	mandateService service.MandateService,
	invoiceService service.InvoiceService,
) *Services {
	return &Services{
		SubscriptionService: subscriptionService,
		MandateService:      mandateService,
		InvoiceService:      invoiceService,
	}
}
