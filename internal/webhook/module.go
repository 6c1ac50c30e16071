package webhook

import (
	"github.com/laia-connect/billing/internal/config"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/pubsub"
	"github.com/laia-connect/billing/internal/pubsub/memory"
	"github.com/laia-connect/billing/internal/service"
	"github.com/laia-connect/billing/internal/webhook/handler"
	"github.com/laia-connect/billing/internal/webhook/payload"
	"github.com/laia-connect/billing/internal/webhook/publisher"
	"go.uber.org/fx"
)

// Module provides all notification-related dependencies
var Module = fx.Options(
	fx.Provide(
		providePubSub,
		publisher.NewPublisher,
		handler.NewHandler,
		providePayloadBuilderFactory,
		NewWebhookService,
	),
)

func providePayloadBuilderFactory(
	subscriptionService service.SubscriptionService,
	mandateService service.MandateService,
	invoiceService service.InvoiceService,
) payload.PayloadBuilderFactory {
	services := payload.NewServices(
		subscriptionService,
		mandateService,
		invoiceService,
	)
	return payload.NewPayloadBuilderFactory(services)
}

func providePubSub(
	cfg *config.Configuration,
	logger *logger.Logger,
) pubsub.PubSub {
	return memory.NewPubSub(cfg, logger)
}
