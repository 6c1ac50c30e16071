package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/laia-connect/billing/internal/api"
	"github.com/laia-connect/billing/internal/api/cron"
	v1 "github.com/laia-connect/billing/internal/api/v1"
	"github.com/laia-connect/billing/internal/cache"
	"github.com/laia-connect/billing/internal/config"
	"github.com/laia-connect/billing/internal/gateway"
	"github.com/laia-connect/billing/internal/httpclient"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/pdf"
	"github.com/laia-connect/billing/internal/postgres"
	pubsubRouter "github.com/laia-connect/billing/internal/pubsub/router"
	"github.com/laia-connect/billing/internal/repository"
	"github.com/laia-connect/billing/internal/security"
	"github.com/laia-connect/billing/internal/sentry"
	"github.com/laia-connect/billing/internal/service"
	"github.com/laia-connect/billing/internal/typst"
	"github.com/laia-connect/billing/internal/validator"
	"github.com/laia-connect/billing/internal/webhook"
	"go.uber.org/fx"
)

// @title LAIA Connect Billing API
// @version 1.0
// @description Subscription billing and payment routing for LAIA Connect
// @BasePath /v1
// @schemes http https

func init() {
	// Billing dates are computed in UTC everywhere
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,

			// Document rendering
			typst.DefaultCompiler,
			pdf.NewGenerator,

			// Bank detail encryption
			security.NewEncryptionService,

			// Payment network
			gateway.NewStripeGateway,

			// HTTP Client
			httpclient.NewDefaultClient,

			// Repositories
			repository.NewSubscriptionRepository,
			repository.NewMandateRepository,
			repository.NewChargeRepository,
			repository.NewInvoiceRepository,

			// PubSub
			pubsubRouter.NewRouter,
		),
	)

	// Notification module (must be initialised before services)
	opts = append(opts, webhook.Module)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewSubscriptionService,
			service.NewMandateService,
			service.NewInvoiceService,
			service.NewBillingService,
			service.NewReconciliationService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	subscriptionService service.SubscriptionService,
	mandateService service.MandateService,
	invoiceService service.InvoiceService,
	billingService service.BillingService,
	reconciliationService service.ReconciliationService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(logger),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, logger),
		Mandate:      v1.NewMandateHandler(mandateService, logger),
		Invoice:      v1.NewInvoiceHandler(invoiceService, logger),
		Webhook:      v1.NewWebhookHandler(cfg, reconciliationService, logger),
		CronBilling:  cron.NewBillingHandler(billingService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration) *gin.Engine {
	return api.NewRouter(handlers, cfg)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	webhookService *webhook.WebhookService,
	router *pubsubRouter.Router,
	db *postgres.DB,
	log *logger.Logger,
) {
	startAPIServer(lc, r, cfg, log)
	startMessageRouter(lc, router, webhookService, log)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			db.Close()
			return nil
		},
	})
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting API server...")
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	webhookService *webhook.WebhookService,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := webhookService.Start(ctx, router); err != nil {
				return err
			}
			go func() {
				if err := router.Run(context.Background()); err != nil {
					log.Errorw("message router stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := webhookService.Stop(); err != nil {
				log.Errorw("failed to stop notification service", "error", err)
			}
			return router.Close()
		},
	})
}
