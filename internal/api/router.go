package api

import (
	"github.com/gin-gonic/gin"
	"github.com/laia-connect/billing/internal/api/cron"
	v1 "github.com/laia-connect/billing/internal/api/v1"
	"github.com/laia-connect/billing/internal/config"
	"github.com/laia-connect/billing/internal/rest/middleware"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Subscription *v1.SubscriptionHandler
	Mandate      *v1.MandateHandler
	Invoice      *v1.InvoiceHandler
	Webhook      *v1.WebhookHandler
	CronBilling  *cron.BillingHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration) *gin.Engine {
	router := gin.New()

	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	// v1 routes
	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	// cron routes, reachable only with the scheduler secret
	cronGroup := router.Group("/cron", middleware.CronAuthMiddleware(cfg))
	registerCronRoutes(cronGroup, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	// Subscription routes
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.PUT("/:id/plan", handlers.Subscription.ChangePlan)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
	}

	// Mandate routes
	mandates := router.Group("/mandates")
	{
		mandates.POST("", handlers.Mandate.CreateMandate)
		mandates.GET("", handlers.Mandate.ListMandates)
		mandates.GET("/:id", handlers.Mandate.GetMandate)
		mandates.POST("/:id/revoke", handlers.Mandate.RevokeMandate)
	}

	// Invoice routes
	invoices := router.Group("/invoices")
	{
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.GET("/:id/pdf", handlers.Invoice.GetInvoicePDF)
		invoices.POST("/:id/refund", handlers.Invoice.RefundInvoice)
	}

	// Payment network callbacks
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/stripe", handlers.Webhook.HandleStripeWebhook)
	}
}

func registerCronRoutes(router *gin.RouterGroup, handlers Handlers) {
	billing := router.Group("/billing")
	{
		billing.POST("/run", handlers.CronBilling.RunBillingCycle)
	}
}
