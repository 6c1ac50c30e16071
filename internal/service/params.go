package service

import (
	"context"

	"github.com/laia-connect/billing/internal/cache"
	"github.com/laia-connect/billing/internal/config"
	"github.com/laia-connect/billing/internal/domain/charge"
	"github.com/laia-connect/billing/internal/domain/invoice"
	"github.com/laia-connect/billing/internal/domain/mandate"
	"github.com/laia-connect/billing/internal/domain/subscription"
	"github.com/laia-connect/billing/internal/gateway"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/pdf"
	"github.com/laia-connect/billing/internal/postgres"
	"github.com/laia-connect/billing/internal/security"
	webhookPublisher "github.com/laia-connect/billing/internal/webhook/publisher"
)

// withTx runs fn inside a database transaction. When no database handle
// is configured the function runs directly against the repositories.
func (p ServiceParams) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.DB == nil {
		return fn(ctx)
	}
	return p.DB.WithTx(ctx, fn)
}

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger            *logger.Logger
	Config            *config.Configuration
	DB                *postgres.DB
	PDFGenerator      pdf.Generator
	EncryptionService security.EncryptionService
	Gateway           gateway.Gateway
	Cache             cache.Cache
	WebhookPublisher  webhookPublisher.WebhookPublisher

	// Repositories
	SubRepo     subscription.Repository
	MandateRepo mandate.Repository
	ChargeRepo  charge.Repository
	InvoiceRepo invoice.Repository
}

// NewServiceParams creates a new ServiceParams with all dependencies
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db *postgres.DB,
	pdfGenerator pdf.Generator,
	encryptionService security.EncryptionService,
	gw gateway.Gateway,
	cacheStore cache.Cache,
	webhookPublisher webhookPublisher.WebhookPublisher,
	subRepo subscription.Repository,
	mandateRepo mandate.Repository,
	chargeRepo charge.Repository,
	invoiceRepo invoice.Repository,
) ServiceParams {
	return ServiceParams{
		Logger:            logger,
		Config:            config,
		DB:                db,
		PDFGenerator:      pdfGenerator,
		EncryptionService: encryptionService,
		Gateway:           gw,
		Cache:             cacheStore,
		WebhookPublisher:  webhookPublisher,
		SubRepo:           subRepo,
		MandateRepo:       mandateRepo,
		ChargeRepo:        chargeRepo,
		InvoiceRepo:       invoiceRepo,
	}
}
