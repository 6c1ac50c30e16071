package repository

import (
	"github.com/laia-connect/billing/internal/domain/charge"
	"github.com/laia-connect/billing/internal/domain/invoice"
	"github.com/laia-connect/billing/internal/domain/mandate"
	"github.com/laia-connect/billing/internal/domain/subscription"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/postgres"
	postgresRepo "github.com/laia-connect/billing/internal/repository/postgres"
)

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewMandateRepository(db *postgres.DB, logger *logger.Logger) mandate.Repository {
	return postgresRepo.NewMandateRepository(db, logger)
}

func NewChargeRepository(db *postgres.DB, logger *logger.Logger) charge.Repository {
	return postgresRepo.NewChargeRepository(db, logger)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}
