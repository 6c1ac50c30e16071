package service

import (
	"context"
	"time"

	"github.com/laia-connect/billing/internal/domain/mandate"
	"github.com/laia-connect/billing/internal/domain/subscription"
	"github.com/laia-connect/billing/internal/testutil"
	"github.com/laia-connect/billing/internal/types"
)

// newTestServiceParams assembles ServiceParams from the base suite's
// in-memory fixtures.
func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:            s.GetLogger(),
		Config:            s.GetConfig(),
		PDFGenerator:      s.GetPDFGenerator(),
		EncryptionService: s.GetEncryption(),
		Gateway:           s.GetGateway(),
		Cache:             s.GetCache(),
		WebhookPublisher:  s.GetWebhookPublisher(),
		SubRepo:           stores.SubscriptionRepo,
		MandateRepo:       stores.MandateRepo,
		ChargeRepo:        stores.ChargeRepo,
		InvoiceRepo:       stores.InvoiceRepo,
	}
}

// seedSubscription stores a subscription in the given status, due for
// billing an hour ago, with payment network onboarding complete.
func seedSubscription(ctx context.Context, s *testutil.BaseServiceTestSuite, tenantID string, status types.SubscriptionStatus) *subscription.Subscription {
	custRef := "cus_" + tenantID
	acctRef := "acct_" + tenantID

	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		TenantID:           tenantID,
		Plan:               types.PlanTierSolo,
		SubscriptionStatus: status,
		NextBillingAt:      time.Now().UTC().Add(-time.Hour),
		GatewayCustomerID:  &custRef,
		ConnectedAccountID: &acctRef,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
	if status == types.SubscriptionStatusTrial {
		trialEnd := time.Now().UTC().Add(-time.Hour)
		sub.TrialEndsAt = &trialEnd
	}

	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(ctx, sub))
	return sub
}

// seedActiveMandate stores an ACTIVE mandate for the tenant with encrypted
// bank identifiers.
func seedActiveMandate(ctx context.Context, s *testutil.BaseServiceTestSuite, tenantID string) *mandate.Mandate {
	ibanCiphertext, err := s.GetEncryption().Encrypt("FR1420041010050500013M02606")
	s.Require().NoError(err)
	bicCiphertext, err := s.GetEncryption().Encrypt("BNPAFRPP")
	s.Require().NoError(err)

	m := &mandate.Mandate{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_MANDATE),
		TenantID:          tenantID,
		MandateRef:        "LAIA-RUM-20260115-" + tenantID,
		AccountHolderName: "Institut " + tenantID,
		IBANCiphertext:    ibanCiphertext,
		BICCiphertext:     bicCiphertext,
		IBANMasked:        "FR142004***************2606",
		MandateStatus:     types.MandateStatusActive,
		SignedAt:          time.Now().UTC(),
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().MandateRepo.Create(ctx, m))
	return m
}
