package service

import (
	"testing"
	"time"

	"github.com/laia-connect/billing/internal/domain/charge"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/testutil"
	"github.com/laia-connect/billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ReconciliationServiceSuite struct {
	testutil.BaseServiceTestSuite
	reconciliation ReconciliationService
}

func TestReconciliationService(t *testing.T) {
	suite.Run(t, new(ReconciliationServiceSuite))
}

func (s *ReconciliationServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.reconciliation = NewReconciliationService(params, NewInvoiceService(params))
}

// seedPendingAttempt stores a PENDING attempt for the tenant's current
// cycle, optionally carrying a gateway charge reference.
func (s *ReconciliationServiceSuite) seedPendingAttempt(tenantID string, gatewayRef string, cycleDate time.Time) *charge.Attempt {
	ctx := s.GetContext()
	attempt := &charge.Attempt{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE_ATTEMPT),
		TenantID:         tenantID,
		BillingCycleDate: cycleDate,
		Amount:           decimal.NewFromInt(49),
		CommissionAmount: decimal.NewFromInt(1),
		Outcome:          types.ChargeOutcomePending,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}
	if gatewayRef != "" {
		attempt.GatewayChargeID = &gatewayRef
	}
	s.Require().NoError(s.GetStores().ChargeRepo.Create(ctx, attempt))
	return attempt
}

func (s *ReconciliationServiceSuite) TestLateSuccessIssuesInvoice() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	cycleDate := types.BillingCycleDate(time.Now().UTC())
	attempt := s.seedPendingAttempt("tenant-1", "pi_123", cycleDate)

	resp, err := s.reconciliation.HandleSettlement(ctx, &SettlementNotification{
		GatewayChargeID: "pi_123",
		TenantID:        "tenant-1",
		Outcome:         types.ChargeOutcomeSuccess,
	})
	s.NoError(err)
	s.True(resp.Applied)
	s.False(resp.Duplicate)
	s.Equal(attempt.ID, resp.ChargeAttemptID)

	settled, err := s.GetStores().ChargeRepo.Get(ctx, attempt.ID)
	s.NoError(err)
	s.Equal(types.ChargeOutcomeSuccess, settled.Outcome)

	inv, err := s.GetStores().InvoiceRepo.GetByChargeAttempt(ctx, attempt.ID)
	s.NoError(err)
	s.Equal("tenant-1", inv.TenantID)

	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.NotNil(updated.LastPaymentAt)
}

func (s *ReconciliationServiceSuite) TestDuplicateNotificationIsNoOp() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	cycleDate := types.BillingCycleDate(time.Now().UTC())
	attempt := s.seedPendingAttempt("tenant-1", "pi_123", cycleDate)

	n := &SettlementNotification{
		GatewayChargeID: "pi_123",
		TenantID:        "tenant-1",
		Outcome:         types.ChargeOutcomeSuccess,
	}

	first, err := s.reconciliation.HandleSettlement(ctx, n)
	s.NoError(err)
	s.True(first.Applied)

	second, err := s.reconciliation.HandleSettlement(ctx, n)
	s.NoError(err)
	s.False(second.Applied)
	s.True(second.Duplicate)
	s.Equal(attempt.ID, second.ChargeAttemptID)

	// still a single invoice
	invoices, err := s.GetStores().InvoiceRepo.ListByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Len(invoices, 1)
}

func (s *ReconciliationServiceSuite) TestLateFailureSuspendsWithoutRollback() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	scheduledBilling := sub.NextBillingAt
	cycleDate := types.BillingCycleDate(time.Now().UTC())
	attempt := s.seedPendingAttempt("tenant-1", "pi_123", cycleDate)

	resp, err := s.reconciliation.HandleSettlement(ctx, &SettlementNotification{
		GatewayChargeID: "pi_123",
		TenantID:        "tenant-1",
		Outcome:         types.ChargeOutcomeFailed,
		FailureReason:   "debit_returned",
	})
	s.NoError(err)
	s.True(resp.Applied)

	settled, err := s.GetStores().ChargeRepo.Get(ctx, attempt.ID)
	s.NoError(err)
	s.Equal(types.ChargeOutcomeFailed, settled.Outcome)
	s.Require().NotNil(settled.ErrorMessage)
	s.Equal("debit_returned", *settled.ErrorMessage)

	// suspended, billing date never rolled back, no invoice
	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusSuspended, updated.SubscriptionStatus)
	s.Equal(scheduledBilling, updated.NextBillingAt)

	invoices, err := s.GetStores().InvoiceRepo.ListByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Empty(invoices)

	s.Contains(s.GetWebhookPublisher().EventNames(), types.WebhookEventSubscriptionSuspended)
}

func (s *ReconciliationServiceSuite) TestLateFailureIgnoredWhenLaterCycleSettled() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	cycleDate := types.BillingCycleDate(time.Now().UTC().AddDate(0, -1, 0))
	attempt := s.seedPendingAttempt("tenant-1", "pi_old", cycleDate)

	// a later cycle already settled successfully
	laterRef := "pi_new"
	later := &charge.Attempt{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE_ATTEMPT),
		TenantID:         "tenant-1",
		BillingCycleDate: types.BillingCycleDate(time.Now().UTC()),
		Amount:           decimal.NewFromInt(49),
		CommissionAmount: decimal.NewFromInt(1),
		GatewayChargeID:  &laterRef,
		Outcome:          types.ChargeOutcomeSuccess,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().ChargeRepo.Create(ctx, later))

	resp, err := s.reconciliation.HandleSettlement(ctx, &SettlementNotification{
		GatewayChargeID: "pi_old",
		TenantID:        "tenant-1",
		Outcome:         types.ChargeOutcomeFailed,
		FailureReason:   "debit_returned",
	})
	s.NoError(err)
	s.True(resp.Applied)

	// the old attempt settles FAILED but the tenant stays active
	settled, err := s.GetStores().ChargeRepo.Get(ctx, attempt.ID)
	s.NoError(err)
	s.Equal(types.ChargeOutcomeFailed, settled.Outcome)

	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, updated.SubscriptionStatus)
}

func (s *ReconciliationServiceSuite) TestMetadataFallbackMatchesTimedOutSubmission() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	cycleDate := types.BillingCycleDate(time.Now().UTC())
	// timed out before the network answered: no gateway reference stored
	attempt := s.seedPendingAttempt("tenant-1", "", cycleDate)

	resp, err := s.reconciliation.HandleSettlement(ctx, &SettlementNotification{
		GatewayChargeID:  "pi_unseen",
		TenantID:         "tenant-1",
		BillingCycleDate: &cycleDate,
		Outcome:          types.ChargeOutcomeSuccess,
	})
	s.NoError(err)
	s.True(resp.Applied)
	s.Equal(attempt.ID, resp.ChargeAttemptID)
}

func (s *ReconciliationServiceSuite) TestUnknownSettlementIsNotFound() {
	ctx := s.GetContext()

	_, err := s.reconciliation.HandleSettlement(ctx, &SettlementNotification{
		GatewayChargeID: "pi_unknown",
		TenantID:        "tenant-ghost",
		Outcome:         types.ChargeOutcomeSuccess,
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *ReconciliationServiceSuite) TestNonTerminalOutcomeRejected() {
	ctx := s.GetContext()

	_, err := s.reconciliation.HandleSettlement(ctx, &SettlementNotification{
		GatewayChargeID: "pi_123",
		Outcome:         types.ChargeOutcomePending,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *ReconciliationServiceSuite) TestConflictingTerminalOutcomesNotOverwritten() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	cycleDate := types.BillingCycleDate(time.Now().UTC())
	attempt := s.seedPendingAttempt("tenant-1", "pi_123", cycleDate)

	_, err := s.reconciliation.HandleSettlement(ctx, &SettlementNotification{
		GatewayChargeID: "pi_123",
		Outcome:         types.ChargeOutcomeSuccess,
	})
	s.NoError(err)

	// contradictory late failure is surfaced, not applied
	resp, err := s.reconciliation.HandleSettlement(ctx, &SettlementNotification{
		GatewayChargeID: "pi_123",
		Outcome:         types.ChargeOutcomeFailed,
	})
	s.NoError(err)
	s.False(resp.Applied)

	settled, err := s.GetStores().ChargeRepo.Get(ctx, attempt.ID)
	s.NoError(err)
	s.Equal(types.ChargeOutcomeSuccess, settled.Outcome)
}
