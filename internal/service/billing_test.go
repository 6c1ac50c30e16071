package service

import (
	"testing"
	"time"

	"github.com/laia-connect/billing/internal/testutil"
	"github.com/laia-connect/billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BillingServiceSuite struct {
	testutil.BaseServiceTestSuite
	billingService BillingService
	invoiceService InvoiceService
}

func TestBillingService(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.invoiceService = NewInvoiceService(params)
	s.billingService = NewBillingService(params, s.invoiceService)
}

func (s *BillingServiceSuite) TestChargesActiveSubscription() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")
	scheduledBilling := sub.NextBillingAt

	resp, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(1, resp.Total)
	s.Equal(1, resp.Succeeded)
	s.Equal(0, resp.Failed)

	// attempt recorded with the 2% commission rounded to whole euros:
	// 49 * 0.02 = 0.98 -> 1
	attempts, err := s.GetStores().ChargeRepo.ListByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Require().Len(attempts, 1)
	s.Equal(types.ChargeOutcomeSuccess, attempts[0].Outcome)
	s.True(attempts[0].Amount.Equal(decimal.NewFromInt(49)))
	s.True(attempts[0].CommissionAmount.Equal(decimal.NewFromInt(1)))
	s.Require().NotNil(attempts[0].GatewayChargeID)

	// exactly one invoice for the attempt
	inv, err := s.GetStores().InvoiceRepo.GetByChargeAttempt(ctx, attempts[0].ID)
	s.NoError(err)
	s.Equal("tenant-1", inv.TenantID)
	s.True(inv.Amount.Equal(decimal.NewFromInt(49)))

	// billing date advanced exactly one month from its scheduled value
	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.True(updated.NextBillingAt.After(scheduledBilling))
	expectedNext, err := types.NextBillingDate(scheduledBilling, 1, types.BILLING_PERIOD_MONTHLY)
	s.NoError(err)
	s.Equal(expectedNext, updated.NextBillingAt)
	s.NotNil(updated.LastPaymentAt)
}

func (s *BillingServiceSuite) TestTrialConversionActivates() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusTrial)
	seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")

	resp, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(1, resp.Succeeded)

	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, updated.SubscriptionStatus)

	s.Contains(s.GetWebhookPublisher().EventNames(), types.WebhookEventSubscriptionActivated)
}

func (s *BillingServiceSuite) TestNoMandateSuspends() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	scheduledBilling := sub.NextBillingAt

	resp, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(1, resp.Failed)

	attempts, err := s.GetStores().ChargeRepo.ListByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Require().Len(attempts, 1)
	s.Equal(types.ChargeOutcomeFailed, attempts[0].Outcome)
	s.Require().NotNil(attempts[0].ErrorMessage)
	s.Equal("no active mandate", *attempts[0].ErrorMessage)

	// no invoice, subscription suspended, billing date untouched
	_, err = s.GetStores().InvoiceRepo.GetByChargeAttempt(ctx, attempts[0].ID)
	s.Error(err)

	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusSuspended, updated.SubscriptionStatus)
	s.Equal(scheduledBilling, updated.NextBillingAt)

	s.Contains(s.GetWebhookPublisher().EventNames(), types.WebhookEventSubscriptionSuspended)
}

func (s *BillingServiceSuite) TestDeclineSuspends() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")
	s.GetGateway().ChargeOutcome = types.ChargeOutcomeFailed
	s.GetGateway().DeclineReason = "insufficient_funds"

	resp, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(1, resp.Failed)

	attempts, err := s.GetStores().ChargeRepo.ListByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Require().Len(attempts, 1)
	s.Equal(types.ChargeOutcomeFailed, attempts[0].Outcome)

	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusSuspended, updated.SubscriptionStatus)
}

func (s *BillingServiceSuite) TestRerunSkipsSettledCycle() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")
	scheduledBilling := sub.NextBillingAt

	first, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(1, first.Succeeded)

	// the advanced billing date takes the tenant out of the due set; wind
	// it back to simulate a crashed run restarting within the same cycle
	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	advancedBilling := updated.NextBillingAt
	updated.NextBillingAt = scheduledBilling
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(ctx, updated))

	second, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(1, second.Skipped)
	s.Equal(0, second.Succeeded)

	// still exactly one attempt, one charge call, one invoice
	attempts, err := s.GetStores().ChargeRepo.ListByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Len(attempts, 1)
	s.Len(s.GetGateway().ChargeRequests, 1)

	rewound, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.True(rewound.NextBillingAt.Before(advancedBilling))
}

func (s *BillingServiceSuite) TestOverdueCycleKeyedByScheduledDate() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")

	// forty days overdue: the cycle slot and the gateway idempotency key
	// must follow the scheduled date, not whichever day the run happens
	dueAt := time.Now().UTC().AddDate(0, 0, -40)
	sub.NextBillingAt = dueAt
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(ctx, sub))

	resp, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(1, resp.Succeeded)

	dueCycle := types.BillingCycleDate(dueAt)

	attempts, err := s.GetStores().ChargeRepo.ListByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Require().Len(attempts, 1)
	s.Equal(dueCycle, attempts[0].BillingCycleDate)

	s.Require().Len(s.GetGateway().ChargeRequests, 1)
	s.Equal(dueCycle.Format("2006-01-02"), s.GetGateway().ChargeRequests[0].Metadata["billing_cycle_date"])

	// the billing date advances from the overdue anchor, not from today
	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	expectedNext, err := types.NextBillingDate(dueAt, 1, types.BILLING_PERIOD_MONTHLY)
	s.NoError(err)
	s.Equal(expectedNext, updated.NextBillingAt)
}

func (s *BillingServiceSuite) TestPendingAdvancesWithoutInvoice() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")
	scheduledBilling := sub.NextBillingAt
	s.GetGateway().ChargeOutcome = types.ChargeOutcomePending
	s.GetGateway().OmitExternalRef = true

	resp, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(1, resp.Pending)

	// timed out submission: PENDING attempt with no gateway reference
	attempts, err := s.GetStores().ChargeRepo.ListByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Require().Len(attempts, 1)
	s.Equal(types.ChargeOutcomePending, attempts[0].Outcome)
	s.Nil(attempts[0].GatewayChargeID)

	// optimistic advancement, no invoice until settlement
	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.True(updated.NextBillingAt.After(scheduledBilling))
	s.Nil(updated.LastPaymentAt)

	invoices, err := s.GetStores().InvoiceRepo.ListByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Empty(invoices)
}

func (s *BillingServiceSuite) TestTransientExhaustionLeavesCycleOpen() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")
	s.GetGateway().TransientFailures = 100

	resp, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(1, resp.Failed)
	s.NotEmpty(resp.Items[0].Error)

	// nothing recorded: the next run retries the same cycle
	attempts, err := s.GetStores().ChargeRepo.ListByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Empty(attempts)

	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, updated.SubscriptionStatus)
	s.Equal(sub.NextBillingAt, updated.NextBillingAt)
}

func (s *BillingServiceSuite) TestTransientThenRecovers() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")
	s.GetGateway().TransientFailures = 2

	resp, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(1, resp.Succeeded)
	s.Len(s.GetGateway().ChargeRequests, 3)
}

func (s *BillingServiceSuite) TestSuspendedAndCancelledNotSelected() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusSuspended)
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-2", types.SubscriptionStatusCancelled)

	resp, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(0, resp.Total)
	s.Empty(s.GetGateway().ChargeRequests)
}

func (s *BillingServiceSuite) TestIncompleteOnboardingSuspends() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	sub.GatewayCustomerID = nil
	sub.ConnectedAccountID = nil
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(ctx, sub))
	seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")

	resp, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(1, resp.Failed)

	updated, err := s.GetStores().SubscriptionRepo.Get(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusSuspended, updated.SubscriptionStatus)
	s.Empty(s.GetGateway().ChargeRequests)
}

func (s *BillingServiceSuite) TestIndependentTenants() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")
	// tenant-2 has no mandate and fails; tenant-1 must still succeed
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-2", types.SubscriptionStatusActive)

	resp, err := s.billingService.RunBillingCycle(ctx)
	s.NoError(err)
	s.Equal(2, resp.Total)
	s.Equal(1, resp.Succeeded)
	s.Equal(1, resp.Failed)
}
