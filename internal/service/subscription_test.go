package service

import (
	"testing"
	"time"

	"github.com/laia-connect/billing/internal/api/dto"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/testutil"
	"github.com/laia-connect/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	subscriptionService SubscriptionService
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.subscriptionService = NewSubscriptionService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *SubscriptionServiceSuite) TestCreateStartsTrial() {
	ctx := s.GetContext()

	resp, err := s.subscriptionService.CreateSubscription(ctx, &dto.CreateSubscriptionRequest{
		TenantID: "tenant-1",
		Plan:     types.PlanTierDuo,
		Name:     "Institut Belle Peau",
		Email:    "contact@bellepeau.fr",
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusTrial, resp.SubscriptionStatus)
	s.Equal(types.PlanTierDuo, resp.Plan)
	s.Equal("Formule Duo", resp.PlanDisplayName)
	s.Equal("89", resp.MonthlyAmount)

	// trial window per configuration, first billing at trial end
	s.Require().NotNil(resp.TrialEndsAt)
	s.Equal(*resp.TrialEndsAt, resp.NextBillingAt)
	expectedEnd := time.Now().UTC().AddDate(0, 0, s.GetConfig().Billing.TrialDays)
	s.WithinDuration(expectedEnd, *resp.TrialEndsAt, time.Minute)

	// payment network onboarding happened at creation
	s.Require().NotNil(resp.GatewayCustomerID)
	s.Equal("cus_tenant-1", *resp.GatewayCustomerID)
	s.Require().NotNil(resp.ConnectedAccountID)
	s.Equal("acct_tenant-1", *resp.ConnectedAccountID)
}

func (s *SubscriptionServiceSuite) TestCreateRejectsSecondSubscription() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)

	_, err := s.subscriptionService.CreateSubscription(ctx, &dto.CreateSubscriptionRequest{
		TenantID: "tenant-1",
		Plan:     types.PlanTierSolo,
		Name:     "Institut Belle Peau",
		Email:    "contact@bellepeau.fr",
	})
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *SubscriptionServiceSuite) TestCreateValidatesRequest() {
	ctx := s.GetContext()

	_, err := s.subscriptionService.CreateSubscription(ctx, &dto.CreateSubscriptionRequest{
		TenantID: "tenant-1",
		Plan:     types.PlanTier("GOLD"),
		Name:     "Institut Belle Peau",
		Email:    "contact@bellepeau.fr",
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.subscriptionService.CreateSubscription(ctx, &dto.CreateSubscriptionRequest{
		TenantID: "tenant-1",
		Plan:     types.PlanTierSolo,
		Name:     "Institut Belle Peau",
		Email:    "not-an-email",
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestChangePlanKeepsBillingDate() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	scheduledBilling := sub.NextBillingAt

	resp, err := s.subscriptionService.ChangePlan(ctx, sub.ID, &dto.ChangePlanRequest{
		Plan: types.PlanTierPremium,
	})
	s.NoError(err)
	s.Equal(types.PlanTierPremium, resp.Plan)
	s.Equal("249", resp.MonthlyAmount)
	s.Equal(scheduledBilling, resp.NextBillingAt)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestChangePlanRejectedWhenCancelled() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusCancelled)

	_, err := s.subscriptionService.ChangePlan(ctx, sub.ID, &dto.ChangePlanRequest{
		Plan: types.PlanTierTeam,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestCancelIsTerminal() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)

	resp, err := s.subscriptionService.CancelSubscription(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, resp.SubscriptionStatus)
	s.Contains(s.GetWebhookPublisher().EventNames(), types.WebhookEventSubscriptionCancelled)

	// cancelling again is an acknowledged no-op
	resp, err = s.subscriptionService.CancelSubscription(ctx, sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, resp.SubscriptionStatus)

	// and the cancelled event was not republished
	names := s.GetWebhookPublisher().EventNames()
	count := 0
	for _, name := range names {
		if name == types.WebhookEventSubscriptionCancelled {
			count++
		}
	}
	s.Equal(1, count)
}

func (s *SubscriptionServiceSuite) TestGetByTenant() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)

	resp, err := s.subscriptionService.GetSubscriptionByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Equal(sub.ID, resp.ID)

	_, err = s.subscriptionService.GetSubscriptionByTenant(ctx, "tenant-unknown")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestListSubscriptions() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-2", types.SubscriptionStatusTrial)

	resp, err := s.subscriptionService.ListSubscriptions(ctx)
	s.NoError(err)
	s.Equal(2, resp.Total)
	s.Len(resp.Items, 2)
}
