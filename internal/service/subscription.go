package service

import (
	"context"

	"github.com/laia-connect/billing/internal/api/dto"
	"github.com/laia-connect/billing/internal/domain/subscription"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/gateway"
	"github.com/laia-connect/billing/internal/types"
	webhookDto "github.com/laia-connect/billing/internal/webhook/dto"
	"github.com/samber/lo"
)

// SubscriptionService manages the tenant billing lifecycle
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	GetSubscriptionByTenant(ctx context.Context, tenantID string) (*dto.SubscriptionResponse, error)
	ChangePlan(ctx context.Context, id string, req *dto.ChangePlanRequest) (*dto.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context) (*dto.ListSubscriptionsResponse, error)
}

type subscriptionService struct {
	ServiceParams
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
	}
}

// CreateSubscription onboards a tenant: one subscription per tenant, TRIAL
// status, trial window per configuration, first billing date at trial end.
func (s *subscriptionService) CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.SubRepo.GetByTenant(ctx, req.TenantID); err == nil && existing != nil {
		return nil, ierr.NewError("tenant already has a subscription").
			WithHintf("Tenant %s is already subscribed", req.TenantID).
			WithReportableDetails(map[string]any{
				"subscription_id": existing.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	} else if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	sub := req.ToSubscription(ctx, s.Config.Billing.TrialDays)

	// Network onboarding is best effort here; the scheduler repeats it
	// before the first charge if it did not stick.
	customerRef, err := s.Gateway.EnsureCustomer(ctx, gateway.EnsureCustomerRequest{
		TenantID: req.TenantID,
		Name:     req.Name,
		Email:    req.Email,
	})
	if err != nil {
		s.Logger.Warnw("payment network customer creation deferred",
			"error", err,
			"tenant_id", req.TenantID,
		)
	} else {
		sub.GatewayCustomerID = &customerRef
	}

	accountRef, err := s.Gateway.EnsureConnectedAccount(ctx, gateway.EnsureConnectedAccountRequest{
		TenantID: req.TenantID,
		Email:    req.Email,
	})
	if err != nil {
		s.Logger.Warnw("connected account creation deferred",
			"error", err,
			"tenant_id", req.TenantID,
		)
	} else {
		sub.ConnectedAccountID = &accountRef
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription created",
		"subscription_id", sub.ID,
		"tenant_id", sub.TenantID,
		"plan", sub.Plan,
		"trial_ends_at", sub.TrialEndsAt,
	)

	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) GetSubscriptionByTenant(ctx context.Context, tenantID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub), nil
}

// ChangePlan switches the tier. The new amount applies from the next
// billing cycle; the next billing date is left untouched.
func (s *subscriptionService) ChangePlan(ctx context.Context, id string, req *dto.ChangePlanRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.SubscriptionStatus == types.SubscriptionStatusCancelled {
		return nil, ierr.NewError("subscription is cancelled").
			WithHint("A cancelled subscription cannot change plan").
			Mark(ierr.ErrInvalidOperation)
	}

	if sub.Plan == req.Plan {
		return dto.NewSubscriptionResponse(sub), nil
	}

	sub.Plan = req.Plan
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription plan changed",
		"subscription_id", sub.ID,
		"tenant_id", sub.TenantID,
		"plan", sub.Plan,
	)

	return dto.NewSubscriptionResponse(sub), nil
}

// CancelSubscription moves the subscription to its terminal CANCELLED
// state. No further charges are attempted.
func (s *subscriptionService) CancelSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.SubscriptionStatus == types.SubscriptionStatusCancelled {
		return dto.NewSubscriptionResponse(sub), nil
	}

	if !sub.SubscriptionStatus.CanTransitionTo(types.SubscriptionStatusCancelled) {
		return nil, ierr.NewError("invalid status transition").
			WithHintf("Cannot cancel a subscription in status %s", sub.SubscriptionStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	updated, err := s.SubRepo.UpdateStatusIfCurrent(ctx, sub.ID, sub.SubscriptionStatus, types.SubscriptionStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ierr.NewError("subscription status changed concurrently").
			WithHint("Retry the cancellation").
			Mark(ierr.ErrVersionConflict)
	}

	sub.SubscriptionStatus = types.SubscriptionStatusCancelled

	s.Logger.Infow("subscription cancelled",
		"subscription_id", sub.ID,
		"tenant_id", sub.TenantID,
	)

	publishWebhookEvent(ctx, s.Logger, s.WebhookPublisher,
		types.WebhookEventSubscriptionCancelled, sub.TenantID,
		webhookDto.InternalSubscriptionEvent{
			SubscriptionID: sub.ID,
			TenantID:       sub.TenantID,
		})

	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context) (*dto.ListSubscriptionsResponse, error) {
	subs, err := s.SubRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	items := lo.Map(subs, func(sub *subscription.Subscription, _ int) *dto.SubscriptionResponse {
		return dto.NewSubscriptionResponse(sub)
	})

	return &dto.ListSubscriptionsResponse{
		Items: items,
		Total: len(items),
	}, nil
}
