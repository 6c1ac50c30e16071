package dto

import (
	"context"
	"time"

	"github.com/laia-connect/billing/internal/domain/subscription"
	"github.com/laia-connect/billing/internal/types"
	"github.com/laia-connect/billing/internal/validator"
)

// CreateSubscriptionRequest represents the request to onboard a tenant
// onto a billing plan
type CreateSubscriptionRequest struct {
	TenantID string         `json:"tenant_id" validate:"required"`
	Plan     types.PlanTier `json:"plan" validate:"required"`
	// Name and Email identify the institute at the payment network
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	return r.Plan.Validate()
}

// ToSubscription builds the TRIAL subscription with its trial window and
// first billing date
func (r *CreateSubscriptionRequest) ToSubscription(ctx context.Context, trialDays int) *subscription.Subscription {
	now := time.Now().UTC()
	trialEnd := now.AddDate(0, 0, trialDays)

	return &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		TenantID:           r.TenantID,
		Plan:               r.Plan,
		SubscriptionStatus: types.SubscriptionStatusTrial,
		NextBillingAt:      trialEnd,
		TrialEndsAt:        &trialEnd,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
}

// ChangePlanRequest represents a plan tier change
type ChangePlanRequest struct {
	Plan types.PlanTier `json:"plan" validate:"required"`
}

func (r *ChangePlanRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	return r.Plan.Validate()
}

// SubscriptionResponse represents the subscription response
type SubscriptionResponse struct {
	*subscription.Subscription

	// PlanDisplayName is the marketing name of the tier
	PlanDisplayName string `json:"plan_display_name"`
	// MonthlyAmount is the fixed monthly amount of the tier
	MonthlyAmount string `json:"monthly_amount"`
}

// NewSubscriptionResponse builds the response with plan display fields
func NewSubscriptionResponse(sub *subscription.Subscription) *SubscriptionResponse {
	return &SubscriptionResponse{
		Subscription:    sub,
		PlanDisplayName: sub.Plan.DisplayName(),
		MonthlyAmount:   sub.Plan.MonthlyAmount().String(),
	}
}

// ListSubscriptionsResponse represents the response for listing subscriptions
type ListSubscriptionsResponse struct {
	Items []*SubscriptionResponse `json:"items"`
	Total int                     `json:"total"`
}
