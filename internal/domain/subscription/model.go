package subscription

import (
	"time"

	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/types"
)

// Subscription is the billing lifecycle record of one tenant organization.
// Exactly one exists per tenant.
type Subscription struct {
	ID string `db:"id" json:"id"`
	// TenantID is the opaque identifier of the organization; unique
	TenantID string `db:"tenant_id" json:"tenant_id"`
	// Plan is one of the four fixed tiers, each mapping to a fixed monthly amount
	Plan types.PlanTier `db:"plan" json:"plan"`
	// SubscriptionStatus is the lifecycle status owned by the state machine
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	// NextBillingAt advances by exactly one billing period on each
	// accepted charge and never decreases
	NextBillingAt time.Time `db:"next_billing_at" json:"next_billing_at"`
	// TrialEndsAt is the end of the free trial granted at onboarding
	TrialEndsAt *time.Time `db:"trial_ends_at" json:"trial_ends_at,omitempty"`
	// GatewayCustomerID is the payment network customer reference; created once, immutable
	GatewayCustomerID *string `db:"gateway_customer_id" json:"gateway_customer_id,omitempty"`
	// ConnectedAccountID is the tenant's payout sub-account at the payment
	// network; immutable once set
	ConnectedAccountID *string `db:"connected_account_id" json:"connected_account_id,omitempty"`
	// LastPaymentAt is the timestamp of the last accepted charge
	LastPaymentAt *time.Time `db:"last_payment_at" json:"last_payment_at,omitempty"`

	types.BaseModel
}

// Validate validates the subscription
func (s *Subscription) Validate() error {
	if s.TenantID == "" {
		return ierr.NewError("tenant id is required").
			WithHint("Tenant ID must not be empty").
			Mark(ierr.ErrValidation)
	}
	if err := s.Plan.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Plan tier is invalid").
			Mark(ierr.ErrValidation)
	}
	if err := s.SubscriptionStatus.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Subscription status is invalid").
			Mark(ierr.ErrValidation)
	}
	if s.NextBillingAt.IsZero() {
		return ierr.NewError("next billing date is required").
			WithHint("Next billing date must be set").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// InTrial reports whether the tenant's free trial is still running at t
func (s *Subscription) InTrial(t time.Time) bool {
	return s.SubscriptionStatus == types.SubscriptionStatusTrial &&
		s.TrialEndsAt != nil && t.Before(*s.TrialEndsAt)
}
