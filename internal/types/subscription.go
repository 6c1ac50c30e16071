package types

import (
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the lifecycle status of a tenant subscription.
// Transitions happen only through the billing scheduler outcomes,
// reconciliation events or an explicit tenant cancellation.
type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "TRIAL"
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusTrial,
		SubscriptionStatusActive,
		SubscriptionStatusSuspended,
		SubscriptionStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHintf("Subscription status must be TRIAL, ACTIVE, SUSPENDED or CANCELLED, got %s", s).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsBillable reports whether the scheduler may select a subscription in
// this status for charging. Cancellation is checked at SELECT time only.
func (s SubscriptionStatus) IsBillable() bool {
	switch s {
	case SubscriptionStatusTrial, SubscriptionStatusActive:
		return true
	case SubscriptionStatusSuspended, SubscriptionStatusCancelled:
		return false
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine allows moving from s
// to target. Every transition site must go through this check so that the
// closed enumeration is enforced everywhere.
func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	switch s {
	case SubscriptionStatusTrial:
		return target == SubscriptionStatusActive ||
			target == SubscriptionStatusSuspended ||
			target == SubscriptionStatusCancelled
	case SubscriptionStatusActive:
		return target == SubscriptionStatusActive ||
			target == SubscriptionStatusSuspended ||
			target == SubscriptionStatusCancelled
	case SubscriptionStatusSuspended:
		return target == SubscriptionStatusActive ||
			target == SubscriptionStatusCancelled
	case SubscriptionStatusCancelled:
		return false
	default:
		return false
	}
}
