package types

import (
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/samber/lo"
)

// ChargeOutcome is the recorded outcome of one billing cycle execution.
// PENDING means the payment network accepted the charge but settlement has
// not been confirmed yet; SEPA debits commonly stay pending for days.
type ChargeOutcome string

const (
	ChargeOutcomeSuccess ChargeOutcome = "SUCCESS"
	ChargeOutcomeFailed  ChargeOutcome = "FAILED"
	ChargeOutcomePending ChargeOutcome = "PENDING"
)

func (o ChargeOutcome) String() string {
	return string(o)
}

func (o ChargeOutcome) Validate() error {
	allowed := []ChargeOutcome{
		ChargeOutcomeSuccess,
		ChargeOutcomeFailed,
		ChargeOutcomePending,
	}
	if !lo.Contains(allowed, o) {
		return ierr.NewError("invalid charge outcome").
			WithHintf("Charge outcome must be SUCCESS, FAILED or PENDING, got %s", o).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminal reports whether the outcome can still change through
// reconciliation. Only PENDING attempts are re-opened by notifications.
func (o ChargeOutcome) IsTerminal() bool {
	return o == ChargeOutcomeSuccess || o == ChargeOutcomeFailed
}

// CountsForCycle reports whether an attempt with this outcome occupies the
// (tenant, billing cycle) idempotency slot. A FAILED attempt does not: the
// tenant stays selected on every subsequent run until resolved.
func (o ChargeOutcome) CountsForCycle() bool {
	return o != ChargeOutcomeFailed
}

// MandateStatus is the lifecycle status of a payment mandate.
// At most one ACTIVE mandate exists per tenant.
type MandateStatus string

const (
	MandateStatusActive  MandateStatus = "ACTIVE"
	MandateStatusRevoked MandateStatus = "REVOKED"
)

func (s MandateStatus) String() string {
	return string(s)
}

func (s MandateStatus) Validate() error {
	allowed := []MandateStatus{
		MandateStatusActive,
		MandateStatusRevoked,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid mandate status").
			WithHintf("Mandate status must be ACTIVE or REVOKED, got %s", s).
			Mark(ierr.ErrValidation)
	}
	return nil
}
