package charge

import (
	"time"

	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/types"
	"github.com/shopspring/decimal"
)

// Attempt is the record of one billing cycle execution for one tenant.
// There is one record per cycle, not per retry; at most one attempt with a
// non-FAILED outcome exists per (tenant, billing cycle date) pair, which is
// the idempotency key for the whole subsystem.
type Attempt struct {
	ID       string `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenant_id"`
	// BillingCycleDate is the UTC day key of the cycle being charged
	BillingCycleDate time.Time `db:"billing_cycle_date" json:"billing_cycle_date"`
	// Amount is the full plan amount charged to the tenant
	Amount decimal.Decimal `db:"amount" json:"amount"`
	// CommissionAmount is the platform's retained share; the connected
	// account receives Amount - CommissionAmount
	CommissionAmount decimal.Decimal `db:"commission_amount" json:"commission_amount"`
	// GatewayChargeID is the payment network's own charge reference,
	// set once the network accepted the submission
	GatewayChargeID *string             `db:"gateway_charge_id" json:"gateway_charge_id,omitempty"`
	Outcome         types.ChargeOutcome `db:"outcome" json:"outcome"`
	// ErrorMessage describes why the attempt failed
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`

	types.BaseModel
}

// Validate validates the charge attempt
func (a *Attempt) Validate() error {
	if a.TenantID == "" {
		return ierr.NewError("tenant id is required").
			WithHint("Tenant ID must not be empty").
			Mark(ierr.ErrValidation)
	}
	if a.BillingCycleDate.IsZero() {
		return ierr.NewError("billing cycle date is required").
			WithHint("Billing cycle date must be set").
			Mark(ierr.ErrValidation)
	}
	if a.Amount.IsZero() || a.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if a.CommissionAmount.IsNegative() || a.CommissionAmount.GreaterThan(a.Amount) {
		return ierr.NewError("invalid commission amount").
			WithHint("Commission must be between 0 and the charged amount").
			Mark(ierr.ErrValidation)
	}
	if err := a.Outcome.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Charge outcome is invalid").
			Mark(ierr.ErrValidation)
	}
	return nil
}
