package gateway

import (
	"context"

	"github.com/laia-connect/billing/internal/types"
	"github.com/shopspring/decimal"
)

// Gateway is the trust boundary to the external payment network. It is the
// only component allowed to create network-side customers, connected
// accounts and charges. The gateway never retries internally; a call is
// safe to issue at most once per logical charge attempt given the
// caller-supplied idempotency key.
//
// Error semantics: hard rejections are marked ErrPaymentDeclined and must
// never be retried; transport-level failures are marked ErrGatewayTransient
// and retried by the caller within the cycle; a timed out charge is
// reported as a PENDING result, never an error, because the network may
// still have accepted it.
type Gateway interface {
	// EnsureCustomer returns the network customer reference for the
	// tenant, creating it upstream only when none exists yet.
	EnsureCustomer(ctx context.Context, req EnsureCustomerRequest) (string, error)

	// EnsureConnectedAccount returns the tenant's payout sub-account
	// reference, creating it upstream only when none exists yet.
	EnsureConnectedAccount(ctx context.Context, req EnsureConnectedAccountRequest) (string, error)

	// AttachMandate attaches the decrypted bank instrument to the
	// network-side customer and returns the payment method reference.
	// Plaintext identifiers live only in memory for the duration of the
	// call and are never logged.
	AttachMandate(ctx context.Context, req AttachMandateRequest) (string, error)

	// Charge submits one charge, routing the amount net of commission to
	// the tenant's connected account while the platform retains the
	// commission.
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// Refund refunds a settled charge, fully or partially, reversing the
	// proportional commission.
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// EnsureCustomerRequest identifies the tenant at the payment network
type EnsureCustomerRequest struct {
	TenantID string
	Name     string
	Email    string
	// ExistingRef short-circuits creation when the subscription already
	// carries a network customer reference
	ExistingRef *string
}

// EnsureConnectedAccountRequest identifies the payout sub-account owner
type EnsureConnectedAccountRequest struct {
	TenantID string
	Email    string
	Country  string
	// ExistingRef short-circuits creation when the subscription already
	// carries a connected account reference
	ExistingRef *string
}

// AttachMandateRequest carries the decrypted instrument for attachment
type AttachMandateRequest struct {
	CustomerRef       string
	MandateRef        string
	AccountHolderName string
	Email             string
	IBAN              string
	BIC               string
}

// ChargeRequest describes one logical charge submission
type ChargeRequest struct {
	CustomerRef         string
	ConnectedAccountRef string
	Amount              decimal.Decimal
	Currency            string
	// CommissionRate is the platform's retained fraction, e.g. 0.02
	CommissionRate decimal.Decimal
	// IdempotencyKey is supplied by the caller from the
	// (tenant, billing cycle) pair
	IdempotencyKey string
	Metadata       types.Metadata
}

// ChargeResult is the synchronous outcome of a charge submission.
// Status is SUCCESS or PENDING; hard rejections surface as errors.
type ChargeResult struct {
	Status types.ChargeOutcome
	// ExternalRef is the network's charge reference. Empty when the call
	// timed out before the network answered; reconciliation then matches
	// by metadata.
	ExternalRef      string
	CommissionAmount decimal.Decimal
}

// RefundRequest describes a full or partial refund of a settled charge
type RefundRequest struct {
	ExternalRef string
	// Amount is the partial refund amount; nil refunds the full charge
	Amount         *decimal.Decimal
	IdempotencyKey string
}

// RefundResult is the outcome of a refund submission
type RefundResult struct {
	RefundRef string
	Amount    decimal.Decimal
}

// ComputeCommission returns the platform's retained share for a charged
// amount: round(amount * rate), half up to whole currency units.
func ComputeCommission(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(0)
}
