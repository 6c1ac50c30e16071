package testutil

import (
	"context"
	"fmt"
	"sync"

	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/gateway"
	"github.com/laia-connect/billing/internal/types"
	"github.com/shopspring/decimal"
)

// FakeGateway is a scriptable in-memory payment network. Each call is
// recorded; the next charge outcome is programmed per test.
type FakeGateway struct {
	mu sync.Mutex

	// ChargeOutcome drives the next Charge calls. SUCCESS and PENDING
	// return a result, FAILED returns an ErrPaymentDeclined error.
	ChargeOutcome types.ChargeOutcome
	// DeclineReason is the message carried by a FAILED outcome
	DeclineReason string
	// TransientFailures makes the first N Charge calls fail with
	// ErrGatewayTransient before the programmed outcome applies
	TransientFailures int
	// OmitExternalRef simulates a submission timeout: the PENDING result
	// carries no network charge reference
	OmitExternalRef bool

	ChargeRequests  []gateway.ChargeRequest
	MandateRequests []gateway.AttachMandateRequest
	RefundRequests  []gateway.RefundRequest

	chargeSeq int
}

var _ gateway.Gateway = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		ChargeOutcome: types.ChargeOutcomeSuccess,
	}
}

func (g *FakeGateway) EnsureCustomer(ctx context.Context, req gateway.EnsureCustomerRequest) (string, error) {
	if req.ExistingRef != nil && *req.ExistingRef != "" {
		return *req.ExistingRef, nil
	}
	return "cus_" + req.TenantID, nil
}

func (g *FakeGateway) EnsureConnectedAccount(ctx context.Context, req gateway.EnsureConnectedAccountRequest) (string, error) {
	if req.ExistingRef != nil && *req.ExistingRef != "" {
		return *req.ExistingRef, nil
	}
	return "acct_" + req.TenantID, nil
}

func (g *FakeGateway) AttachMandate(ctx context.Context, req gateway.AttachMandateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.MandateRequests = append(g.MandateRequests, req)
	return "pm_" + req.MandateRef, nil
}

func (g *FakeGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ChargeRequests = append(g.ChargeRequests, req)

	if g.TransientFailures > 0 {
		g.TransientFailures--
		return nil, ierr.NewError("gateway unavailable").Mark(ierr.ErrGatewayTransient)
	}

	commission := gateway.ComputeCommission(req.Amount, req.CommissionRate)

	switch g.ChargeOutcome {
	case types.ChargeOutcomeFailed:
		reason := g.DeclineReason
		if reason == "" {
			reason = "insufficient_funds"
		}
		return nil, ierr.NewError(reason).Mark(ierr.ErrPaymentDeclined)
	case types.ChargeOutcomePending:
		result := &gateway.ChargeResult{
			Status:           types.ChargeOutcomePending,
			CommissionAmount: commission,
		}
		if !g.OmitExternalRef {
			result.ExternalRef = g.nextRef()
		}
		return result, nil
	default:
		return &gateway.ChargeResult{
			Status:           types.ChargeOutcomeSuccess,
			ExternalRef:      g.nextRef(),
			CommissionAmount: commission,
		}, nil
	}
}

func (g *FakeGateway) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.RefundRequests = append(g.RefundRequests, req)
	amount := decimal.Zero
	if req.Amount != nil {
		amount = *req.Amount
	}
	return &gateway.RefundResult{
		RefundRef: "re_" + req.ExternalRef,
		Amount:    amount,
	}, nil
}

func (g *FakeGateway) nextRef() string {
	g.chargeSeq++
	return fmt.Sprintf("pi_test_%06d", g.chargeSeq)
}

// LastChargeRef returns the most recently issued charge reference
func (g *FakeGateway) LastChargeRef() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("pi_test_%06d", g.chargeSeq)
}

// Reset clears recorded calls and restores the default outcome
func (g *FakeGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ChargeOutcome = types.ChargeOutcomeSuccess
	g.DeclineReason = ""
	g.TransientFailures = 0
	g.OmitExternalRef = false
	g.ChargeRequests = nil
	g.MandateRequests = nil
	g.RefundRequests = nil
	g.chargeSeq = 0
}
