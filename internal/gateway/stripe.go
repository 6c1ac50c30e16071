package gateway

import (
	"context"
	"errors"

	"github.com/laia-connect/billing/internal/config"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// stripeGateway implements Gateway against Stripe Connect. Charges are
// submitted as destination payment intents: the application fee stays with
// the platform and the remainder settles to the tenant's connected account.
type stripeGateway struct {
	api    *client.API
	cfg    *config.Configuration
	logger *logger.Logger
}

// NewStripeGateway creates a Stripe-backed payment gateway adapter
func NewStripeGateway(cfg *config.Configuration, logger *logger.Logger) (Gateway, error) {
	if cfg.Secrets.StripeSecretKey == "" {
		return nil, ierr.NewError("stripe secret key not configured").
			WithHint("Set secrets.stripesecretkey before starting the service").
			Mark(ierr.ErrSystem)
	}

	api := &client.API{}
	api.Init(cfg.Secrets.StripeSecretKey, nil)

	return &stripeGateway{
		api:    api,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (g *stripeGateway) EnsureCustomer(ctx context.Context, req EnsureCustomerRequest) (string, error) {
	if req.ExistingRef != nil && *req.ExistingRef != "" {
		return *req.ExistingRef, nil
	}

	params := &stripe.CustomerParams{
		Name:  stripe.String(req.Name),
		Email: stripe.String(req.Email),
		Metadata: map[string]string{
			"tenant_id": req.TenantID,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("customer-" + req.TenantID)

	cust, err := g.api.Customers.New(params)
	if err != nil {
		return "", g.classify(ctx, err, "failed to create network customer")
	}

	g.logger.Infow("created network customer",
		"tenant_id", req.TenantID,
		"customer_ref", cust.ID)

	return cust.ID, nil
}

func (g *stripeGateway) EnsureConnectedAccount(ctx context.Context, req EnsureConnectedAccountRequest) (string, error) {
	if req.ExistingRef != nil && *req.ExistingRef != "" {
		return *req.ExistingRef, nil
	}

	country := req.Country
	if country == "" {
		country = "FR"
	}

	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Email:   stripe.String(req.Email),
		Country: stripe.String(country),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
		Metadata: map[string]string{
			"tenant_id": req.TenantID,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("account-" + req.TenantID)

	account, err := g.api.Accounts.New(params)
	if err != nil {
		return "", g.classify(ctx, err, "failed to create connected account")
	}

	g.logger.Infow("created connected account",
		"tenant_id", req.TenantID,
		"account_ref", account.ID)

	return account.ID, nil
}

func (g *stripeGateway) AttachMandate(ctx context.Context, req AttachMandateRequest) (string, error) {
	if req.CustomerRef == "" {
		return "", ierr.NewError("customer reference is required").
			WithHint("Create the network customer before attaching a mandate").
			Mark(ierr.ErrPreconditionFailed)
	}

	pmParams := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeSEPADebit)),
		SEPADebit: &stripe.PaymentMethodSEPADebitParams{
			IBAN: stripe.String(req.IBAN),
		},
		BillingDetails: &stripe.PaymentMethodBillingDetailsParams{
			Name:  stripe.String(req.AccountHolderName),
			Email: stripe.String(req.Email),
		},
		Metadata: map[string]string{
			"mandate_ref": req.MandateRef,
			"bic":         req.BIC,
		},
	}
	pmParams.Context = ctx

	pm, err := g.api.PaymentMethods.New(pmParams)
	if err != nil {
		return "", g.classify(ctx, err, "failed to create payment method")
	}

	attachParams := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(req.CustomerRef),
	}
	attachParams.Context = ctx

	if _, err := g.api.PaymentMethods.Attach(pm.ID, attachParams); err != nil {
		return "", g.classify(ctx, err, "failed to attach payment method")
	}

	updateParams := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(pm.ID),
		},
	}
	updateParams.Context = ctx

	if _, err := g.api.Customers.Update(req.CustomerRef, updateParams); err != nil {
		return "", g.classify(ctx, err, "failed to set default payment method")
	}

	// Only the mandate reference is loggable; the instrument itself is not
	g.logger.Infow("attached mandate instrument",
		"customer_ref", req.CustomerRef,
		"mandate_ref", req.MandateRef,
		"payment_method_ref", pm.ID)

	return pm.ID, nil
}

func (g *stripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.CustomerRef == "" || req.ConnectedAccountRef == "" {
		return nil, ierr.NewError("customer and connected account references are required").
			WithHint("Tenant is not fully onboarded at the payment network").
			Mark(ierr.ErrPreconditionFailed)
	}

	commission := ComputeCommission(req.Amount, req.CommissionRate)

	currency := req.Currency
	if currency == "" {
		currency = string(stripe.CurrencyEUR)
	}

	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(toMinorUnits(req.Amount)),
		Currency:             stripe.String(currency),
		Customer:             stripe.String(req.CustomerRef),
		Confirm:              stripe.Bool(true),
		OffSession:           stripe.Bool(true),
		PaymentMethodTypes:   stripe.StringSlice([]string{"sepa_debit", "card"}),
		ApplicationFeeAmount: stripe.Int64(toMinorUnits(commission)),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.ConnectedAccountRef),
		},
		Metadata: req.Metadata,
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		// The network may have accepted a charge we never heard back
		// about; reconciliation resolves it, so a timeout is pending,
		// not failed.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.logger.Warnw("charge submission timed out, treating as pending",
				"idempotency_key", req.IdempotencyKey)
			return &ChargeResult{
				Status:           types.ChargeOutcomePending,
				CommissionAmount: commission,
			}, nil
		}
		return nil, g.classify(ctx, err, "charge submission failed")
	}

	result := &ChargeResult{
		ExternalRef:      intent.ID,
		CommissionAmount: commission,
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Status = types.ChargeOutcomeSuccess
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction:
		// SEPA debits settle asynchronously; reconciliation is the
		// source of truth for the final outcome
		result.Status = types.ChargeOutcomePending
	default:
		return nil, ierr.NewError("charge rejected by payment network").
			WithHintf("Payment intent ended in status %s", intent.Status).
			WithReportableDetails(map[string]any{
				"external_ref": intent.ID,
				"status":       string(intent.Status),
			}).
			Mark(ierr.ErrPaymentDeclined)
	}

	return result, nil
}

func (g *stripeGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.ExternalRef),
		// Reversing the transfer and the application fee keeps the
		// commission proportional to what is refunded
		RefundApplicationFee: stripe.Bool(true),
		ReverseTransfer:      stripe.Bool(true),
	}
	if req.Amount != nil {
		params.Amount = stripe.Int64(toMinorUnits(*req.Amount))
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, g.classify(ctx, err, "refund submission failed")
	}

	return &RefundResult{
		RefundRef: refund.ID,
		Amount:    fromMinorUnits(refund.Amount),
	}, nil
}

// classify maps a Stripe client error onto the adapter error taxonomy
func (g *stripeGateway) classify(ctx context.Context, err error, msg string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeCard:
			// Hard rejection: invalid instrument, insufficient funds.
			// Never retried automatically.
			return ierr.WithError(err).
				WithHint("Payment was declined by the network").
				WithReportableDetails(map[string]any{
					"decline_code": string(stripeErr.Code),
				}).
				Mark(ierr.ErrPaymentDeclined)
		case stripe.ErrorTypeInvalidRequest:
			return ierr.WithError(err).
				WithHint("Payment network rejected the request").
				Mark(ierr.ErrInvalidOperation)
		}
	}

	if errors.Is(err, context.Canceled) {
		return ierr.WithError(err).
			WithHint("Request was cancelled").
			Mark(ierr.ErrGatewayTransient)
	}

	return ierr.WithError(err).
		WithHint(msg).
		Mark(ierr.ErrGatewayTransient)
}

// toMinorUnits converts a decimal EUR amount to cents
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// fromMinorUnits converts cents back to a decimal EUR amount
func fromMinorUnits(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}
