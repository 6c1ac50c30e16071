package service

import (
	"context"
	"fmt"
	"time"

	"github.com/laia-connect/billing/internal/api/dto"
	"github.com/laia-connect/billing/internal/cache"
	"github.com/laia-connect/billing/internal/domain/charge"
	"github.com/laia-connect/billing/internal/domain/invoice"
	pdfDomain "github.com/laia-connect/billing/internal/domain/pdf"
	"github.com/laia-connect/billing/internal/domain/subscription"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/gateway"
	"github.com/laia-connect/billing/internal/types"
	webhookDto "github.com/laia-connect/billing/internal/webhook/dto"
	"github.com/samber/lo"
)

// invoicePDFCacheTTL bounds how long a rendered invoice document is kept
const invoicePDFCacheTTL = 15 * time.Minute

// InvoiceService issues and serves the immutable billing documents
type InvoiceService interface {
	// CreateForChargeAttempt issues the invoice documenting a successful
	// charge. Idempotent: a second call for the same attempt returns the
	// existing invoice.
	CreateForChargeAttempt(ctx context.Context, attempt *charge.Attempt, sub *subscription.Subscription) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	GetInvoiceByChargeAttempt(ctx context.Context, chargeAttemptID string) (*dto.InvoiceResponse, error)
	GetInvoicePDF(ctx context.Context, id string) ([]byte, error)
	ListInvoices(ctx context.Context, tenantID string) (*dto.ListInvoicesResponse, error)

	// RefundInvoice reverses the settled charge behind an invoice, fully
	// or partially, commission reversed in proportion.
	RefundInvoice(ctx context.Context, id string, req dto.RefundInvoiceRequest) (*dto.RefundResponse, error)
}

type invoiceService struct {
	ServiceParams
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
	}
}

func (s *invoiceService) CreateForChargeAttempt(ctx context.Context, attempt *charge.Attempt, sub *subscription.Subscription) (*dto.InvoiceResponse, error) {
	if attempt.Outcome != types.ChargeOutcomeSuccess {
		return nil, ierr.NewError("invoice requires a successful charge").
			WithHintf("Charge attempt %s has outcome %s", attempt.ID, attempt.Outcome).
			Mark(ierr.ErrInvalidOperation)
	}

	if existing, err := s.InvoiceRepo.GetByChargeAttempt(ctx, attempt.ID); err == nil && existing != nil {
		return dto.NewInvoiceResponse(existing), nil
	} else if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()

	// Sequence increment and insert commit together so numbers stay gapless
	var inv *invoice.Invoice
	err := s.withTx(ctx, func(ctx context.Context) error {
		seq, err := s.InvoiceRepo.NextSequence(ctx, now.Year())
		if err != nil {
			return err
		}

		inv = &invoice.Invoice{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
			TenantID:        attempt.TenantID,
			InvoiceNumber:   fmt.Sprintf("LAIA-%d-%06d", now.Year(), seq),
			ChargeAttemptID: attempt.ID,
			Plan:            sub.Plan,
			Amount:          attempt.Amount,
			IssuedAt:        now,
			DocumentRef:     types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_DOCUMENT),
			BaseModel:       types.GetDefaultBaseModel(ctx),
		}

		if err := inv.Validate(); err != nil {
			return err
		}

		return s.InvoiceRepo.Create(ctx, inv)
	})
	if err != nil {
		// Lost a race with another issuer for the same attempt; the
		// winner's invoice is the invoice.
		if ierr.IsAlreadyExists(err) {
			existing, getErr := s.InvoiceRepo.GetByChargeAttempt(ctx, attempt.ID)
			if getErr != nil {
				return nil, getErr
			}
			return dto.NewInvoiceResponse(existing), nil
		}
		return nil, err
	}

	s.Logger.Infow("invoice issued",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"tenant_id", inv.TenantID,
		"amount", inv.Amount,
	)

	publishWebhookEvent(ctx, s.Logger, s.WebhookPublisher,
		types.WebhookEventInvoicePaymentSucceeded, inv.TenantID,
		webhookDto.InternalInvoiceEvent{
			InvoiceID: inv.ID,
			TenantID:  inv.TenantID,
		})

	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) GetInvoiceByChargeAttempt(ctx context.Context, chargeAttemptID string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.GetByChargeAttempt(ctx, chargeAttemptID)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

// GetInvoicePDF renders the invoice document, read-through cached since
// invoices are immutable
func (s *invoiceService) GetInvoicePDF(ctx context.Context, id string) ([]byte, error) {
	cacheKey := cache.GenerateKey(cache.PrefixDocument, "invoice", id)
	if s.Cache != nil {
		if cached, ok := s.Cache.Get(ctx, cacheKey); ok {
			if pdfBytes, ok := cached.([]byte); ok {
				return pdfBytes, nil
			}
		}
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	amount, _ := inv.Amount.Float64()
	data := &pdfDomain.InvoiceData{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		IssuingDate:   inv.IssuedAt,
		Currency:      "EUR",
		AmountDue:     amount,
		PlanName:      inv.Plan.DisplayName(),
		Biller:        defaultBillerInfo(),
		Recipient: &pdfDomain.RecipientInfo{
			Name: inv.TenantID,
		},
	}

	pdfBytes, err := s.PDFGenerator.RenderInvoicePdf(ctx, data)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		s.Cache.Set(ctx, cacheKey, pdfBytes, invoicePDFCacheTTL)
	}

	return pdfBytes, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, tenantID string) (*dto.ListInvoicesResponse, error) {
	invoices, err := s.InvoiceRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	items := lo.Map(invoices, func(inv *invoice.Invoice, _ int) *dto.InvoiceResponse {
		return dto.NewInvoiceResponse(inv)
	})

	return &dto.ListInvoicesResponse{
		Items: items,
		Total: len(items),
	}, nil
}

func (s *invoiceService) RefundInvoice(ctx context.Context, id string, req dto.RefundInvoiceRequest) (*dto.RefundResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	attempt, err := s.ChargeRepo.Get(ctx, inv.ChargeAttemptID)
	if err != nil {
		return nil, err
	}

	// Only a settled charge with a known network reference can be
	// reversed; PENDING attempts must wait for reconciliation first.
	if attempt.Outcome != types.ChargeOutcomeSuccess || attempt.GatewayChargeID == nil {
		return nil, ierr.NewError("charge is not refundable").
			WithHintf("Charge attempt %s has outcome %s and cannot be refunded", attempt.ID, attempt.Outcome).
			Mark(ierr.ErrPreconditionFailed)
	}

	refundAmount := attempt.Amount
	if req.Amount != nil {
		if !req.Amount.IsPositive() || req.Amount.GreaterThan(attempt.Amount) {
			return nil, ierr.NewError("invalid refund amount").
				WithHintf("Refund amount must be between 0 and %s", attempt.Amount).
				Mark(ierr.ErrValidation)
		}
		refundAmount = *req.Amount
	}

	result, err := s.Gateway.Refund(ctx, gateway.RefundRequest{
		ExternalRef:    *attempt.GatewayChargeID,
		Amount:         req.Amount,
		IdempotencyKey: fmt.Sprintf("refund-%s", inv.ID),
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("refund issued",
		"invoice_id", inv.ID,
		"tenant_id", inv.TenantID,
		"refund_ref", result.RefundRef,
		"amount", refundAmount,
	)

	return &dto.RefundResponse{
		InvoiceID:       inv.ID,
		ChargeAttemptID: attempt.ID,
		RefundRef:       result.RefundRef,
		Amount:          refundAmount,
	}, nil
}

// defaultBillerInfo is the platform identity printed on generated documents
func defaultBillerInfo() *pdfDomain.BillerInfo {
	return &pdfDomain.BillerInfo{
		Name:      "LAIA Connect",
		Website:   "https://laia-connect.fr",
		HelpEmail: "support@laia-connect.fr",
		Address: pdfDomain.AddressInfo{
			Street:     "10 rue de la Beauté",
			City:       "Paris",
			PostalCode: "75003",
			Country:    "FR",
		},
	}
}
