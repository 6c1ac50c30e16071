package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/laia-connect/billing/internal/api/dto"
	"github.com/laia-connect/billing/internal/domain/mandate"
	pdfDomain "github.com/laia-connect/billing/internal/domain/pdf"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/gateway"
	"github.com/laia-connect/billing/internal/types"
	webhookDto "github.com/laia-connect/billing/internal/webhook/dto"
	"github.com/samber/lo"
)

// mandateRefMaxAttempts bounds reference generation retries on collision
const mandateRefMaxAttempts = 5

// MandateService manages debit authorizations. Plaintext bank identifiers
// exist only inside CreateMandate, between request validation and
// encryption; nothing below this service ever sees them unencrypted
// except the payment gateway call.
type MandateService interface {
	CreateMandate(ctx context.Context, req *dto.CreateMandateRequest) (*dto.MandateResponse, error)
	GetMandate(ctx context.Context, id string) (*dto.MandateResponse, error)
	GetActiveMandate(ctx context.Context, tenantID string) (*dto.MandateResponse, error)
	RevokeMandate(ctx context.Context, id string) (*dto.MandateResponse, error)
	ListMandates(ctx context.Context, tenantID string) (*dto.ListMandatesResponse, error)
}

type mandateService struct {
	ServiceParams
}

// NewMandateService creates a new mandate service
func NewMandateService(params ServiceParams) MandateService {
	return &mandateService{
		ServiceParams: params,
	}
}

func (s *mandateService) CreateMandate(ctx context.Context, req *dto.CreateMandateRequest) (*dto.MandateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	iban := mandate.NormalizeIBAN(req.IBAN)
	bic := strings.ToUpper(strings.TrimSpace(req.BIC))

	if err := mandate.ValidateIBAN(iban); err != nil {
		return nil, err
	}
	if err := mandate.ValidateBIC(bic); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.GetByTenant(ctx, req.TenantID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("A mandate requires an existing subscription").
			Mark(ierr.ErrPreconditionFailed)
	}

	if existing, err := s.MandateRepo.GetActiveByTenant(ctx, req.TenantID); err == nil && existing != nil {
		return nil, ierr.NewError("tenant already has an active mandate").
			WithHintf("Revoke mandate %s before creating a new one", existing.MandateRef).
			Mark(ierr.ErrAlreadyExists)
	} else if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	// Fail closed: if either identifier cannot be encrypted, nothing is
	// persisted.
	ibanCiphertext, err := s.EncryptionService.Encrypt(iban)
	if err != nil {
		return nil, err
	}
	bicCiphertext, err := s.EncryptionService.Encrypt(bic)
	if err != nil {
		return nil, err
	}

	mandateRef, err := s.generateMandateRef(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m := &mandate.Mandate{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_MANDATE),
		TenantID:          req.TenantID,
		MandateRef:        mandateRef,
		AccountHolderName: req.AccountHolderName,
		IBANCiphertext:    ibanCiphertext,
		BICCiphertext:     bicCiphertext,
		IBANMasked:        mandate.MaskIBAN(iban),
		MandateStatus:     types.MandateStatusActive,
		SignedAt:          now,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}

	// Attach the instrument at the network while the plaintext is still
	// in hand. Deferred when the tenant has no network customer yet; the
	// scheduler completes onboarding before the first charge.
	if sub.GatewayCustomerID != nil && *sub.GatewayCustomerID != "" {
		if _, err := s.Gateway.AttachMandate(ctx, gateway.AttachMandateRequest{
			CustomerRef:       *sub.GatewayCustomerID,
			MandateRef:        mandateRef,
			AccountHolderName: req.AccountHolderName,
			Email:             req.Email,
			IBAN:              iban,
			BIC:               bic,
		}); err != nil {
			return nil, err
		}
	} else {
		s.Logger.Warnw("mandate attachment deferred, no network customer yet",
			"tenant_id", req.TenantID,
			"mandate_ref", mandateRef,
		)
	}

	if docRef, err := s.renderMandateDocument(ctx, m); err != nil {
		s.Logger.Errorw("mandate document generation failed",
			"error", err,
			"mandate_ref", mandateRef,
		)
	} else {
		m.DocumentRef = docRef
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	if err := s.MandateRepo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.Logger.Infow("mandate created",
		"mandate_id", m.ID,
		"tenant_id", m.TenantID,
		"mandate_ref", m.MandateRef,
		"iban_masked", m.IBANMasked,
	)

	publishWebhookEvent(ctx, s.Logger, s.WebhookPublisher,
		types.WebhookEventMandateCreated, m.TenantID,
		webhookDto.InternalMandateEvent{
			MandateID: m.ID,
			TenantID:  m.TenantID,
		})

	return dto.NewMandateResponse(m), nil
}

func (s *mandateService) GetMandate(ctx context.Context, id string) (*dto.MandateResponse, error) {
	m, err := s.MandateRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewMandateResponse(m), nil
}

func (s *mandateService) GetActiveMandate(ctx context.Context, tenantID string) (*dto.MandateResponse, error) {
	m, err := s.MandateRepo.GetActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return dto.NewMandateResponse(m), nil
}

// RevokeMandate marks the mandate REVOKED. The reference stays burned and
// future billing cycles for the tenant fail their mandate precondition
// until a new mandate is signed.
func (s *mandateService) RevokeMandate(ctx context.Context, id string) (*dto.MandateResponse, error) {
	m, err := s.MandateRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if m.MandateStatus == types.MandateStatusRevoked {
		return dto.NewMandateResponse(m), nil
	}

	m.MandateStatus = types.MandateStatusRevoked
	if err := s.MandateRepo.Update(ctx, m); err != nil {
		return nil, err
	}

	s.Logger.Infow("mandate revoked",
		"mandate_id", m.ID,
		"tenant_id", m.TenantID,
		"mandate_ref", m.MandateRef,
	)

	publishWebhookEvent(ctx, s.Logger, s.WebhookPublisher,
		types.WebhookEventMandateRevoked, m.TenantID,
		webhookDto.InternalMandateEvent{
			MandateID: m.ID,
			TenantID:  m.TenantID,
		})

	return dto.NewMandateResponse(m), nil
}

func (s *mandateService) ListMandates(ctx context.Context, tenantID string) (*dto.ListMandatesResponse, error) {
	mandates, err := s.MandateRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	items := lo.Map(mandates, func(m *mandate.Mandate, _ int) *dto.MandateResponse {
		return dto.NewMandateResponse(m)
	})

	return &dto.ListMandatesResponse{
		Items: items,
		Total: len(items),
	}, nil
}

// generateMandateRef issues a LAIA-RUM-YYYYMMDD-XXXXXX reference and
// verifies it was never used before, revoked mandates included.
func (s *mandateService) generateMandateRef(ctx context.Context) (string, error) {
	datePart := time.Now().UTC().Format("20060102")

	for attempt := 0; attempt < mandateRefMaxAttempts; attempt++ {
		suffix := types.GenerateShortIDWithPrefix("")
		if len(suffix) > 6 {
			suffix = suffix[:6]
		}
		ref := fmt.Sprintf("LAIA-RUM-%s-%s", datePart, suffix)

		exists, err := s.MandateRepo.ExistsRef(ctx, ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}

	return "", ierr.NewError("could not generate a unique mandate reference").
		WithHint("Reference generation exhausted its attempts").
		Mark(ierr.ErrSystem)
}

func (s *mandateService) renderMandateDocument(ctx context.Context, m *mandate.Mandate) (string, error) {
	data := &pdfDomain.MandateData{
		ID:                m.ID,
		MandateRef:        m.MandateRef,
		AccountHolderName: m.AccountHolderName,
		IBANMasked:        m.IBANMasked,
		SignedAt:          m.SignedAt,
		Creditor:          defaultBillerInfo(),
		Debtor: &pdfDomain.RecipientInfo{
			Name: m.AccountHolderName,
		},
	}

	if _, err := s.PDFGenerator.RenderMandatePdf(ctx, data); err != nil {
		return "", err
	}

	return types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_DOCUMENT), nil
}
