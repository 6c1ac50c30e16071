package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/laia-connect/billing/internal/api/dto"
	"github.com/laia-connect/billing/internal/domain/charge"
	"github.com/laia-connect/billing/internal/domain/invoice"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/testutil"
	"github.com/laia-connect/billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	invoiceService InvoiceService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.invoiceService = NewInvoiceService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *InvoiceServiceSuite) seedSuccessfulAttempt(tenantID string, cycleDate time.Time) *charge.Attempt {
	ctx := s.GetContext()
	ref := "pi_" + tenantID
	attempt := &charge.Attempt{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE_ATTEMPT),
		TenantID:         tenantID,
		BillingCycleDate: cycleDate,
		Amount:           decimal.NewFromInt(49),
		CommissionAmount: decimal.NewFromInt(1),
		GatewayChargeID:  &ref,
		Outcome:          types.ChargeOutcomeSuccess,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().ChargeRepo.Create(ctx, attempt))
	return attempt
}

func (s *InvoiceServiceSuite) TestCreateForChargeAttempt() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	attempt := s.seedSuccessfulAttempt("tenant-1", types.BillingCycleDate(time.Now().UTC()))

	resp, err := s.invoiceService.CreateForChargeAttempt(ctx, attempt, sub)
	s.NoError(err)
	s.Equal("tenant-1", resp.TenantID)
	s.Equal(attempt.ID, resp.ChargeAttemptID)
	s.Equal(fmt.Sprintf("LAIA-%d-000001", time.Now().UTC().Year()), resp.InvoiceNumber)
	s.NotEmpty(resp.DocumentRef)

	s.Contains(s.GetWebhookPublisher().EventNames(), types.WebhookEventInvoicePaymentSucceeded)
}

func (s *InvoiceServiceSuite) TestCreateIsIdempotentPerAttempt() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	attempt := s.seedSuccessfulAttempt("tenant-1", types.BillingCycleDate(time.Now().UTC()))

	first, err := s.invoiceService.CreateForChargeAttempt(ctx, attempt, sub)
	s.NoError(err)

	second, err := s.invoiceService.CreateForChargeAttempt(ctx, attempt, sub)
	s.NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(first.InvoiceNumber, second.InvoiceNumber)

	invoices, err := s.GetStores().InvoiceRepo.ListByTenant(ctx, "tenant-1")
	s.NoError(err)
	s.Len(invoices, 1)
}

func (s *InvoiceServiceSuite) TestNumbersAreSequentialPerYear() {
	ctx := s.GetContext()
	year := time.Now().UTC().Year()

	for i, tenantID := range []string{"tenant-1", "tenant-2", "tenant-3"} {
		sub := seedSubscription(ctx, &s.BaseServiceTestSuite, tenantID, types.SubscriptionStatusActive)
		attempt := s.seedSuccessfulAttempt(tenantID, types.BillingCycleDate(time.Now().UTC()))

		resp, err := s.invoiceService.CreateForChargeAttempt(ctx, attempt, sub)
		s.NoError(err)
		s.Equal(fmt.Sprintf("LAIA-%d-%06d", year, i+1), resp.InvoiceNumber)
	}
}

func (s *InvoiceServiceSuite) TestRequiresSuccessfulCharge() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)

	attempt := &charge.Attempt{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE_ATTEMPT),
		TenantID:         "tenant-1",
		BillingCycleDate: types.BillingCycleDate(time.Now().UTC()),
		Amount:           decimal.NewFromInt(49),
		CommissionAmount: decimal.NewFromInt(1),
		Outcome:          types.ChargeOutcomePending,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().ChargeRepo.Create(ctx, attempt))

	_, err := s.invoiceService.CreateForChargeAttempt(ctx, attempt, sub)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestGetInvoicePDFCachesRender() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	attempt := s.seedSuccessfulAttempt("tenant-1", types.BillingCycleDate(time.Now().UTC()))

	resp, err := s.invoiceService.CreateForChargeAttempt(ctx, attempt, sub)
	s.NoError(err)

	pdfBytes, err := s.invoiceService.GetInvoicePDF(ctx, resp.ID)
	s.NoError(err)
	s.NotEmpty(pdfBytes)
	s.Len(s.GetPDFGenerator().InvoiceRequests, 1)

	// second read is served from cache, no second render
	cached, err := s.invoiceService.GetInvoicePDF(ctx, resp.ID)
	s.NoError(err)
	s.Equal(pdfBytes, cached)
	s.Len(s.GetPDFGenerator().InvoiceRequests, 1)
}

func (s *InvoiceServiceSuite) TestGetInvoicePDFUnknownInvoice() {
	ctx := s.GetContext()

	_, err := s.invoiceService.GetInvoicePDF(ctx, "inv_unknown")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestRefundInvoiceFull() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	attempt := s.seedSuccessfulAttempt("tenant-1", types.BillingCycleDate(time.Now().UTC()))

	created, err := s.invoiceService.CreateForChargeAttempt(ctx, attempt, sub)
	s.NoError(err)

	resp, err := s.invoiceService.RefundInvoice(ctx, created.ID, dto.RefundInvoiceRequest{})
	s.NoError(err)
	s.Equal(created.ID, resp.InvoiceID)
	s.Equal(attempt.ID, resp.ChargeAttemptID)
	s.True(attempt.Amount.Equal(resp.Amount))
	s.NotEmpty(resp.RefundRef)

	s.Require().Len(s.GetGateway().RefundRequests, 1)
	refundReq := s.GetGateway().RefundRequests[0]
	s.Equal(*attempt.GatewayChargeID, refundReq.ExternalRef)
	s.Nil(refundReq.Amount)
	s.Equal("refund-"+created.ID, refundReq.IdempotencyKey)
}

func (s *InvoiceServiceSuite) TestRefundInvoicePartial() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	attempt := s.seedSuccessfulAttempt("tenant-1", types.BillingCycleDate(time.Now().UTC()))

	created, err := s.invoiceService.CreateForChargeAttempt(ctx, attempt, sub)
	s.NoError(err)

	partial := decimal.NewFromInt(20)
	resp, err := s.invoiceService.RefundInvoice(ctx, created.ID, dto.RefundInvoiceRequest{Amount: &partial})
	s.NoError(err)
	s.True(partial.Equal(resp.Amount))

	s.Require().Len(s.GetGateway().RefundRequests, 1)
	s.Require().NotNil(s.GetGateway().RefundRequests[0].Amount)
	s.True(partial.Equal(*s.GetGateway().RefundRequests[0].Amount))
}

func (s *InvoiceServiceSuite) TestRefundInvoiceRejectsExcessiveAmount() {
	ctx := s.GetContext()
	sub := seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	attempt := s.seedSuccessfulAttempt("tenant-1", types.BillingCycleDate(time.Now().UTC()))

	created, err := s.invoiceService.CreateForChargeAttempt(ctx, attempt, sub)
	s.NoError(err)

	tooMuch := attempt.Amount.Add(decimal.NewFromInt(1))
	_, err = s.invoiceService.RefundInvoice(ctx, created.ID, dto.RefundInvoiceRequest{Amount: &tooMuch})
	s.Error(err)
	s.True(ierr.IsValidation(err))
	s.Empty(s.GetGateway().RefundRequests)
}

func (s *InvoiceServiceSuite) TestRefundInvoiceRequiresSettledCharge() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)

	// Settlement for this attempt is still outstanding, so there is no
	// charge to reverse yet.
	attempt := &charge.Attempt{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE_ATTEMPT),
		TenantID:         "tenant-1",
		BillingCycleDate: types.BillingCycleDate(time.Now().UTC()),
		Amount:           decimal.NewFromInt(49),
		CommissionAmount: decimal.NewFromInt(1),
		Outcome:          types.ChargeOutcomePending,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().ChargeRepo.Create(ctx, attempt))

	inv := &invoice.Invoice{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		TenantID:        "tenant-1",
		InvoiceNumber:   fmt.Sprintf("LAIA-%d-000099", time.Now().UTC().Year()),
		ChargeAttemptID: attempt.ID,
		Plan:            types.PlanTierSolo,
		Amount:          attempt.Amount,
		IssuedAt:        time.Now().UTC(),
		DocumentRef:     types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_DOCUMENT),
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().InvoiceRepo.Create(ctx, inv))

	_, err := s.invoiceService.RefundInvoice(ctx, inv.ID, dto.RefundInvoiceRequest{})
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
	s.Empty(s.GetGateway().RefundRequests)
}

func (s *InvoiceServiceSuite) TestRefundUnknownInvoice() {
	ctx := s.GetContext()

	_, err := s.invoiceService.RefundInvoice(ctx, "inv_unknown", dto.RefundInvoiceRequest{})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}
