package service

import (
	"strings"
	"testing"

	"github.com/laia-connect/billing/internal/api/dto"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/testutil"
	"github.com/laia-connect/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type MandateServiceSuite struct {
	testutil.BaseServiceTestSuite
	mandateService MandateService
}

func TestMandateService(t *testing.T) {
	suite.Run(t, new(MandateServiceSuite))
}

func (s *MandateServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.mandateService = NewMandateService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *MandateServiceSuite) createRequest(tenantID string) *dto.CreateMandateRequest {
	return &dto.CreateMandateRequest{
		TenantID:          tenantID,
		AccountHolderName: "Marie Dupont",
		IBAN:              "fr14 2004 1010 0505 0001 3m02 606",
		BIC:               "bnpafrpp",
		Email:             "marie@bellepeau.fr",
	}
}

func (s *MandateServiceSuite) TestCreateEncryptsBankDetails() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusTrial)

	resp, err := s.mandateService.CreateMandate(ctx, s.createRequest("tenant-1"))
	s.NoError(err)
	s.Equal(types.MandateStatusActive, resp.MandateStatus)
	s.Equal("FR142004***************2606", resp.IBANMasked)
	s.True(strings.HasPrefix(resp.MandateRef, "LAIA-RUM-"))
	s.NotEmpty(resp.DocumentRef)

	// persisted form carries ciphertext only, and it decrypts back to the
	// normalized identifiers
	stored, err := s.GetStores().MandateRepo.Get(ctx, resp.ID)
	s.NoError(err)
	s.NotEqual("FR1420041010050500013M02606", stored.IBANCiphertext)
	s.NotContains(stored.IBANCiphertext, "2004")
	s.NotContains(stored.BICCiphertext, "BNPA")

	iban, err := s.GetEncryption().Decrypt(stored.IBANCiphertext)
	s.NoError(err)
	s.Equal("FR1420041010050500013M02606", iban)
	bic, err := s.GetEncryption().Decrypt(stored.BICCiphertext)
	s.NoError(err)
	s.Equal("BNPAFRPP", bic)
}

func (s *MandateServiceSuite) TestCreateAttachesInstrumentAtNetwork() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusTrial)

	resp, err := s.mandateService.CreateMandate(ctx, s.createRequest("tenant-1"))
	s.NoError(err)

	s.Require().Len(s.GetGateway().MandateRequests, 1)
	attached := s.GetGateway().MandateRequests[0]
	s.Equal("cus_tenant-1", attached.CustomerRef)
	s.Equal(resp.MandateRef, attached.MandateRef)
	s.Equal("FR1420041010050500013M02606", attached.IBAN)

	// the signed mandate document was rendered
	s.Len(s.GetPDFGenerator().MandateRequests, 1)

	s.Contains(s.GetWebhookPublisher().EventNames(), types.WebhookEventMandateCreated)
}

func (s *MandateServiceSuite) TestCreateRejectsBadIBAN() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusTrial)

	req := s.createRequest("tenant-1")
	req.IBAN = "FR140000000000000000000000" // checksum cannot hold

	_, err := s.mandateService.CreateMandate(ctx, req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
	s.Empty(s.GetGateway().MandateRequests)
}

func (s *MandateServiceSuite) TestCreateRequiresSubscription() {
	ctx := s.GetContext()

	_, err := s.mandateService.CreateMandate(ctx, s.createRequest("tenant-without-subscription"))
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
}

func (s *MandateServiceSuite) TestSecondActiveMandateRejected() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")

	_, err := s.mandateService.CreateMandate(ctx, s.createRequest("tenant-1"))
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *MandateServiceSuite) TestRevokeIsIdempotent() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	m := seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")

	resp, err := s.mandateService.RevokeMandate(ctx, m.ID)
	s.NoError(err)
	s.Equal(types.MandateStatusRevoked, resp.MandateStatus)
	s.Contains(s.GetWebhookPublisher().EventNames(), types.WebhookEventMandateRevoked)

	// the tenant no longer holds an active mandate
	_, err = s.mandateService.GetActiveMandate(ctx, "tenant-1")
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	// revoking again acknowledges without a second event
	resp, err = s.mandateService.RevokeMandate(ctx, m.ID)
	s.NoError(err)
	s.Equal(types.MandateStatusRevoked, resp.MandateStatus)

	count := 0
	for _, name := range s.GetWebhookPublisher().EventNames() {
		if name == types.WebhookEventMandateRevoked {
			count++
		}
	}
	s.Equal(1, count)
}

func (s *MandateServiceSuite) TestNewMandateAfterRevocation() {
	ctx := s.GetContext()
	seedSubscription(ctx, &s.BaseServiceTestSuite, "tenant-1", types.SubscriptionStatusActive)
	m := seedActiveMandate(ctx, &s.BaseServiceTestSuite, "tenant-1")

	_, err := s.mandateService.RevokeMandate(ctx, m.ID)
	s.NoError(err)

	resp, err := s.mandateService.CreateMandate(ctx, s.createRequest("tenant-1"))
	s.NoError(err)
	s.Equal(types.MandateStatusActive, resp.MandateStatus)
	s.NotEqual(m.MandateRef, resp.MandateRef)

	list, err := s.mandateService.ListMandates(ctx, "tenant-1")
	s.NoError(err)
	s.Equal(2, list.Total)
}
