package testutil

import (
	"context"
	"time"

	"github.com/laia-connect/billing/internal/cache"
	"github.com/laia-connect/billing/internal/config"
	"github.com/laia-connect/billing/internal/domain/charge"
	"github.com/laia-connect/billing/internal/domain/invoice"
	"github.com/laia-connect/billing/internal/domain/mandate"
	"github.com/laia-connect/billing/internal/domain/subscription"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/security"
	"github.com/laia-connect/billing/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SubscriptionRepo subscription.Repository
	MandateRepo      mandate.Repository
	ChargeRepo       charge.Repository
	InvoiceRepo      invoice.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx              context.Context
	stores           Stores
	subStore         *InMemorySubscriptionStore
	mandateStore     *InMemoryMandateStore
	chargeStore      *InMemoryChargeStore
	invoiceStore     *InMemoryInvoiceStore
	gateway          *FakeGateway
	webhookPublisher *InMemoryWebhookPublisher
	pdfGenerator     *MockPDFGenerator
	encryption       security.EncryptionService
	cache            cache.Cache
	logger           *logger.Logger
	config           *config.Configuration
	now              time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Secrets.EncryptionKey = "test-encryption-key-for-unit-tests-only"
	s.config = cfg

	var err error
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}

	s.encryption, err = security.NewEncryptionService(cfg, s.logger)
	if err != nil {
		s.T().Fatalf("failed to create encryption service: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.subStore = NewInMemorySubscriptionStore()
	s.mandateStore = NewInMemoryMandateStore()
	s.chargeStore = NewInMemoryChargeStore()
	s.invoiceStore = NewInMemoryInvoiceStore()
	s.stores = Stores{
		SubscriptionRepo: s.subStore,
		MandateRepo:      s.mandateStore,
		ChargeRepo:       s.chargeStore,
		InvoiceRepo:      s.invoiceStore,
	}
	s.gateway = NewFakeGateway()
	s.webhookPublisher = NewInMemoryWebhookPublisher()
	s.pdfGenerator = NewMockPDFGenerator()
	s.cache = cache.NewInMemoryCache()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.subStore.Clear()
	s.mandateStore.Clear()
	s.chargeStore.Clear()
	s.invoiceStore.Clear()
	s.gateway.Reset()
	s.webhookPublisher.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetStores returns the test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetGateway returns the fake payment network
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway {
	return s.gateway
}

// GetWebhookPublisher returns the recording notification publisher
func (s *BaseServiceTestSuite) GetWebhookPublisher() *InMemoryWebhookPublisher {
	return s.webhookPublisher
}

// GetPDFGenerator returns the recording document renderer
func (s *BaseServiceTestSuite) GetPDFGenerator() *MockPDFGenerator {
	return s.pdfGenerator
}

// GetEncryption returns the vault backed by the test master key
func (s *BaseServiceTestSuite) GetEncryption() security.EncryptionService {
	return s.encryption
}

// GetCache returns the per-test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetNow returns the time captured at test setup
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
