package testutil

import (
	"context"
	"sync"

	domain "github.com/laia-connect/billing/internal/domain/pdf"
	"github.com/laia-connect/billing/internal/pdf"
)

// MockPDFGenerator returns a fixed byte marker instead of invoking the
// typst binary, and records the render requests.
type MockPDFGenerator struct {
	mu              sync.Mutex
	InvoiceRequests []*domain.InvoiceData
	MandateRequests []*domain.MandateData
	// Err, when set, is returned by every render call
	Err error
}

var _ pdf.Generator = (*MockPDFGenerator)(nil)

func NewMockPDFGenerator() *MockPDFGenerator {
	return &MockPDFGenerator{}
}

func (m *MockPDFGenerator) RenderInvoicePdf(ctx context.Context, data *domain.InvoiceData) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.InvoiceRequests = append(m.InvoiceRequests, data)
	return []byte("%PDF-1.7 invoice"), nil
}

func (m *MockPDFGenerator) RenderMandatePdf(ctx context.Context, data *domain.MandateData) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.MandateRequests = append(m.MandateRequests, data)
	return []byte("%PDF-1.7 mandate"), nil
}
