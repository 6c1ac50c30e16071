package pdf

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/laia-connect/billing/internal/domain/pdf"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/typst"
)

// Generator renders billing documents to PDF
type Generator interface {
	RenderInvoicePdf(ctx context.Context, data *pdf.InvoiceData) ([]byte, error)
	RenderMandatePdf(ctx context.Context, data *pdf.MandateData) ([]byte, error)
}

type service struct {
	typst typst.Compiler
}

// NewGenerator creates a new PDF generator
func NewGenerator(typst typst.Compiler) Generator {
	return &service{
		typst: typst,
	}
}

func (s *service) RenderInvoicePdf(ctx context.Context, data *pdf.InvoiceData) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to marshal invoice data").
			Mark(ierr.ErrSystem)
	}

	out, err := s.typst.CompileTemplate(
		"invoice.typ",
		jsonData,
		fmt.Sprintf("invoice-%s.pdf", data.ID),
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to compile invoice template").
			Mark(ierr.ErrSystem)
	}

	return out, nil
}

func (s *service) RenderMandatePdf(ctx context.Context, data *pdf.MandateData) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to marshal mandate data").
			Mark(ierr.ErrSystem)
	}

	out, err := s.typst.CompileTemplate(
		"mandate.typ",
		jsonData,
		fmt.Sprintf("mandate-%s.pdf", data.ID),
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to compile mandate template").
			Mark(ierr.ErrSystem)
	}

	return out, nil
}
