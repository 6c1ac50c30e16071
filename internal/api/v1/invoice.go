package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/laia-connect/billing/internal/api/dto"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/service"
)

type InvoiceHandler struct {
	service service.InvoiceService
	log     *logger.Logger
}

func NewInvoiceHandler(service service.InvoiceService, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{service: service, log: log}
}

// @Summary Get invoice
// @Description Get an invoice by ID
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invoice ID is required").
			WithHint("Please provide a valid invoice ID").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get invoice", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List invoices
// @Description List a tenant's invoices, most recent first
// @Tags Invoices
// @Produce json
// @Param tenant_id query string true "Tenant ID"
// @Success 200 {object} dto.ListInvoicesResponse
// @Router /invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.Error(ierr.NewError("tenant ID is required").
			WithHint("Please provide a valid tenant ID").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListInvoices(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error("Failed to list invoices", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Refund invoice
// @Description Refund the settled charge behind an invoice, fully or partially
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param request body dto.RefundInvoiceRequest false "Refund request"
// @Success 200 {object} dto.RefundResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /invoices/{id}/refund [post]
func (h *InvoiceHandler) RefundInvoice(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invoice ID is required").
			WithHint("Please provide a valid invoice ID").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.RefundInvoiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Please check the refund request payload").
				Mark(ierr.ErrValidation))
			return
		}
	}

	resp, err := h.service.RefundInvoice(c.Request.Context(), id, req)
	if err != nil {
		h.log.Error("Failed to refund invoice", "error", err, "invoice_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Download invoice PDF
// @Description Render and download the invoice document
// @Tags Invoices
// @Produce application/pdf
// @Param id path string true "Invoice ID"
// @Success 200 {file} binary
// @Failure 404 {object} errors.ErrorResponse
// @Router /invoices/{id}/pdf [get]
func (h *InvoiceHandler) GetInvoicePDF(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invoice ID is required").
			WithHint("Please provide a valid invoice ID").
			Mark(ierr.ErrValidation))
		return
	}

	pdfBytes, err := h.service.GetInvoicePDF(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to render invoice PDF", "error", err, "invoice_id", id)
		c.Error(err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", id))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
