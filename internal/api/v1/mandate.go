package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/laia-connect/billing/internal/api/dto"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/service"
)

type MandateHandler struct {
	service service.MandateService
	log     *logger.Logger
}

func NewMandateHandler(service service.MandateService, log *logger.Logger) *MandateHandler {
	return &MandateHandler{service: service, log: log}
}

// @Summary Create mandate
// @Description Register a SEPA direct debit mandate for a tenant. Bank details
// are encrypted at rest; responses expose only the masked IBAN.
// @Tags Mandates
// @Accept json
// @Produce json
// @Param mandate body dto.CreateMandateRequest true "Mandate Request"
// @Success 201 {object} dto.MandateResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /mandates [post]
func (h *MandateHandler) CreateMandate(c *gin.Context) {
	var req dto.CreateMandateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// never log the bind error here, the raw payload may carry bank details
		c.Error(ierr.NewError("invalid mandate payload").
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateMandate(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to create mandate", "error", err, "tenant_id", req.TenantID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get mandate
// @Description Get a mandate by ID
// @Tags Mandates
// @Produce json
// @Param id path string true "Mandate ID"
// @Success 200 {object} dto.MandateResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /mandates/{id} [get]
func (h *MandateHandler) GetMandate(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("mandate ID is required").
			WithHint("Please provide a valid mandate ID").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetMandate(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get mandate", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List mandates
// @Description List a tenant's mandates, most recent first
// @Tags Mandates
// @Produce json
// @Param tenant_id query string true "Tenant ID"
// @Success 200 {object} dto.ListMandatesResponse
// @Router /mandates [get]
func (h *MandateHandler) ListMandates(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.Error(ierr.NewError("tenant ID is required").
			WithHint("Please provide a valid tenant ID").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListMandates(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error("Failed to list mandates", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Revoke mandate
// @Description Revoke a mandate. Idempotent; future charges against the tenant
// will fail until a new mandate is registered.
// @Tags Mandates
// @Produce json
// @Param id path string true "Mandate ID"
// @Success 200 {object} dto.MandateResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /mandates/{id}/revoke [post]
func (h *MandateHandler) RevokeMandate(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("mandate ID is required").
			WithHint("Please provide a valid mandate ID").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.RevokeMandate(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to revoke mandate", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
