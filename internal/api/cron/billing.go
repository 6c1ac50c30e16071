package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/service"
)

// BillingHandler exposes the scheduled billing run. The endpoint is invoked
// by the platform cron and is safe to re-run: cycles already recorded are
// skipped.
type BillingHandler struct {
	billingService service.BillingService
	log            *logger.Logger
}

func NewBillingHandler(billingService service.BillingService, log *logger.Logger) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		log:            log,
	}
}

// @Summary Run billing cycle
// @Description Charge every subscription due as of now
// @Tags Cron
// @Produce json
// @Success 200 {object} dto.BillingRunResponse
// @Router /cron/billing/run [post]
func (h *BillingHandler) RunBillingCycle(c *gin.Context) {
	h.log.Infow("starting billing run")

	resp, err := h.billingService.RunBillingCycle(c.Request.Context())
	if err != nil {
		h.log.Errorw("billing run failed", "error", err)
		c.Error(err)
		return
	}

	h.log.Infow("completed billing run",
		"total", resp.Total,
		"succeeded", resp.Succeeded,
		"pending", resp.Pending,
		"failed", resp.Failed,
		"skipped", resp.Skipped,
	)

	c.JSON(http.StatusOK, resp)
}
