package v1

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/laia-connect/billing/internal/config"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/service"
	"github.com/laia-connect/billing/internal/types"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookHandler receives asynchronous settlement notifications from the
// payment network. SEPA debits settle days after submission, so this is the
// path that moves PENDING charge attempts to their terminal outcome.
type WebhookHandler struct {
	config         *config.Configuration
	reconciliation service.ReconciliationService
	log            *logger.Logger
}

func NewWebhookHandler(cfg *config.Configuration, reconciliation service.ReconciliationService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{config: cfg, reconciliation: reconciliation, log: log}
}

// @Summary Stripe webhook
// @Description Signed settlement notifications from Stripe
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Unable to read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	event, err := h.parseEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		c.Error(err)
		return
	}

	notification, err := h.toSettlement(event)
	if err != nil {
		c.Error(err)
		return
	}
	if notification == nil {
		// event type we do not act on, acknowledge so Stripe stops retrying
		c.JSON(http.StatusOK, gin.H{"received": true, "handled": false})
		return
	}

	resp, err := h.reconciliation.HandleSettlement(c.Request.Context(), notification)
	if err != nil {
		if ierr.IsNotFound(err) {
			// we may receive events for charges created outside this system;
			// acknowledge so the network does not retry forever
			h.log.Warnw("settlement did not match any charge attempt",
				"gateway_charge_id", notification.GatewayChargeID,
				"tenant_id", notification.TenantID)
			c.JSON(http.StatusOK, gin.H{"received": true, "handled": false})
			return
		}
		h.log.Error("Failed to apply settlement", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "applied": resp.Applied, "duplicate": resp.Duplicate})
}

func (h *WebhookHandler) parseEvent(payload []byte, signature string) (*stripe.Event, error) {
	options := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, h.config.Secrets.StripeWebhookSecret, options)
	if err != nil {
		h.log.Errorw("webhook signature verification failed", "error", err)
		return nil, ierr.NewError("failed to verify webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrValidation)
	}
	return &event, nil
}

// toSettlement normalizes a verified Stripe event into a settlement
// notification. Returns nil for event types the subsystem ignores.
func (h *WebhookHandler) toSettlement(event *stripe.Event) (*service.SettlementNotification, error) {
	var outcome types.ChargeOutcome
	switch event.Type {
	case "payment_intent.succeeded":
		outcome = types.ChargeOutcomeSuccess
	case "payment_intent.payment_failed":
		outcome = types.ChargeOutcomeFailed
	default:
		return nil, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Malformed webhook payload").
			Mark(ierr.ErrValidation)
	}

	n := &service.SettlementNotification{
		GatewayChargeID: intent.ID,
		TenantID:        intent.Metadata["tenant_id"],
		Outcome:         outcome,
	}

	if raw := intent.Metadata["billing_cycle_date"]; raw != "" {
		if cycleDate, err := time.Parse("2006-01-02", raw); err == nil {
			n.BillingCycleDate = &cycleDate
		} else {
			h.log.Warnw("unparseable billing_cycle_date in charge metadata",
				"value", raw, "gateway_charge_id", intent.ID)
		}
	}

	if outcome == types.ChargeOutcomeFailed && intent.LastPaymentError != nil {
		if intent.LastPaymentError.DeclineCode != "" {
			n.FailureReason = string(intent.LastPaymentError.DeclineCode)
		} else {
			n.FailureReason = intent.LastPaymentError.Msg
		}
	}

	return n, nil
}
