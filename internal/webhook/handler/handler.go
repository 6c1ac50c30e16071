package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/laia-connect/billing/internal/config"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/httpclient"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/pubsub"
	pubsubRouter "github.com/laia-connect/billing/internal/pubsub/router"
	"github.com/laia-connect/billing/internal/types"
	"github.com/laia-connect/billing/internal/webhook/payload"
)

// Handler consumes notification events from the bus and delivers them to
// the external notification collaborator
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub  pubsub.PubSub
	config  *config.WebhookConfig
	factory payload.PayloadBuilderFactory
	client  httpclient.Client
	logger  *logger.Logger
}

// NewHandler creates a new notification delivery handler
func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	factory payload.PayloadBuilderFactory,
	client httpclient.Client,
	logger *logger.Logger,
) (Handler, error) {
	return &handler{
		pubSub:  pubSub,
		config:  &cfg.Webhook,
		factory: factory,
		client:  client,
		logger:  logger,
	}, nil
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"notification_delivery",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

// deliveredEnvelope is the wire form sent to the notification endpoint
type deliveredEnvelope struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	TenantID  string          `json:"tenant_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// processMessage enriches and delivers a single notification event
func (h *handler) processMessage(msg *message.Message) error {
	ctx := msg.Context()

	var event types.WebhookEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Errorw("failed to unmarshal notification event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		// Malformed payloads are dropped, not retried
		return nil
	}

	ctx = types.SetTenantID(ctx, event.TenantID)
	ctx = types.SetUserID(ctx, types.DefaultUserID)

	if h.config.NotificationEndpoint == "" {
		h.logger.Debugw("no notification endpoint configured, dropping event",
			"event_id", event.ID,
			"event_name", event.EventName,
		)
		return nil
	}

	builder, err := h.factory.GetBuilder(event.EventName)
	if err != nil {
		h.logger.Warnw("no payload builder for event, dropping",
			"event_name", event.EventName,
			"message_uuid", msg.UUID,
		)
		return nil
	}

	webhookPayload, err := builder.BuildPayload(ctx, event.EventName, event.Payload)
	if err != nil {
		return err
	}

	return h.deliver(ctx, &event, webhookPayload)
}

func (h *handler) deliver(ctx context.Context, event *types.WebhookEvent, data json.RawMessage) error {
	envelope := deliveredEnvelope{
		ID:        event.ID,
		EventName: event.EventName,
		TenantID:  event.TenantID,
		Timestamp: event.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Data:      data,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	resp, err := h.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     h.config.NotificationEndpoint,
		Headers: h.config.Headers,
		Body:    body,
	})
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ierr.NewError("notification endpoint returned non-2xx status").
			WithReportableDetails(map[string]any{
				"status_code": resp.StatusCode,
				"event_id":    event.ID,
				"event_name":  event.EventName,
			}).
			Mark(ierr.ErrHTTPClient)
	}

	h.logger.Infow("notification delivered",
		"event_id", event.ID,
		"event_name", event.EventName,
		"tenant_id", event.TenantID,
	)

	return nil
}
