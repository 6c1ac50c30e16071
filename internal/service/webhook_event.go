package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/types"
	webhookPublisher "github.com/laia-connect/billing/internal/webhook/publisher"
)

// publishWebhookEvent emits a notification event after a state transition
// commits. Delivery is asynchronous; a publish failure is logged and never
// propagated, so notifications cannot undo or block a transition.
func publishWebhookEvent(
	ctx context.Context,
	log *logger.Logger,
	publisher webhookPublisher.WebhookPublisher,
	eventName string,
	tenantID string,
	payload interface{},
) {
	if publisher == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorw("failed to marshal notification payload",
			"error", err,
			"event_name", eventName,
			"tenant_id", tenantID,
		)
		return
	}

	event := &types.WebhookEvent{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT),
		EventName: eventName,
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
		Payload:   json.RawMessage(data),
	}

	if err := publisher.PublishWebhook(ctx, event); err != nil {
		log.Errorw("failed to publish notification event",
			"error", err,
			"event_name", eventName,
			"tenant_id", tenantID,
		)
	}
}
