package webhook

import (
	"context"
	"fmt"

	"github.com/laia-connect/billing/internal/config"
	"github.com/laia-connect/billing/internal/logger"
	pubsubRouter "github.com/laia-connect/billing/internal/pubsub/router"
	"github.com/laia-connect/billing/internal/webhook/handler"
	"github.com/laia-connect/billing/internal/webhook/publisher"
)

// WebhookService orchestrates the outbound notification pipeline
type WebhookService struct {
	config    *config.Configuration
	publisher publisher.WebhookPublisher
	handler   handler.Handler
	logger    *logger.Logger
}

// NewWebhookService creates a new notification service
func NewWebhookService(
	cfg *config.Configuration,
	publisher publisher.WebhookPublisher,
	h handler.Handler,
	l *logger.Logger,
) *WebhookService {
	return &WebhookService{
		config:    cfg,
		publisher: publisher,
		handler:   h,
		logger:    l,
	}
}

// Start registers the delivery handler on the router
func (s *WebhookService) Start(ctx context.Context, router *pubsubRouter.Router) error {
	if !s.config.Webhook.Enabled {
		s.logger.Info("notification service disabled")
		return nil
	}

	s.handler.RegisterHandler(router)
	s.logger.Info("notification service started")
	return nil
}

// Stop closes the publisher
func (s *WebhookService) Stop() error {
	if err := s.publisher.Close(); err != nil {
		s.logger.Errorw("failed to close notification publisher", "error", err)
		return fmt.Errorf("failed to close notification publisher: %w", err)
	}

	s.logger.Info("notification service stopped")
	return nil
}
