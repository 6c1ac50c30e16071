package memory

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/laia-connect/billing/internal/config"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/laia-connect/billing/internal/pubsub"
)

// PubSub implements pubsub.PubSub on watermill's in-process gochannel.
// Events do not survive a restart; the notification consumer runs in the
// same process.
type PubSub struct {
	pubsub *gochannel.GoChannel
	config *config.WebhookConfig
	logger *logger.Logger
}

// NewPubSub creates a new memory-based pubsub
func NewPubSub(
	cfg *config.Configuration,
	logger *logger.Logger,
) pubsub.PubSub {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{
			Persistent:          true,
			OutputChannelBuffer: 100,
		},
		watermill.NewStdLogger(false, false),
	)

	return &PubSub{
		pubsub: goChannel,
		config: &cfg.Webhook,
		logger: logger,
	}
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	return p.pubsub.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.pubsub.Subscribe(ctx, topic)
}

// Close is a no-op since the pubsub is in-memory and process-scoped
func (p *PubSub) Close() error {
	return nil
}
