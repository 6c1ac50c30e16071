package testutil

import (
	"context"
	"sync"

	"github.com/laia-connect/billing/internal/types"
	webhookPublisher "github.com/laia-connect/billing/internal/webhook/publisher"
)

// InMemoryWebhookPublisher records published notification events for
// assertion in tests; nothing is delivered.
type InMemoryWebhookPublisher struct {
	mu     sync.RWMutex
	events []*types.WebhookEvent
}

var _ webhookPublisher.WebhookPublisher = (*InMemoryWebhookPublisher)(nil)

func NewInMemoryWebhookPublisher() *InMemoryWebhookPublisher {
	return &InMemoryWebhookPublisher{}
}

func (p *InMemoryWebhookPublisher) PublishWebhook(ctx context.Context, event *types.WebhookEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *InMemoryWebhookPublisher) Close() error {
	return nil
}

// Events returns a snapshot of the published events
func (p *InMemoryWebhookPublisher) Events() []*types.WebhookEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*types.WebhookEvent, len(p.events))
	copy(out, p.events)
	return out
}

// EventNames returns the published event names in order
func (p *InMemoryWebhookPublisher) EventNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.EventName)
	}
	return names
}

// Clear drops recorded events
func (p *InMemoryWebhookPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
