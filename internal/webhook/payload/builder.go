package payload

import (
	"context"
	"encoding/json"
)

// PayloadBuilder builds the delivered payload for one event family,
// enriching the internal bus event with the full entity
type PayloadBuilder interface {
	BuildPayload(ctx context.Context, eventType string, data json.RawMessage) (json.RawMessage, error)
}
