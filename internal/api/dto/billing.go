package dto

import (
	"time"

	"github.com/laia-connect/billing/internal/types"
)

// BillingRunItem is the per-tenant outcome of one scheduler run
type BillingRunItem struct {
	TenantID         string              `json:"tenant_id"`
	SubscriptionID   string              `json:"subscription_id"`
	BillingCycleDate time.Time           `json:"billing_cycle_date"`
	Outcome          types.ChargeOutcome `json:"outcome,omitempty"`
	// Skipped marks tenants whose cycle was already settled by an
	// earlier or concurrent run
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BillingRunResponse summarizes one scheduler run
type BillingRunResponse struct {
	RunAt     time.Time         `json:"run_at"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Pending   int               `json:"pending"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Items     []*BillingRunItem `json:"items"`
}

// ReconciliationResponse reports how a settlement notification was applied
type ReconciliationResponse struct {
	ChargeAttemptID string `json:"charge_attempt_id,omitempty"`
	Applied         bool   `json:"applied"`
	// Duplicate marks notifications that arrived after the attempt was
	// already settled to the same outcome
	Duplicate bool `json:"duplicate,omitempty"`
}
