package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBillingDateMonthly(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		want  time.Time
	}{
		{
			name:  "mid month advances a month",
			start: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "jan 31 clamps to feb 28",
			start: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "jan 31 clamps to feb 29 on leap year",
			start: time.Date(2028, 1, 31, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "mar 31 clamps to apr 30",
			start: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "december wraps the year",
			start: time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextBillingDate(tt.start, 1, BILLING_PERIOD_MONTHLY)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextBillingDateAnnual(t *testing.T) {
	// Feb 29 anchors clamp to Feb 28 on non-leap target years
	got, err := NextBillingDate(time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC), 1, BILLING_PERIOD_ANNUAL)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2029, 2, 28, 0, 0, 0, 0, time.UTC), got)
}

func TestNextBillingDateRejectsBadInput(t *testing.T) {
	_, err := NextBillingDate(time.Now().UTC(), 0, BILLING_PERIOD_MONTHLY)
	assert.Error(t, err)

	_, err = NextBillingDate(time.Now().UTC(), 1, BillingPeriod("WEEKLY"))
	assert.Error(t, err)
}

func TestBillingCycleDate(t *testing.T) {
	ts := time.Date(2026, 8, 28, 17, 42, 3, 999, time.FixedZone("CEST", 2*3600))
	got := BillingCycleDate(ts.UTC())
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}
