package types

import (
	"fmt"
	"time"
)

// BillingPeriod is the recurring period after which a new charge is due
type BillingPeriod string

const (
	BILLING_PERIOD_MONTHLY BillingPeriod = "MONTHLY"
	BILLING_PERIOD_ANNUAL  BillingPeriod = "ANNUAL"
)

// NextBillingDate calculates the next billing date based on the given start
// time, billing period, and billing period unit (the frequency multiplier).
// For example:
// - If billing period is MONTHLY and unit is 2, we add two months.
// - If billing period is ANNUAL and unit is 1, we add one year.
// Month arithmetic is clamped so a Jan 31 anchor bills on Feb 28/29 rather
// than rolling over into March.
func NextBillingDate(start time.Time, unit int, period BillingPeriod) (time.Time, error) {
	if unit <= 0 {
		return start, fmt.Errorf("billing period unit must be a positive integer, got %d", unit)
	}

	switch period {
	case BILLING_PERIOD_MONTHLY:
		return AddClampedDate(start, 0, unit, 0), nil
	case BILLING_PERIOD_ANNUAL:
		return AddClampedDate(start, unit, 0, 0), nil
	default:
		return start, fmt.Errorf("invalid billing period type: %s", period)
	}
}

// AddClampedDate adds years, months and days to t, clamping the day of
// month to the last valid day of the target month instead of letting
// time.AddDate normalize past it.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	// If we move beyond December, it adjusts correctly,
	// for example adding 2 months to November will land on January next year.
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Find the last valid day of the new month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()

	newD := d
	if newD > lastDay {
		newD = lastDay
	}

	result := time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
	return result.AddDate(0, 0, days)
}

// BillingCycleDate truncates t to the UTC day used as the billing cycle
// key. One charge attempt exists per (tenant, cycle date) pair.
func BillingCycleDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
