package types

import (
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PlanTier is one of the fixed subscription tiers of the platform.
// Each tier maps to a fixed monthly amount in EUR.
type PlanTier string

const (
	PlanTierSolo    PlanTier = "SOLO"
	PlanTierDuo     PlanTier = "DUO"
	PlanTierTeam    PlanTier = "TEAM"
	PlanTierPremium PlanTier = "PREMIUM"
)

// planAmounts holds the fixed monthly amounts per tier
var planAmounts = map[PlanTier]decimal.Decimal{
	PlanTierSolo:    decimal.NewFromInt(49),
	PlanTierDuo:     decimal.NewFromInt(89),
	PlanTierTeam:    decimal.NewFromInt(149),
	PlanTierPremium: decimal.NewFromInt(249),
}

// planDisplayNames holds the customer facing label per tier
var planDisplayNames = map[PlanTier]string{
	PlanTierSolo:    "Formule Solo",
	PlanTierDuo:     "Formule Duo",
	PlanTierTeam:    "Formule Team",
	PlanTierPremium: "Formule Premium",
}

func (p PlanTier) String() string {
	return string(p)
}

func (p PlanTier) Validate() error {
	allowed := []PlanTier{
		PlanTierSolo,
		PlanTierDuo,
		PlanTierTeam,
		PlanTierPremium,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid plan tier").
			WithHintf("Plan must be one of SOLO, DUO, TEAM or PREMIUM, got %s", p).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// MonthlyAmount returns the fixed monthly amount for the tier
func (p PlanTier) MonthlyAmount() decimal.Decimal {
	return planAmounts[p]
}

// DisplayName returns the customer facing label for the tier
func (p PlanTier) DisplayName() string {
	if name, ok := planDisplayNames[p]; ok {
		return name
	}
	return string(p)
}
