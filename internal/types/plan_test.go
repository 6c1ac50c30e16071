package types

import (
	"testing"

	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPlanTierValidate(t *testing.T) {
	for _, tier := range []PlanTier{PlanTierSolo, PlanTierDuo, PlanTierTeam, PlanTierPremium} {
		assert.NoError(t, tier.Validate())
	}

	err := PlanTier("GOLD").Validate()
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestPlanTierAmounts(t *testing.T) {
	assert.True(t, PlanTierSolo.MonthlyAmount().Equal(decimal.NewFromInt(49)))
	assert.True(t, PlanTierDuo.MonthlyAmount().Equal(decimal.NewFromInt(89)))
	assert.True(t, PlanTierTeam.MonthlyAmount().Equal(decimal.NewFromInt(149)))
	assert.True(t, PlanTierPremium.MonthlyAmount().Equal(decimal.NewFromInt(249)))
}

func TestPlanTierDisplayName(t *testing.T) {
	assert.Equal(t, "Formule Solo", PlanTierSolo.DisplayName())
	assert.Equal(t, "Formule Premium", PlanTierPremium.DisplayName())
}
