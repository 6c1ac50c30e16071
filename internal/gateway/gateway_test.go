package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeCommission(t *testing.T) {
	rate := decimal.NewFromFloat(0.02)

	tests := []struct {
		name   string
		amount int64
		want   int64
	}{
		{name: "solo rounds 0.98 up to 1", amount: 49, want: 1},
		{name: "duo rounds 1.78 up to 2", amount: 89, want: 2},
		{name: "team rounds 2.98 up to 3", amount: 149, want: 3},
		{name: "premium rounds 4.98 up to 5", amount: 249, want: 5},
		{name: "zero amount", amount: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCommission(decimal.NewFromInt(tt.amount), rate)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s", got)
		})
	}
}
