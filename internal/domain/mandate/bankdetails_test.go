package mandate

import (
	"testing"

	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeIBAN(t *testing.T) {
	assert.Equal(t, "FR1420041010050500013M02606", NormalizeIBAN("fr14 2004 1010 0505 0001 3m02 606"))
	assert.Equal(t, "DE89370400440532013000", NormalizeIBAN("DE89 3704 0044 0532 0130 00"))
}

func TestValidateIBAN(t *testing.T) {
	tests := []struct {
		name    string
		iban    string
		wantErr bool
	}{
		{name: "valid french iban", iban: "FR1420041010050500013M02606"},
		{name: "valid german iban", iban: "DE89370400440532013000"},
		{name: "valid with spaces and lowercase", iban: "fr14 2004 1010 0505 0001 3m02 606"},
		{name: "bad checksum", iban: "FR1420041010050500013M02607", wantErr: true},
		{name: "check digits swapped", iban: "FR4120041010050500013M02606", wantErr: true},
		{name: "too short", iban: "FR14", wantErr: true},
		{name: "missing country code", iban: "1420041010050500013M02606", wantErr: true},
		{name: "empty", iban: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIBAN(tt.iban)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBIC(t *testing.T) {
	tests := []struct {
		name    string
		bic     string
		wantErr bool
	}{
		{name: "valid 8 char", bic: "BNPAFRPP"},
		{name: "valid 11 char", bic: "BNPAFRPPXXX"},
		{name: "lowercase accepted", bic: "bnpafrpp"},
		{name: "too short", bic: "BNPAFR", wantErr: true},
		{name: "nine chars", bic: "BNPAFRPPX", wantErr: true},
		{name: "digits in bank code", bic: "1NPAFRPP", wantErr: true},
		{name: "empty", bic: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBIC(tt.bic)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMaskIBAN(t *testing.T) {
	assert.Equal(t, "FR142004***************2606", MaskIBAN("FR1420041010050500013M02606"))
	assert.Equal(t, "DE893704**********3000", MaskIBAN("DE89 3704 0044 0532 0130 00"))
	// short values are fully masked rather than partially revealed
	assert.Equal(t, "************", MaskIBAN("FR1420041010"))
}
