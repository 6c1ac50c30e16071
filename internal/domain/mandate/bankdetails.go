package mandate

import (
	"regexp"
	"strings"

	ierr "github.com/laia-connect/billing/internal/errors"
)

var (
	ibanShapeRegex = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)
	bicShapeRegex  = regexp.MustCompile(`^[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
)

// NormalizeIBAN strips spaces and upper-cases an IBAN as entered by a user
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
}

// ValidateIBAN performs structural and ISO 13616 mod-97 checksum validation.
// It must pass before the value is ever encrypted or sent to the network.
func ValidateIBAN(iban string) error {
	normalized := NormalizeIBAN(iban)

	if !ibanShapeRegex.MatchString(normalized) {
		return ierr.NewError("invalid IBAN format").
			WithHint("IBAN must start with a country code followed by check digits").
			Mark(ierr.ErrValidation)
	}

	// Move the first four characters to the end, replace letters with
	// their numeric values (A=10 .. Z=35) and verify mod 97 == 1
	rearranged := normalized[4:] + normalized[:4]
	remainder := 0
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			remainder = (remainder*10 + int(r-'0')) % 97
		case r >= 'A' && r <= 'Z':
			v := int(r-'A') + 10
			remainder = (remainder*100 + v) % 97
		}
	}

	if remainder != 1 {
		return ierr.NewError("IBAN checksum verification failed").
			WithHint("IBAN check digits do not match the account number").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// ValidateBIC performs ISO 9362 structural validation of a BIC
func ValidateBIC(bic string) error {
	normalized := strings.ToUpper(strings.TrimSpace(bic))

	if !bicShapeRegex.MatchString(normalized) {
		return ierr.NewError("invalid BIC format").
			WithHint("BIC must be 8 or 11 characters: bank, country and location codes").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// MaskIBAN returns the display form of an IBAN: first 8 and last 4
// characters, everything in between replaced. This is the only form that
// may appear in generated documents or logs.
func MaskIBAN(iban string) string {
	normalized := NormalizeIBAN(iban)
	if len(normalized) <= 12 {
		return strings.Repeat("*", len(normalized))
	}
	return normalized[:8] + strings.Repeat("*", len(normalized)-12) + normalized[len(normalized)-4:]
}
