package integration

import (
	"strings"
	"unicode"
)

// Address is the vendor-neutral postal address used by carriers and tax
// engines.
type Address struct {
	Name          string `json:"name,omitempty"`
	Company       string `json:"company,omitempty"`
	Line1         string `json:"line1"`
	Line2         string `json:"line2,omitempty"`
	City          string `json:"city"`
	State         string `json:"state,omitempty"` // county, province or state code
	PostalCode    string `json:"postalCode"`
	CountryCode   string `json:"countryCode"` // ISO 3166-1 alpha-2
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	IsResidential bool   `json:"isResidential,omitempty"`
}

// AddressValidationResult is the normalized outcome of an address check.
type AddressValidationResult struct {
	Valid       bool      `json:"valid"`
	Normalized  *Address  `json:"normalized,omitempty"`
	Suggestions []Address `json:"suggestions,omitempty"`
	Messages    []string  `json:"messages,omitempty"`
}

const minPhoneDigits = 7

// ValidatePhone checks that phone carries enough digits for a carrier to
// contact the party. party names the address in the error message.
func ValidatePhone(provider, party, phone string) error {
	if strings.TrimSpace(phone) == "" {
		return Validation(provider, "%s phone number is required", party)
	}
	digits := 0
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < minPhoneDigits {
		return Validation(provider, "%s phone number must contain at least %d digits", party, minPhoneDigits)
	}
	return nil
}

// ValidateShippingParties fails fast when either party lacks a usable
// phone number.
func ValidateShippingParties(provider string, sender, recipient Address) error {
	if err := ValidatePhone(provider, "sender", sender.Phone); err != nil {
		return err
	}
	return ValidatePhone(provider, "recipient", recipient.Phone)
}

// DigitsOnly strips everything except digits and a leading '+'.
func DigitsOnly(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) || (i == 0 && r == '+') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
