package validation

import (
	"errors"
	"strings"
)

// ErrCapitalEmpty is returned when capital is empty or whitespace-only after trim.
var ErrCapitalEmpty = errors.New("capital is required")

// ErrCountryCodeInvalid is returned when a country code is not two ASCII letters.
var ErrCountryCodeInvalid = errors.New("country code must be two letters")

// ValidateCapital trims the input and rejects only a blank capital. Any other name
// goes to the weather API as given, which answers unknown cities itself.
func ValidateCapital(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrCapitalEmpty
	}
	return s, nil
}

// ValidateCountryCode trims and upper-cases a cca2 code.
func ValidateCountryCode(input string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if len(s) != 2 {
		return "", ErrCountryCodeInvalid
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", ErrCountryCodeInvalid
		}
	}
	return s, nil
}
