package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCapital_EmptyAndWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateCapital(tc.input)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrCapitalEmpty) {
				t.Errorf("error = %v, want ErrCapitalEmpty", err)
			}
		})
	}
}

// TestValidateCapital_PassesUnusualNames verifies names are not filtered by length
// or character set; the weather API decides whether they exist.
func TestValidateCapital_PassesUnusualNames(t *testing.T) {
	for _, input := range []string{
		"Berlin&appid=x",
		"Ber/lin",
		strings.Repeat("a", 150),
	} {
		got, err := ValidateCapital(input)
		if err != nil {
			t.Errorf("ValidateCapital(%q) error = %v, want nil", input, err)
		}
		if got != input {
			t.Errorf("ValidateCapital(%q) = %q, want it unchanged", input, got)
		}
	}
}

func TestValidateCapital_RealCapitals(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Berlin", "Berlin"},
		{"  Berlin  ", "Berlin"},
		{"Washington, D.C.", "Washington, D.C."},
		{"Port-au-Prince", "Port-au-Prince"},
		{"N'Djamena", "N'Djamena"},
		{"Nuku’alofa", "Nuku’alofa"},
		{"Lomé", "Lomé"},
		{"São Tomé", "São Tomé"},
		{"Hagåtña", "Hagåtña"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ValidateCapital(tc.input)
			if err != nil {
				t.Fatalf("ValidateCapital(%q) error = %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ValidateCapital(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidateCountryCode(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"DE", "DE", false},
		{" de ", "DE", false},
		{"fR", "FR", false},
		{"", "", true},
		{"D", "", true},
		{"DEU", "", true},
		{"D1", "", true},
		{"ÄB", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ValidateCountryCode(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrCountryCodeInvalid) {
					t.Errorf("error = %v, want ErrCountryCodeInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ValidateCountryCode(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
