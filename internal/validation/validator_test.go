package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRow(t *testing.T) {
	tests := []struct {
		name      string
		row       map[string]string
		wantValid bool
		wantErrs  []string
	}{
		{
			name: "valid row",
			row: map[string]string{
				"OwnerName":  "John Smith",
				"Address":    "123 Main St",
				"Zip":        "98101",
				"Email 1":    "john@email.com",
				"Wireless 1": "206-555-0101",
			},
			wantValid: true,
		},
		{
			name:      "missing required fields",
			row:       map[string]string{"OwnerName": "", "Address": ""},
			wantValid: false,
			wantErrs:  []string{"OwnerName is required", "Address is required"},
		},
		{
			name:      "whitespace owner",
			row:       map[string]string{"OwnerName": "   ", "Address": "1 A St"},
			wantValid: false,
			wantErrs:  []string{"OwnerName is required"},
		},
		{
			name:      "zip plus four",
			row:       map[string]string{"OwnerName": "A", "Address": "1 A St", "Zip": "98101-1234"},
			wantValid: true,
		},
		{
			name:      "blank zip allowed",
			row:       map[string]string{"OwnerName": "A", "Address": "1 A St", "Zip": ""},
			wantValid: true,
		},
		{
			name: "every format rule fails",
			row: map[string]string{
				"OwnerName":  "A",
				"Address":    "1 A St",
				"Zip":        "9810",
				"Email 1":    "nope",
				"Email 2":    "a@b",
				"Wireless 1": "0123456789",
				"Landline 4": "555-0101",
			},
			wantValid: false,
			wantErrs: []string{
				"Zip code must be in valid format (e.g., 12345 or 12345-6789)",
				"Email 1 is not in valid format",
				"Email 2 is not in valid format",
				"Wireless 1 is not in valid phone format",
				"Landline 4 is not in valid phone format",
			},
		},
		{
			name:      "city and state never required",
			row:       map[string]string{"OwnerName": "A", "Address": "1 A St"},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateRow(tt.row)
			assert.Equal(t, tt.wantValid, got.IsValid)
			assert.Equal(t, tt.wantErrs, got.Errors)
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"2065550101", true},
		{"0123456789", false},
		{"12065550101", true},
		{"22065550101", false},
		{"(206) 555-0101", true},
		{"1 (206) 555-0101", true},
		{"", false},
		{"abc", false},
		{"555-0101", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidPhone(tt.phone))
		})
	}
}
