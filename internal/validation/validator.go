package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reZip      = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	reEmail    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	reNonDigit = regexp.MustCompile(`\D`)
)

// ValidateRow checks one mapped upload row. Every violated rule is reported;
// validation never stops at the first failure.
func ValidateRow(row map[string]string) Result {
	var errs []string

	if strings.TrimSpace(row[FieldOwnerName]) == "" {
		errs = append(errs, "OwnerName is required")
	}

	if strings.TrimSpace(row[FieldAddress]) == "" {
		errs = append(errs, "Address is required")
	}

	if zip := strings.TrimSpace(row[FieldZip]); zip != "" && !reZip.MatchString(zip) {
		errs = append(errs, "Zip code must be in valid format (e.g., 12345 or 12345-6789)")
	}

	for _, field := range EmailFields {
		if email := strings.TrimSpace(row[field]); email != "" && !reEmail.MatchString(email) {
			errs = append(errs, fmt.Sprintf("%s is not in valid format", field))
		}
	}

	for _, field := range PhoneFields {
		if phone := strings.TrimSpace(row[field]); phone != "" && !IsValidPhone(phone) {
			errs = append(errs, fmt.Sprintf("%s is not in valid phone format", field))
		}
	}

	return Result{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

// IsValidPhone accepts 10-digit NANP numbers with an area code starting 2-9,
// or 11 digits with a leading country code 1.
func IsValidPhone(phone string) bool {
	digits := reNonDigit.ReplaceAllString(phone, "")

	switch len(digits) {
	case 10:
		return digits[0] >= '2' && digits[0] <= '9'
	case 11:
		return digits[0] == '1'
	default:
		return false
	}
}
