package normalize

import (
	"regexp"
	"strings"
)

var (
	reNonDigit     = regexp.MustCompile(`\D`)
	reLeadingOne   = regexp.MustCompile(`^1`)
	reNonWordSpace = regexp.MustCompile(`[^\w\s]`)
)

// NormalizePhone reduces a phone number to at most 10 digits, dropping a
// leading country code 1.
func NormalizePhone(phone string) string {
	digits := reNonDigit.ReplaceAllString(phone, "")
	digits = reLeadingOne.ReplaceAllString(digits, "")
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

// NormalizeName lowercases and collapses a person or business name, then
// strips punctuation. Whitespace is not collapsed a second time, so
// "John & Jane" becomes "john  jane".
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = reWhitespace.ReplaceAllString(s, " ")
	return reNonWordSpace.ReplaceAllString(s, "")
}

// NameSimilarity compares two names by single-space token overlap.
// Empty tokens left by NormalizeName take part in the comparison.
func NameSimilarity(a, b string) float64 {
	n1 := NormalizeName(a)
	n2 := NormalizeName(b)

	if n1 == n2 {
		return 1.0
	}
	if n1 == "" || n2 == "" {
		return 0
	}

	return TokenOverlap(strings.Split(n1, " "), strings.Split(n2, " "))
}

// Compact lowercases s and drops everything that is not a letter or digit.
// Used for header-to-field comparisons.
func Compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
