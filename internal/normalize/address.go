package normalize

import (
	"regexp"
	"strings"
)

// suffixRule canonicalizes one street-suffix word to its abbreviation
type suffixRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Street suffix rules, applied in order. Each rule maps the long and short
// forms onto the short form so the set is idempotent.
var suffixRules = []suffixRule{
	{regexp.MustCompile(`\b(street|st)\b`), "st"},
	{regexp.MustCompile(`\b(avenue|ave)\b`), "ave"},
	{regexp.MustCompile(`\b(road|rd)\b`), "rd"},
	{regexp.MustCompile(`\b(drive|dr)\b`), "dr"},
	{regexp.MustCompile(`\b(lane|ln)\b`), "ln"},
	{regexp.MustCompile(`\b(boulevard|blvd)\b`), "blvd"},
	{regexp.MustCompile(`\b(court|ct)\b`), "ct"},
	{regexp.MustCompile(`\b(place|pl)\b`), "pl"},
	{regexp.MustCompile(`\b(circle|cir)\b`), "cir"},
	{regexp.MustCompile(`\bway\b`), "way"},
	{regexp.MustCompile(`\b(terrace|ter)\b`), "ter"},
}

var (
	reWhitespace  = regexp.MustCompile(`\s+`)
	rePunctuation = regexp.MustCompile(`[.,]`)
	reHouseNumber = regexp.MustCompile(`^\d+$`)
)

// NormalizeAddress lowercases an address, collapses whitespace, drops periods
// and commas and abbreviates street suffixes.
func NormalizeAddress(address string) string {
	s := strings.ToLower(strings.TrimSpace(address))
	s = reWhitespace.ReplaceAllString(s, " ")
	s = rePunctuation.ReplaceAllString(s, "")

	for _, rule := range suffixRules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}

	// Dropping a standalone comma can leave a double space behind
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// AddressSimilarity scores two street addresses in [0,1] by token overlap,
// averaged with a house number check when both carry one.
func AddressSimilarity(a, b string) float64 {
	n1 := NormalizeAddress(a)
	n2 := NormalizeAddress(b)

	if n1 == n2 {
		return 1.0
	}

	words1 := strings.Fields(n1)
	words2 := strings.Fields(n2)

	wordSimilarity := TokenOverlap(words1, words2)

	num1 := houseNumber(words1)
	num2 := houseNumber(words2)
	if num1 != "" && num2 != "" {
		numSimilarity := 0.5
		if num1 == num2 {
			numSimilarity = 1.0
		}
		return (wordSimilarity + numSimilarity) / 2
	}

	return wordSimilarity
}

// TokenOverlap counts every token of a that occurs anywhere in b and divides
// by the longer token list. Repeated tokens in a are counted per occurrence.
func TokenOverlap(a, b []string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}

	present := make(map[string]bool, len(b))
	for _, tok := range b {
		present[tok] = true
	}

	common := 0
	for _, tok := range a {
		if present[tok] {
			common++
		}
	}

	return float64(common) / float64(maxLen)
}

func houseNumber(tokens []string) string {
	for _, tok := range tokens {
		if reHouseNumber.MatchString(tok) {
			return tok
		}
	}
	return ""
}
