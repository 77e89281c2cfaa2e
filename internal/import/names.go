package import_pkg

import (
	"strings"
	"unicode/utf8"
)

// ParsedName is the result of splitting an owner name column
type ParsedName struct {
	FirstName string
	LastName  string
	FullName  string
	IsLLC     bool
	LLCName   *string
}

// Separators joining two or more people in one owner name, by priority
var nameSeparators = []string{"&", "and", "AND", "And"}

// ParseOwnerName splits an owner name into first and last names. Business
// names containing "llc" are kept whole. Joint owners such as "John & Jane
// Smith" share a last name. Always returns a result.
func ParseOwnerName(fullName string) ParsedName {
	name := strings.TrimSpace(fullName)
	result := ParsedName{FullName: name}

	if strings.Contains(strings.ToLower(name), "llc") {
		result.FirstName = name
		result.IsLLC = true
		llc := name
		result.LLCName = &llc
		return result
	}

	for _, sep := range nameSeparators {
		if !strings.Contains(name, sep) {
			continue
		}

		parts := splitNonEmpty(name, sep)
		switch {
		case len(parts) == 2:
			result.FirstName, result.LastName = combinePair(parts[0], parts[1])
			return result
		case len(parts) > 2:
			result.FirstName = parts[0]
			result.LastName = strings.Join(parts[1:], " & ")
			return result
		case len(parts) == 1:
			// dangling separator, e.g. "& Smith"
			result.FirstName, result.LastName = splitWords(parts[0])
			return result
		}
		break
	}

	result.FirstName, result.LastName = splitWords(name)
	return result
}

// combinePair merges two person groups into first and last names
func combinePair(p1, p2 string) (string, string) {
	w1 := strings.Fields(p1)
	w2 := strings.Fields(p2)

	switch {
	case len(w1) == 1 && len(w2) == 1:
		return p1 + " & " + p2, ""
	case len(w1) == 1 && len(w2) == 2:
		return w1[0] + " & " + w2[0], w2[1]
	case len(w1) == 2 && len(w2) == 1:
		return w1[0] + " & " + w2[0], w1[1]
	case len(w1) == 2 && len(w2) == 2:
		return w1[0] + " & " + w2[0], w1[1] + " & " + w2[1]
	default:
		return p1, p2
	}
}

// splitWords handles a single person name
func splitWords(name string) (string, string) {
	words := strings.Fields(name)

	switch len(words) {
	case 0:
		return "", ""
	case 1:
		return words[0], ""
	case 2:
		return words[0], words[1]
	}

	var initials, fullWords []string
	for _, w := range words {
		if utf8.RuneCountInString(w) == 1 {
			initials = append(initials, w)
		} else {
			fullWords = append(fullWords, w)
		}
	}

	if len(initials) > 0 && len(fullWords) > 0 {
		return initials[0] + " " + fullWords[0], strings.Join(fullWords[1:], " ")
	}
	return words[0], strings.Join(words[1:], " ")
}

func splitNonEmpty(s, sep string) []string {
	var parts []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
