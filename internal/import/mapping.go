package import_pkg

import (
	"fmt"
	"io"
	"strings"

	"github.com/reicrm/internal/normalize"
)

// ColumnMapping maps upload headers to importer fields. A nil target means
// the header is used as-is.
type ColumnMapping map[string]*string

// ExtractHeaders reads the header line of a CSV upload
func ExtractHeaders(r io.Reader) ([]string, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	return ParseCSVLine(lines[0]), nil
}

// SuggestColumnMapping proposes a target field for each header by comparing
// lowercase alphanumeric forms. Headers with no exact counterpart map to nil.
func SuggestColumnMapping(headers, fields []string) ColumnMapping {
	compacted := make([]string, len(fields))
	for i, f := range fields {
		compacted[i] = normalize.Compact(f)
	}

	mapping := make(ColumnMapping, len(headers))
	for _, h := range headers {
		mapping[h] = nil
		key := normalize.Compact(h)
		if key == "" {
			continue
		}
		for i, c := range compacted {
			if c == key {
				field := fields[i]
				mapping[h] = &field
				break
			}
		}
	}
	return mapping
}

// RowResolver turns positional cell values into a CSVRow keyed by mapped
// field names, falling back to the header itself
type RowResolver struct {
	keys []string
}

// NewRowResolver builds a resolver for one upload's headers
func NewRowResolver(headers []string, mapping ColumnMapping) *RowResolver {
	keys := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		keys[i] = h
		if target, ok := mapping[h]; ok && target != nil && strings.TrimSpace(*target) != "" {
			keys[i] = strings.TrimSpace(*target)
		}
	}
	return &RowResolver{keys: keys}
}

// Resolve maps one row of values. Extra values beyond the header count are
// ignored; missing trailing values leave their keys absent. When two headers
// map to the same field the first non-blank value wins.
func (r *RowResolver) Resolve(values []string) CSVRow {
	row := make(CSVRow, len(r.keys))
	for i, key := range r.keys {
		if i >= len(values) || key == "" {
			continue
		}
		v := strings.TrimSpace(values[i])
		if existing, ok := row[key]; ok && existing != "" {
			continue
		}
		row[key] = v
	}
	return row
}

// readLines reads an upload and splits it into lines, dropping carriage
// returns. The first line is always present.
func readLines(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	// a UTF-8 byte order mark would otherwise stick to the first header
	lines[0] = strings.TrimPrefix(lines[0], "\ufeff")
	return lines, nil
}
