package importer

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Row is one CSV record keyed by its header names.
type Row map[string]string

// IDKeys are the header spellings used for the record number across datasets.
var IDKeys = []string{"NO", "No.", "No", "no"}

// ParseFloatOrNull parses trimmed text as a decimal float64. Full-width
// digits ("３５.７") are folded to ASCII first. Blank, non-numeric, hex and
// non-finite input yields nil.
func ParseFloatOrNull(text string) *float64 {
	text = strings.TrimSpace(norm.NFKC.String(text))
	if text == "" || isHexLiteral(text) {
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// isHexLiteral reports a 0x prefix after an optional sign. strconv accepts
// hex floats ("0x1p4") but municipal data never uses them.
func isHexLiteral(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// ParseIntOrNull parses trimmed text through a float64 so "123.0" becomes 123,
// then truncates toward zero. Blank or non-numeric input yields nil.
func ParseIntOrNull(text string) *int {
	f := ParseFloatOrNull(text)
	if f == nil || *f > math.MaxInt32 || *f < math.MinInt32 {
		return nil
	}
	v := int(*f)
	return &v
}

// ResolveRowKey returns the first non-empty value among keys, in order.
// Header spellings drift between datasets ("NO", "No.", "no"), so every field
// lookup goes through a list of candidates.
func ResolveRowKey(row Row, keys ...string) string {
	for _, k := range keys {
		if v := row[k]; v != "" {
			return v
		}
	}
	return ""
}

// optional trims s and returns nil when nothing is left.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
