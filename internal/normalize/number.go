// Package normalize turns raw spreadsheet rows into typed records. Every
// function here is total: malformed numbers become 0 and malformed dates nil.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// leadingNumber matches the numeric prefix of a cell, so "2時間" parses as 2.
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseNumber parses a numeric cell. Full-width digits are folded to ASCII and
// thousands separators dropped. Empty or unparseable input yields 0.
func ParseNumber(raw string) float64 {
	f, _ := parseNumber(raw)
	return f
}

// parseNumber reports ok=false for non-empty input that did not parse.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(width.Fold.String(raw))
	if s == "" {
		return 0, true
	}
	s = strings.ReplaceAll(s, ",", "")

	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
