// Package normalize converts the locale-ambiguous strings, spreadsheet cells
// and half-formed URLs that upstreams emit into canonical values. All parsers
// report absence via a bool instead of an error: a missing price or date is a
// common, valid state for a deal, not a failure.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseMoney parses a price string that may use either comma or dot as the
// decimal mark and may carry thousands separators, currency symbols and
// whitespace ("1.234,56", "US $39.99", "1 189,99").
//
// Disambiguation: with only commas present the comma is the decimal mark;
// with both, whichever appears last is the decimal mark and the other is a
// thousands separator. Any dots still left beyond the last one are treated
// as thousands separators too.
func ParseMoney(raw string) (float64, bool) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if s == "" {
		return 0, false
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	switch {
	case lastComma >= 0 && lastDot < 0:
		s = strings.ReplaceAll(s, ",", ".")
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}

	var b strings.Builder
	for _, r := range s {
		if r == '.' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s = b.String()

	if strings.Count(s, ".") > 1 {
		i := strings.LastIndexByte(s, '.')
		s = strings.ReplaceAll(s[:i], ".", "") + s[i:]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
