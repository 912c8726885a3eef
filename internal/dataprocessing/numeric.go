package dataprocessing

import (
	"math"
	"strconv"
	"strings"
)

// numericNoise is stripped before a cell is parsed as a number.
var numericNoise = strings.NewReplacer(
	",", "",
	" ", "",
	"\u00a0", "",
	"$", "",
	"€", "",
	"£", "",
	"¥", "",
	"₹", "",
	"%", "",
)

// ParseNumeric parses a cell as a finite number after stripping thousands
// separators, currency symbols and percent signs.
func ParseNumeric(raw string) (float64, bool) {
	s := numericNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// IsNumeric reports whether ParseNumeric accepts raw.
func IsNumeric(raw string) bool {
	_, ok := ParseNumeric(raw)
	return ok
}

// CoerceNumeric is ParseNumeric with 0 for anything unparseable. Values are
// not clamped; negatives and zero pass through.
func CoerceNumeric(raw string) float64 {
	v, _ := ParseNumeric(raw)
	return v
}
