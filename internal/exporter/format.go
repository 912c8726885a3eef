package exporter

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "barrace/internal/errors"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FrameHeaders are the columns of the long CSV format.
var FrameHeaders = []string{"frame", "timestamp", "rank", "category", "value"}

// ParseFormat accepts "csv" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", apperrors.ErrValidation("format", "unsupported export format "+strconv.Quote(s))
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// formatFloat formats v with precision decimals; negative precision keeps
// the shortest exact representation.
func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatTimestamp drops the clock when it is midnight UTC, since frame
// times derived from calendar dates usually are.
func formatTimestamp(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339Nano)
}
