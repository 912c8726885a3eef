package domain

import (
	"fmt"
	"strings"
)

// RawRow maps a column name to the raw string found in that cell.
type RawRow map[string]string

// DateFormat is one of the closed set of date layouts the engine understands.
type DateFormat string

const (
	DateFormatISO       DateFormat = "YYYY-MM-DD"
	DateFormatYearMonth DateFormat = "YYYY-MM"
	DateFormatYear      DateFormat = "YYYY"
	DateFormatUS        DateFormat = "MM/DD/YYYY"
	DateFormatEU        DateFormat = "DD/MM/YYYY"
	DateFormatMonthYear DateFormat = "MM/YYYY"
)

// DefaultDateFormat is used when nothing in the sample matches a known layout.
const DefaultDateFormat = DateFormatISO

// SupportedDateFormats lists every format in the order the analyzer tries them.
var SupportedDateFormats = []DateFormat{
	DateFormatISO,
	DateFormatYearMonth,
	DateFormatUS,
	DateFormatMonthYear,
	DateFormatYear,
	DateFormatEU,
}

// ParseDateFormat validates a user supplied format string.
func ParseDateFormat(s string) (DateFormat, error) {
	candidate := DateFormat(strings.ToUpper(strings.TrimSpace(s)))
	for _, f := range SupportedDateFormats {
		if f == candidate {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported date format %q", s)
}

// ValueSummary describes the sampled distribution of one value column.
type ValueSummary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// CSVMetadata is the structural summary produced by the analyzer.
type CSVMetadata struct {
	Filename       string         `json:"filename,omitempty"`
	Columns        []string       `json:"columns"`
	DateColumn     string         `json:"date_column"`
	ValueColumns   []string       `json:"value_columns"`
	RowCount       int            `json:"row_count"`
	Preview        []RawRow       `json:"preview"`
	DateFormat     DateFormat     `json:"date_format"`
	HasHeader      bool           `json:"has_header"`
	ValueSummaries []ValueSummary `json:"value_summaries,omitempty"`
}
