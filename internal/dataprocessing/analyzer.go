package dataprocessing

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/montanaflynn/stats"

	"barrace/internal/config"
	apperrors "barrace/internal/errors"
	"barrace/pkg/contracts/domain"
)

// dateKeywords mark a column as the date column by name. Matching is a
// case-insensitive substring test.
var dateKeywords = []string{
	"date", "time", "year", "month", "day", "period", "week", "quarter",
	"fecha", "año", "ano", "mes", "dia", "día",
	"datum", "jahr", "monat", "tag", "zeit",
	"mois", "jour", "année", "annee",
	"data", "anno", "mese", "giorno",
	"tarih", "yil", "yıl", "ay",
}

// Analyzer infers the structure of raw CSV text.
type Analyzer struct {
	logger      *slog.Logger
	previewRows int
	sampleRows  int
	numericRate float64
}

// NewAnalyzer creates an analyzer with the default preview and sample sizes.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		logger:      logger.With(slog.String("component", "csv_analyzer")),
		previewRows: config.PreviewRows,
		sampleRows:  config.AnalyzerSample,
		numericRate: config.NumericColumnRate,
	}
}

// Analyze detects the header, date column, value columns and date format
// of content.
func (a *Analyzer) Analyze(content string) (*domain.CSVMetadata, error) {
	lines := usableLines(content)
	if len(lines) == 0 {
		return nil, apperrors.NewMalformedInputError("CSV content has no usable lines")
	}

	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = SplitLine(l.Text)
	}

	hasHeader := detectHeader(rows)
	var columns []string
	data := rows
	if hasHeader {
		columns = rows[0]
		data = rows[1:]
	} else {
		columns = SyntheticColumnNames(len(rows[0]))
	}

	sample := data
	if len(sample) > a.sampleRows {
		sample = sample[:a.sampleRows]
	}

	dateIdx := detectDateColumn(columns, sample)
	dateSamples := columnValues(sample, dateIdx)

	var valueColumns []string
	for i, name := range columns {
		if i == dateIdx {
			continue
		}
		if a.isValueColumn(columnValues(sample, i)) {
			valueColumns = append(valueColumns, name)
		}
	}
	if len(valueColumns) == 0 {
		return nil, apperrors.NewMalformedInputError("no column holds mostly numeric values")
	}

	format := EstimateDateFormat(dateSamples)

	meta := &domain.CSVMetadata{
		Columns:        columns,
		DateColumn:     columns[dateIdx],
		ValueColumns:   valueColumns,
		RowCount:       len(data),
		Preview:        a.preview(columns, data),
		DateFormat:     format,
		HasHeader:      hasHeader,
		ValueSummaries: summarize(columns, valueColumns, sample),
	}

	a.logger.Debug("CSV analyzed",
		slog.Bool("has_header", hasHeader),
		slog.String("date_column", meta.DateColumn),
		slog.String("date_format", string(format)),
		slog.Int("value_columns", len(valueColumns)),
		slog.Int("rows", meta.RowCount))

	return meta, nil
}

// DetectDateFormat estimates the format of dateColumn from the first
// sampled rows of content. Unknown columns give DefaultDateFormat.
func DetectDateFormat(content, dateColumn string, hasHeader bool) domain.DateFormat {
	lines := NewLineBatcher(content, config.AnalyzerSample+1)
	first, ok := lines.NextLine()
	if !ok {
		return domain.DefaultDateFormat
	}
	fields := SplitLine(first.Text)
	columns := fields
	var sample [][]string
	if !hasHeader {
		columns = SyntheticColumnNames(len(fields))
		sample = append(sample, fields)
	}
	idx := slices.Index(columns, dateColumn)
	if idx < 0 {
		return domain.DefaultDateFormat
	}
	for len(sample) < config.AnalyzerSample {
		l, ok := lines.NextLine()
		if !ok {
			break
		}
		sample = append(sample, SplitLine(l.Text))
	}
	return EstimateDateFormat(columnValues(sample, idx))
}

// SyntheticColumnNames names header-less columns Date, Column1, Column2...
func SyntheticColumnNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		if i == 0 {
			names[i] = "Date"
			continue
		}
		names[i] = fmt.Sprintf("Column%d", i)
	}
	return names
}

// detectHeader treats the first row as a header when none of its cells is
// numeric and the second row has at least one numeric cell.
func detectHeader(rows [][]string) bool {
	if len(rows) < 2 {
		return false
	}
	for _, cell := range rows[0] {
		if IsNumeric(cell) {
			return false
		}
	}
	for _, cell := range rows[1] {
		if IsNumeric(cell) {
			return true
		}
	}
	return false
}

// detectDateColumn prefers a keyword match on the column name, then a column
// with a sampled value shaped like a date, then the first column.
func detectDateColumn(columns []string, sample [][]string) int {
	for i, name := range columns {
		if hasDateKeyword(name) {
			return i
		}
	}
	// Bare four digit years also look like ordinary numbers, so they only
	// decide when no column carries a more specific date shape.
	bareYearIdx := -1
	for i := range columns {
		for _, v := range columnValues(sample, i) {
			f, ok := MatchDateFormat(v)
			if !ok {
				continue
			}
			if f != domain.DateFormatYear {
				return i
			}
			if bareYearIdx < 0 {
				bareYearIdx = i
			}
		}
	}
	if bareYearIdx >= 0 {
		return bareYearIdx
	}
	return 0
}

func hasDateKeyword(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return false
	}
	for _, kw := range dateKeywords {
		// Short keywords only count as whole names to avoid hits like "mayday".
		if len([]rune(kw)) <= 3 {
			if lower == kw {
				return true
			}
			continue
		}
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (a *Analyzer) isValueColumn(values []string) bool {
	if len(values) == 0 {
		return false
	}
	numeric := 0
	for _, v := range values {
		if IsNumeric(v) {
			numeric++
		}
	}
	return float64(numeric)/float64(len(values)) >= a.numericRate
}

func (a *Analyzer) preview(columns []string, data [][]string) []domain.RawRow {
	n := min(len(data), a.previewRows)
	out := make([]domain.RawRow, 0, n)
	for _, fields := range data[:n] {
		out = append(out, toRawRow(columns, fields))
	}
	return out
}

// columnValues returns the non-empty values of column idx across rows.
func columnValues(rows [][]string, idx int) []string {
	var values []string
	for _, r := range rows {
		if idx < len(r) && r[idx] != "" {
			values = append(values, r[idx])
		}
	}
	return values
}

func summarize(columns, valueColumns []string, sample [][]string) []domain.ValueSummary {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	summaries := make([]domain.ValueSummary, 0, len(valueColumns))
	for _, col := range valueColumns {
		var data stats.Float64Data
		for _, v := range columnValues(sample, index[col]) {
			if f, ok := ParseNumeric(v); ok {
				data = append(data, f)
			}
		}
		s := domain.ValueSummary{Column: col, Count: data.Len()}
		if data.Len() > 0 {
			s.Min, _ = data.Min()
			s.Max, _ = data.Max()
			s.Mean, _ = data.Mean()
			s.Median, _ = data.Median()
		}
		summaries = append(summaries, s)
	}
	return summaries
}

func toRawRow(columns, fields []string) domain.RawRow {
	row := make(domain.RawRow, len(columns))
	for i, c := range columns {
		if i < len(fields) {
			row[c] = fields[i]
		} else {
			row[c] = ""
		}
	}
	return row
}
