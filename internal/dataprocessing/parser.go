package dataprocessing

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	apperrors "barrace/internal/errors"
	"barrace/pkg/contracts/domain"
)

// ParserOptions controls how the first line of input is treated.
type ParserOptions struct {
	// HasHeader is true when the first non-blank line names the columns.
	HasHeader bool
	// Headers names the columns of header-less input. When empty, names
	// come from SyntheticColumnNames.
	Headers []string
}

// Parser turns CSV text into raw rows keyed by column name. A Parser keeps
// the statistics of its last run and is not safe for concurrent use.
type Parser struct {
	opts   ParserOptions
	logger *slog.Logger
	stats  domain.ParseStats
}

// NewParser creates a parser.
func NewParser(opts ParserOptions, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		opts:   opts,
		logger: logger.With(slog.String("component", "csv_parser")),
	}
}

// Stats returns the statistics of the most recent Parse or ParseStream.
func (p *Parser) Stats() domain.ParseStats {
	s := p.stats
	s.Errors = slices.Clone(p.stats.Errors)
	return s
}

// Parse reads every row of content. Rows with the wrong number of fields or
// an empty date are dropped and counted.
func (p *Parser) Parse(content, dateColumn string, valueColumns []string) ([]domain.RawRow, error) {
	return p.ParseStream(content, dateColumn, valueColumns, 0, nil)
}

// BatchFunc observes streaming progress after each batch. batch is 0-based;
// rows is the number of rows kept so far. Returning an error aborts parsing.
type BatchFunc func(batch, rows int) error

// ParseStream parses content in line batches of batchSize, calling onBatch
// after each one. batchSize <= 0 reads everything in one batch.
func (p *Parser) ParseStream(content, dateColumn string, valueColumns []string, batchSize int, onBatch BatchFunc) ([]domain.RawRow, error) {
	p.stats = domain.ParseStats{}

	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewEmptyInputError()
	}

	lines := NewLineBatcher(content, batchSize)
	headers, pending, err := p.headers(lines)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(headers, dateColumn, valueColumns); err != nil {
		return nil, err
	}

	var rows []domain.RawRow
	handle := func(l Line) {
		p.stats.TotalRows++
		row, reason := p.parseLine(l, headers, dateColumn)
		if reason != "" {
			p.stats.SkippedRows++
			p.stats.Errors = domain.AddSample(p.stats.Errors, reason)
			return
		}
		p.stats.ValidRows++
		rows = append(rows, row)
	}

	if pending != nil {
		handle(*pending)
	}
	for batch := 0; ; batch++ {
		chunk, ok := lines.Next()
		if !ok {
			break
		}
		for _, l := range chunk {
			handle(l)
		}
		if onBatch != nil {
			if err := onBatch(batch, len(rows)); err != nil {
				return nil, err
			}
		}
	}

	if p.stats.TotalRows == 0 {
		return nil, apperrors.NewInsufficientDataError("CSV has a header but no data rows")
	}
	if len(rows) == 0 {
		return nil, apperrors.NewInsufficientDataError(
			fmt.Sprintf("all %d data rows were skipped", p.stats.TotalRows))
	}

	if p.stats.SkippedRows > 0 {
		p.logger.Warn("CSV rows skipped",
			slog.Int("total", p.stats.TotalRows),
			slog.Int("skipped", p.stats.SkippedRows))
	}
	return rows, nil
}

// headers resolves column names. For header-less input the first data line
// is handed back as pending so it is parsed as a row.
func (p *Parser) headers(lines *LineBatcher) ([]string, *Line, error) {
	first, ok := lines.NextLine()
	if !ok {
		return nil, nil, apperrors.NewEmptyInputError()
	}
	if p.opts.HasHeader {
		return SplitLine(first.Text), nil, nil
	}
	if len(p.opts.Headers) > 0 {
		return slices.Clone(p.opts.Headers), &first, nil
	}
	return SyntheticColumnNames(len(SplitLine(first.Text))), &first, nil
}

func (p *Parser) parseLine(l Line, headers []string, dateColumn string) (domain.RawRow, string) {
	fields := SplitLine(l.Text)
	if len(fields) != len(headers) {
		return nil, fmt.Sprintf("line %d: expected %d fields, got %d", l.No, len(headers), len(fields))
	}
	row := toRawRow(headers, fields)
	if row[dateColumn] == "" {
		return nil, fmt.Sprintf("line %d: empty date in column %q", l.No, dateColumn)
	}
	return row, ""
}

func requireColumns(headers []string, dateColumn string, valueColumns []string) error {
	if !slices.Contains(headers, dateColumn) {
		return apperrors.NewMissingColumnError(dateColumn, headers)
	}
	for _, c := range valueColumns {
		if !slices.Contains(headers, c) {
			return apperrors.NewMissingColumnError(c, headers)
		}
	}
	return nil
}
