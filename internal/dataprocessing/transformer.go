package dataprocessing

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/montanaflynn/stats"

	apperrors "barrace/internal/errors"
	"barrace/pkg/contracts/domain"
)

// Transformer turns raw rows into one date-ordered series per value column.
// It keeps the statistics of its last run and is not safe for concurrent use.
type Transformer struct {
	logger *slog.Logger
	stats  domain.TransformStats
}

// NewTransformer creates a transformer.
func NewTransformer(logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{logger: logger.With(slog.String("component", "transformer"))}
}

// Stats returns the statistics of the most recent Transform.
func (t *Transformer) Stats() domain.TransformStats {
	s := t.stats
	s.Errors = slices.Clone(t.stats.Errors)
	return s
}

// Transform parses dates with format, coerces values and groups them by
// category. When several rows share a date the last one in input order wins.
func (t *Transformer) Transform(rows []domain.RawRow, dateColumn string, format domain.DateFormat, valueColumns []string) (*domain.SeriesSet, error) {
	t.stats = domain.TransformStats{TotalRows: len(rows)}

	byDate := make(map[time.Time][]float64)
	for i, row := range rows {
		date, err := ParseDate(row[dateColumn], format)
		if err != nil {
			t.stats.SkippedRows++
			t.stats.Errors = domain.AddSample(t.stats.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		t.stats.ValidRows++

		values := make([]float64, len(valueColumns))
		for j, col := range valueColumns {
			raw := row[col]
			v, ok := ParseNumeric(raw)
			if !ok {
				t.stats.CoercedValues++
			}
			values[j] = v
		}
		if _, seen := byDate[date]; seen {
			t.stats.DuplicateDates++
		}
		byDate[date] = values
	}

	if len(byDate) == 0 {
		return nil, apperrors.NewInsufficientDataError(
			fmt.Sprintf("no row has a date matching %s", format))
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	set := &domain.SeriesSet{
		Categories: slices.Clone(valueColumns),
		Series:     make(map[string]*domain.CategorySeries, len(valueColumns)),
		Start:      dates[0],
		End:        dates[len(dates)-1],
	}
	all := make(stats.Float64Data, 0, len(dates)*len(valueColumns))
	for j, col := range valueColumns {
		series := &domain.CategorySeries{
			Category: col,
			Points:   make([]domain.DataPoint, len(dates)),
		}
		for k, d := range dates {
			v := byDate[d][j]
			series.Points[k] = domain.DataPoint{Category: col, Value: v, Date: d}
			all = append(all, v)
		}
		set.Series[col] = series
	}
	set.MaxValue, _ = all.Max()

	if t.stats.DuplicateDates > 0 || t.stats.SkippedRows > 0 {
		t.logger.Warn("rows merged or skipped during transform",
			slog.Int("duplicate_dates", t.stats.DuplicateDates),
			slog.Int("skipped", t.stats.SkippedRows))
	}
	return set, nil
}
