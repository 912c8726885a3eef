package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "barrace/internal/errors"
	"barrace/pkg/contracts/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTransformer_Transform(t *testing.T) {
	rows := []domain.RawRow{
		{"Date": "2020-01-03", "A": "30", "B": "5"},
		{"Date": "2020-01-01", "A": "10", "B": "x"},
		{"Date": "2020-01-02", "A": "", "B": "-4"},
	}

	tr := NewTransformer(nil)
	set, err := tr.Transform(rows, "Date", domain.DateFormatISO, []string{"A", "B"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, set.Categories)
	assert.True(t, set.Start.Equal(day(2020, 1, 1)))
	assert.True(t, set.End.Equal(day(2020, 1, 3)))
	assert.InDelta(t, 30, set.MaxValue, 1e-9)

	a := set.Get("A")
	require.NotNil(t, a)
	require.Equal(t, 3, a.Len())
	assert.Equal(t, []float64{10, 0, 30}, values(a))
	assert.Equal(t, []float64{0, -4, 5}, values(set.Get("B")))

	for i := 1; i < a.Len(); i++ {
		assert.True(t, a.Points[i-1].Date.Before(a.Points[i].Date))
	}

	stats := tr.Stats()
	assert.Equal(t, 3, stats.TotalRows)
	assert.Equal(t, 3, stats.ValidRows)
	assert.Equal(t, 2, stats.CoercedValues)
}

func TestTransformer_LastRowWinsOnSameDate(t *testing.T) {
	rows := []domain.RawRow{
		{"Date": "2020-01-01", "A": "100"},
		{"Date": "2020-01-01", "A": "150"},
	}

	tr := NewTransformer(nil)
	set, err := tr.Transform(rows, "Date", domain.DateFormatISO, []string{"A"})
	require.NoError(t, err)

	a := set.Get("A")
	require.Equal(t, 1, a.Len())
	assert.Equal(t, 150.0, a.First().Value)
	assert.Equal(t, 1, tr.Stats().DuplicateDates)
}

func TestTransformer_SkipsUnparseableDates(t *testing.T) {
	rows := []domain.RawRow{
		{"Date": "2020-01-01", "A": "1"},
		{"Date": "01/02/2020", "A": "2"},
		{"Date": "soon", "A": "3"},
	}

	tr := NewTransformer(nil)
	set, err := tr.Transform(rows, "Date", domain.DateFormatISO, []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, 1, set.Get("A").Len())

	stats := tr.Stats()
	assert.Equal(t, 2, stats.SkippedRows)
	assert.Len(t, stats.Errors, 2)
}

func TestTransformer_NoValidRows(t *testing.T) {
	rows := []domain.RawRow{{"Date": "nope", "A": "1"}}

	_, err := NewTransformer(nil).Transform(rows, "Date", domain.DateFormatISO, []string{"A"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientData)

	_, err = NewTransformer(nil).Transform(nil, "Date", domain.DateFormatISO, []string{"A"})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientData)
}

func TestTransformer_FormatsYieldSameInstant(t *testing.T) {
	tests := []struct {
		value  string
		format domain.DateFormat
	}{
		{"2021-06-01", domain.DateFormatISO},
		{"2021-06", domain.DateFormatYearMonth},
		{"06/01/2021", domain.DateFormatUS},
		{"01/06/2021", domain.DateFormatEU},
		{"06/2021", domain.DateFormatMonthYear},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			set, err := NewTransformer(nil).Transform(
				[]domain.RawRow{{"D": tt.value, "V": "1"}}, "D", tt.format, []string{"V"})
			require.NoError(t, err)
			assert.True(t, set.Start.Equal(day(2021, 6, 1)))
		})
	}
}

func values(s *domain.CategorySeries) []float64 {
	out := make([]float64, s.Len())
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}
