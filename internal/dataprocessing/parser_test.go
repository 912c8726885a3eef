package dataprocessing

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "barrace/internal/errors"
	"barrace/pkg/contracts/domain"
)

func TestParser_Parse(t *testing.T) {
	content := "Date,A,B\n2020-01-01,1,2\n\n2020-01-02,\"3\",4\n"

	p := NewParser(ParserOptions{HasHeader: true}, nil)
	rows, err := p.Parse(content, "Date", []string{"A", "B"})
	require.NoError(t, err)

	assert.Equal(t, []domain.RawRow{
		{"Date": "2020-01-01", "A": "1", "B": "2"},
		{"Date": "2020-01-02", "A": "3", "B": "4"},
	}, rows)
	assert.Equal(t, domain.ParseStats{TotalRows: 2, ValidRows: 2}, p.Stats())
}

func TestParser_SkipsMalformedRows(t *testing.T) {
	content := "Date,A\n" +
		"2020-01-01,1\n" +
		"2020-01-02\n" +
		",5\n" +
		"2020-01-03,3\n"

	p := NewParser(ParserOptions{HasHeader: true}, nil)
	rows, err := p.Parse(content, "Date", []string{"A"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	stats := p.Stats()
	assert.Equal(t, 4, stats.TotalRows)
	assert.Equal(t, 2, stats.ValidRows)
	assert.Equal(t, 2, stats.SkippedRows)
	require.Len(t, stats.Errors, 2)
	assert.Contains(t, stats.Errors[0], "line 3")
	assert.Contains(t, stats.Errors[0], "expected 2 fields, got 1")
	assert.Contains(t, stats.Errors[1], "empty date")
}

func TestParser_ErrorSamplesAreBounded(t *testing.T) {
	var b strings.Builder
	b.WriteString("Date,A\n")
	for i := 0; i < 15; i++ {
		b.WriteString("bad\n")
	}
	b.WriteString("2020-01-01,1\n")

	p := NewParser(ParserOptions{HasHeader: true}, nil)
	_, err := p.Parse(b.String(), "Date", []string{"A"})
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, 15, stats.SkippedRows)
	assert.Len(t, stats.Errors, domain.MaxErrorSamples)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		valueColumns []string
		want         error
	}{
		{"empty", "", []string{"A"}, apperrors.ErrEmptyInput},
		{"whitespace", "  \n\t\n", []string{"A"}, apperrors.ErrEmptyInput},
		{"header only", "Date,A\n", []string{"A"}, apperrors.ErrInsufficientData},
		{"every row skipped", "Date,A\n2020-01-01\n,3\n", []string{"A"}, apperrors.ErrInsufficientData},
		{"missing value column", "Date,A\n2020-01-01,1\n", []string{"Z"}, apperrors.ErrMissingColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(ParserOptions{HasHeader: true}, nil).Parse(tt.content, "Date", tt.valueColumns)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("missing date column", func(t *testing.T) {
		_, err := NewParser(ParserOptions{HasHeader: true}, nil).Parse("When,A\n2020,1\n", "Date", []string{"A"})
		assert.ErrorIs(t, err, apperrors.ErrMissingColumn)
	})
}

func TestParser_HeaderlessInput(t *testing.T) {
	content := "2020-01-01,5\n2020-01-02,6\n"

	t.Run("synthetic names", func(t *testing.T) {
		p := NewParser(ParserOptions{HasHeader: false}, nil)
		rows, err := p.Parse(content, "Date", []string{"Column1"})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "5", rows[0]["Column1"])
	})

	t.Run("explicit names", func(t *testing.T) {
		p := NewParser(ParserOptions{Headers: []string{"Day", "Score"}}, nil)
		rows, err := p.Parse(content, "Day", []string{"Score"})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, domain.RawRow{"Day": "2020-01-02", "Score": "6"}, rows[1])
	})
}

func TestParser_ParseStream(t *testing.T) {
	var b strings.Builder
	b.WriteString("Date,A\n")
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&b, "2020-01-%02d,%d\n", i, i)
	}

	t.Run("reports each batch", func(t *testing.T) {
		var seen []int
		p := NewParser(ParserOptions{HasHeader: true}, nil)
		rows, err := p.ParseStream(b.String(), "Date", []string{"A"}, 10, func(batch, rows int) error {
			assert.Equal(t, len(seen), batch)
			seen = append(seen, rows)
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, rows, 25)
		assert.Equal(t, []int{10, 20, 25}, seen)
	})

	t.Run("callback aborts", func(t *testing.T) {
		stop := errors.New("stop")
		p := NewParser(ParserOptions{HasHeader: true}, nil)
		_, err := p.ParseStream(b.String(), "Date", []string{"A"}, 10, func(int, int) error {
			return stop
		})
		assert.ErrorIs(t, err, stop)
	})

	t.Run("same rows as Parse", func(t *testing.T) {
		streamed, err := NewParser(ParserOptions{HasHeader: true}, nil).ParseStream(b.String(), "Date", []string{"A"}, 7, nil)
		require.NoError(t, err)
		whole, err := NewParser(ParserOptions{HasHeader: true}, nil).Parse(b.String(), "Date", []string{"A"})
		require.NoError(t, err)
		assert.Equal(t, whole, streamed)
	})
}
