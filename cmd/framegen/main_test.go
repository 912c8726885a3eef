package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barrace/internal/config"
	"barrace/internal/infrastructure"
	"barrace/pkg/contracts/domain"
)

const salesCSV = "Date,North,South,East\n" +
	"2024-01-01,10,20,5\n" +
	"2024-02-01,30,25,15\n" +
	"2024-03-01,35,40,50\n"

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, o options)
	}{
		{
			name: "defaults",
			args: []string{"-in", "a.csv"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, "frames.json", o.out)
				assert.Equal(t, 10.0, o.duration)
				assert.Equal(t, config.FrameBatchSize, o.batch)
				assert.Empty(t, o.columns)
			},
		},
		{
			name: "columns are trimmed",
			args: []string{"-in", "a.csv", "-columns", " North, South ,,East"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, []string{"North", "South", "East"}, o.columns)
			},
		},
		{
			name: "no header",
			args: []string{"-in", "a.csv", "-no-header"},
			check: func(t *testing.T, o options) {
				assert.True(t, o.noHeader)
			},
		},
		{
			name:    "input required",
			args:    []string{"-out", "x.csv"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"-in", "a.csv", "-speed", "2"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}

func TestRun_AnalyzePrintsMetadata(t *testing.T) {
	in := writeInput(t, salesCSV)
	var stdout bytes.Buffer

	opts := options{in: in, analyze: true}
	require.NoError(t, run(context.Background(), opts, config.Default(), &stdout, infrastructure.NewDiscardLogger()))

	var meta domain.CSVMetadata
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &meta))
	assert.Equal(t, "sales.csv", meta.Filename)
	assert.Equal(t, "Date", meta.DateColumn)
	assert.Equal(t, []string{"North", "South", "East"}, meta.ValueColumns)
}

func TestRun_JSONOutputWithDetectedColumns(t *testing.T) {
	in := writeInput(t, salesCSV)
	out := filepath.Join(t.TempDir(), "out", "frames.json")

	opts := options{in: in, out: out, duration: 2, fps: 5, top: 2, batch: 4, precision: -1}
	require.NoError(t, run(context.Background(), opts, config.Default(), io.Discard, infrastructure.NewDiscardLogger()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var series domain.ProcessedSeries
	require.NoError(t, json.Unmarshal(data, &series))
	assert.Equal(t, 10, series.TotalFrames)
	assert.Len(t, series.Frames, 10)
	assert.ElementsMatch(t, []string{"North", "South", "East"}, series.Categories)
	for _, f := range series.Frames {
		assert.Len(t, f.Items, 2)
	}
}

const headerlessCSV = "2020-01,10,20\n" +
	"2020-02,30,0\n" +
	"2020-03,5,7\n"

func TestRun_HeaderlessInput(t *testing.T) {
	readSeries := func(t *testing.T, path string) domain.ProcessedSeries {
		t.Helper()
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var series domain.ProcessedSeries
		require.NoError(t, json.Unmarshal(data, &series))
		return series
	}

	t.Run("detected", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "frames.json")
		opts := options{in: writeInput(t, headerlessCSV), out: out, duration: 3, fps: 1, top: 2}
		require.NoError(t, run(context.Background(), opts, config.Default(), io.Discard, infrastructure.NewDiscardLogger()))

		series := readSeries(t, out)
		require.Equal(t, 3, series.TotalFrames)
		assert.Equal(t, []string{"Column1", "Column2"}, series.Categories)
		assert.Equal(t, "Column2", series.Frames[0].Items[0].Category)
		assert.Equal(t, "Column1", series.Frames[1].Items[0].Category)
		assert.Equal(t, "Column2", series.Frames[2].Items[0].Category)
		assert.Equal(t, 7.0, series.Frames[2].Items[0].Value)
	})

	t.Run("explicit columns", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "frames.json")
		opts := options{
			in:         writeInput(t, headerlessCSV),
			out:        out,
			dateColumn: "Date",
			columns:    []string{"Column2"},
			noHeader:   true,
			duration:   3,
			fps:        1,
			top:        1,
		}
		require.NoError(t, run(context.Background(), opts, config.Default(), io.Discard, infrastructure.NewDiscardLogger()))

		series := readSeries(t, out)
		require.Equal(t, 3, series.TotalFrames)
		assert.Equal(t, 7.0, series.Frames[2].Items[0].Value)
	})
}

func TestRun_CSVOutputStreamsEveryFrame(t *testing.T) {
	in := writeInput(t, salesCSV)
	out := filepath.Join(t.TempDir(), "frames.csv")

	opts := options{
		in:         in,
		out:        out,
		dateColumn: "Date",
		columns:    []string{"North", "South"},
		duration:   1,
		fps:        7,
		top:        5,
		batch:      3,
		precision:  1,
	}
	require.NoError(t, run(context.Background(), opts, config.Default(), io.Discard, infrastructure.NewDiscardLogger()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// header plus two categories for each of 7 frames
	require.Len(t, lines, 1+7*2)
	assert.Equal(t, "frame,timestamp,rank,category,value", lines[0])
	assert.Equal(t, "0,2024-01-01,1,South,20.0", lines[1])
	assert.Equal(t, "0,2024-01-01,2,North,10.0", lines[2])
}

func TestRun_Errors(t *testing.T) {
	in := writeInput(t, salesCSV)
	tmp := t.TempDir()

	tests := []struct {
		name string
		opts options
	}{
		{"missing input", options{in: filepath.Join(tmp, "nope.csv"), out: filepath.Join(tmp, "a.json"), duration: 1}},
		{"unknown column", options{in: in, out: filepath.Join(tmp, "b.json"), dateColumn: "Date", columns: []string{"West"}, duration: 1}},
		{"bad output extension", options{in: in, out: filepath.Join(tmp, "c.txt"), duration: 1}},
		{"bad interpolation", options{in: in, out: filepath.Join(tmp, "d.json"), interp: "quadratic", duration: 1}},
		{"zero duration", options{in: in, out: filepath.Join(tmp, "e.json"), duration: 0}},
		{"empty input", options{in: writeInput(t, ""), out: filepath.Join(tmp, "f.json"), duration: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.opts, config.Default(), io.Discard, infrastructure.NewDiscardLogger())
			assert.Error(t, err)
		})
	}
}
