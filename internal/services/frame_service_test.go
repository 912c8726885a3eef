package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"barrace/internal/config"
	apperrors "barrace/internal/errors"
	"barrace/internal/infrastructure"
	"barrace/pkg/contracts/domain"
)

const raceCSV = "Date,A,B\n2020-01-01,10,20\n2020-01-02,30,0\n"

func newTestFrameService(t *testing.T, mutate func(*config.Config), opts ...FrameServiceOption) *FrameService {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	opts = append([]FrameServiceOption{WithEngineMetrics(infrastructure.NewNoopEngineMetrics())}, opts...)
	return NewFrameService(cfg, infrastructure.NewDiscardLogger(), opts...)
}

func framesRequest(duration float64) FramesRequest {
	return FramesRequest{
		CSV: raceCSV,
		Config: config.EngineOptions{
			DateColumn:   "Date",
			ValueColumns: []string{"A", "B"},
			FPS:          10,
		},
		DurationSeconds: duration,
	}
}

func TestFrameService_Analyze(t *testing.T) {
	s := newTestFrameService(t, nil)

	meta, err := s.Analyze(context.Background(), raceCSV)
	require.NoError(t, err)
	assert.Equal(t, "Date", meta.DateColumn)
	assert.Equal(t, []string{"A", "B"}, meta.ValueColumns)
	assert.Equal(t, 2, meta.RowCount)

	_, err = s.Analyze(context.Background(), "")
	assert.Error(t, err)
}

func TestFrameService_Generate(t *testing.T) {
	for _, cached := range []bool{true, false} {
		t.Run(map[bool]string{true: "cached", false: "uncached"}[cached], func(t *testing.T) {
			s := newTestFrameService(t, func(c *config.Config) { c.Cache.Enabled = cached })

			out, err := s.Generate(context.Background(), framesRequest(1))
			require.NoError(t, err)
			assert.Equal(t, 10, out.TotalFrames)
			assert.Equal(t, "B", out.Frames[0].Items[0].Category)
			assert.Equal(t, "A", out.Frames[9].Items[0].Category)
			// Defaults fill what the request leaves unset.
			assert.Equal(t, config.DefaultTopN, out.TopN)
			assert.Equal(t, "linear", out.Interpolation)

			report := s.Diagnostics(context.Background())
			assert.Equal(t, cached, report.CacheEnabled)
			require.NotNil(t, report.Last)
			assert.Equal(t, 2, report.Last.Diagnostics.Parse.ValidRows)
			if cached {
				assert.Len(t, report.Processors, 1)
			} else {
				assert.Empty(t, report.Processors)
			}
		})
	}
}

func TestFrameService_ReusesProcessors(t *testing.T) {
	ctx := context.Background()
	s := newTestFrameService(t, nil)

	first, err := s.Generate(ctx, framesRequest(1))
	require.NoError(t, err)
	second, err := s.Generate(ctx, framesRequest(1))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, s.ProcessorCount())

	other := framesRequest(1)
	other.Config.TopN = 1
	_, err = s.Generate(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 2, s.ProcessorCount())

	report := s.Diagnostics(ctx)
	require.NotNil(t, report.Last)
	assert.Equal(t, 1, report.Last.Config.TopN)

	var hits int64
	for _, p := range report.Processors {
		hits += p.Cache.FrameHits
	}
	assert.Equal(t, int64(1), hits)
}

func TestFrameService_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := newTestFrameService(t, func(c *config.Config) { c.Cache.MaxCachedProcessor = 2 })

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for _, topN := range []int{1, 2, 1, 3} {
		req := framesRequest(1)
		req.Config.TopN = topN
		_, err := s.Generate(ctx, req)
		require.NoError(t, err)
	}

	report := s.Diagnostics(ctx)
	require.Len(t, report.Processors, 2)
	var topNs []int
	for _, p := range report.Processors {
		topNs = append(topNs, p.Config.TopN)
	}
	assert.ElementsMatch(t, []int{1, 3}, topNs)
	assert.Equal(t, 3, report.Processors[0].Config.TopN)
}

func TestFrameService_Errors(t *testing.T) {
	ctx := context.Background()
	s := newTestFrameService(t, nil)

	tests := []struct {
		name   string
		mutate func(*FramesRequest)
		want   error
	}{
		{
			name:   "invalid duration",
			mutate: func(r *FramesRequest) { r.DurationSeconds = -1 },
			want:   apperrors.ErrInvalidDuration,
		},
		{
			name:   "too many frames",
			mutate: func(r *FramesRequest) { r.DurationSeconds = 1e300 },
			want:   apperrors.ErrInvalidDuration,
		},
		{
			name:   "header expected",
			mutate: func(r *FramesRequest) { r.CSV = "2020-01-01,10,20\n2020-01-02,30,0\n" },
			want:   apperrors.ErrMissingColumn,
		},
		{
			name:   "invalid fps",
			mutate: func(r *FramesRequest) { r.Config.FPS = 500 },
			want:   apperrors.ErrInvalidConfig,
		},
		{
			name:   "unknown interpolation",
			mutate: func(r *FramesRequest) { r.Config.Interpolation = "quadratic" },
			want:   apperrors.ErrInvalidConfig,
		},
		{
			name:   "missing column",
			mutate: func(r *FramesRequest) { r.Config.ValueColumns = []string{"A", "Z"} },
			want:   apperrors.ErrMissingColumn,
		},
		{
			name:   "empty csv",
			mutate: func(r *FramesRequest) { r.CSV = "  \n" },
			want:   apperrors.ErrEmptyInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := framesRequest(1)
			tt.mutate(&req)
			_, err := s.Generate(ctx, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFrameService_Stream(t *testing.T) {
	ctx := context.Background()
	s := newTestFrameService(t, nil)

	var sizes []int
	out, err := s.Stream(ctx, framesRequest(2.5), 8, func(batch []domain.FrameSnapshot) error {
		sizes = append(sizes, len(batch))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 25, out.TotalFrames)
	assert.Equal(t, []int{8, 8, 8, 1}, sizes)

	stop := errors.New("client gone")
	calls := 0
	_, err = s.Stream(ctx, framesRequest(2.5), 8, func([]domain.FrameSnapshot) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestFrameService_StreamDeliversBeforeCompletion(t *testing.T) {
	ctx := context.Background()
	s := newTestFrameService(t, func(c *config.Config) { c.Cache.Enabled = false })

	var seenBeforeDone []bool
	out, err := s.Stream(ctx, framesRequest(2.5), 10, func(batch []domain.FrameSnapshot) error {
		// Uncached runs record their diagnostics once generation returns.
		seenBeforeDone = append(seenBeforeDone, s.Diagnostics(ctx).Last == nil)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 25, out.TotalFrames)
	assert.Equal(t, []bool{true, true, true}, seenBeforeDone)
	assert.NotNil(t, s.Diagnostics(ctx).Last)
}

func TestFrameService_HeaderlessInput(t *testing.T) {
	noHeader := false
	req := FramesRequest{
		CSV: "2020-01,10,20\n2020-02,30,0\n2020-03,5,7\n",
		Config: config.EngineOptions{
			DateColumn:   "Date",
			ValueColumns: []string{"Column1", "Column2"},
			FPS:          1,
			HasHeader:    &noHeader,
		},
		DurationSeconds: 3,
	}

	for _, cached := range []bool{true, false} {
		t.Run(map[bool]string{true: "cached", false: "uncached"}[cached], func(t *testing.T) {
			s := newTestFrameService(t, func(c *config.Config) { c.Cache.Enabled = cached })

			out, err := s.Generate(context.Background(), req)
			require.NoError(t, err)
			require.Equal(t, 3, out.TotalFrames)
			assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), out.DateRange.Start)
			assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), out.DateRange.End)
			assert.Equal(t, "Column2", out.Frames[0].Items[0].Category)
			assert.Equal(t, 7.0, out.Frames[2].Items[0].Value)
		})
	}
}

func TestFrameService_DetectsOmittedDateFormat(t *testing.T) {
	s := newTestFrameService(t, nil)
	req := FramesRequest{
		CSV: "Month,A,B\n03/2021,1,2\n05/2021,4,3\n",
		Config: config.EngineOptions{
			DateColumn:   "Month",
			ValueColumns: []string{"A", "B"},
			FPS:          2,
		},
		DurationSeconds: 1,
	}

	out, err := s.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), out.DateRange.Start)
	assert.Equal(t, time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC), out.DateRange.End)

	report := s.Diagnostics(context.Background())
	require.NotNil(t, report.Last)
	assert.Equal(t, domain.DateFormatMonthYear, report.Last.Config.DateFormat)
}

func TestFrameService_ClearCaches(t *testing.T) {
	ctx := context.Background()
	s := newTestFrameService(t, nil)

	_, err := s.Generate(ctx, framesRequest(1))
	require.NoError(t, err)
	assert.Equal(t, 1, s.ClearCaches(ctx))
	assert.Zero(t, s.ProcessorCount())
	assert.Nil(t, s.Diagnostics(ctx).Last)
	assert.Zero(t, s.ClearCaches(ctx))
}

func TestFrameService_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	s := newTestFrameService(t, nil, WithTracer(provider.Tracer("test")))

	_, err := s.Generate(context.Background(), framesRequest(1))
	require.NoError(t, err)
	bad := framesRequest(1)
	bad.CSV = "Date,A\n"
	_, err = s.Generate(context.Background(), bad)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "engine.generate", spans[0].Name())
	assert.Equal(t, "engine.generate", spans[1].Name())
	assert.Len(t, spans[1].Events(), 1)
}
