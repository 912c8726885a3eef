package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"barrace/pkg/contracts/domain"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestEngineMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewEngineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordParse(ctx, domain.ParseStats{TotalRows: 5, ValidRows: 4, SkippedRows: 1})
	m.RecordTransform(ctx, domain.TransformStats{SkippedRows: 2, DuplicateDates: 3})
	m.RecordFrames(ctx, 30, "linear", time.Millisecond)
	m.RecordCache(ctx, "frames", true)
	m.RecordCache(ctx, "frames", false)
	m.RecordCache(ctx, "series", false)
	m.RecordMemoEviction(ctx, 100)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(4), sums["engine_rows_parsed_total"])
	assert.Equal(t, int64(3), sums["engine_rows_skipped_total"])
	assert.Equal(t, int64(3), sums["engine_duplicate_dates_total"])
	assert.Equal(t, int64(30), sums["engine_frames_generated_total"])
	assert.Equal(t, int64(1), sums["engine_cache_hits_total"])
	assert.Equal(t, int64(2), sums["engine_cache_misses_total"])
	assert.Equal(t, int64(1), sums["engine_memo_evictions_total"])
}

func TestEngineMetrics_NilAndNoop(t *testing.T) {
	ctx := context.Background()

	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.RecordParse(ctx, domain.ParseStats{})
		m.RecordFrames(ctx, 1, "step", 0)
		m.RecordCache(ctx, "frames", true)
		m.RecordHeap(ctx, 1)
	})

	noop := NewNoopEngineMetrics()
	require.NotNil(t, noop)
	assert.NotPanics(t, func() {
		noop.RecordTransform(ctx, domain.TransformStats{})
		noop.RecordMemoEviction(ctx, 3)
	})
}

func TestMemoryMonitor(t *testing.T) {
	m := NewMemoryMonitor(1)
	assert.Equal(t, uint64(1<<20), m.CeilingBytes)

	m.Usage = func() uint64 { return 2 << 20 }
	used, over := m.Check()
	assert.Equal(t, uint64(2<<20), used)
	assert.True(t, over)

	m.Usage = func() uint64 { return 512 }
	_, over = m.Check()
	assert.False(t, over)

	disabled := NewMemoryMonitor(0)
	disabled.Usage = func() uint64 { return 1 << 40 }
	_, over = disabled.Check()
	assert.False(t, over)

	var nilMonitor *MemoryMonitor
	_, over = nilMonitor.Check()
	assert.False(t, over)

	assert.Greater(t, HeapAlloc(), uint64(0))
}
