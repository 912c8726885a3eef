package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"barrace/pkg/contracts/domain"
)

// EngineMetrics records frame engine activity. A nil *EngineMetrics is
// valid and records nothing.
type EngineMetrics struct {
	rowsParsed        metric.Int64Counter
	rowsSkipped       metric.Int64Counter
	duplicateDates    metric.Int64Counter
	framesGenerated   metric.Int64Counter
	generationSeconds metric.Float64Histogram
	cacheHits         metric.Int64Counter
	cacheMisses       metric.Int64Counter
	memoEvictions     metric.Int64Counter
	heapBytes         metric.Int64Gauge
}

// NewEngineMetrics creates the engine instruments on meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	var err error

	if m.rowsParsed, err = meter.Int64Counter(
		"engine_rows_parsed_total",
		metric.WithDescription("CSV rows kept by the parser"),
	); err != nil {
		return nil, err
	}
	if m.rowsSkipped, err = meter.Int64Counter(
		"engine_rows_skipped_total",
		metric.WithDescription("Rows dropped by the parser or transformer"),
	); err != nil {
		return nil, err
	}
	if m.duplicateDates, err = meter.Int64Counter(
		"engine_duplicate_dates_total",
		metric.WithDescription("Rows that overwrote an earlier row with the same date"),
	); err != nil {
		return nil, err
	}
	if m.framesGenerated, err = meter.Int64Counter(
		"engine_frames_generated_total",
		metric.WithDescription("Frame snapshots produced"),
	); err != nil {
		return nil, err
	}
	if m.generationSeconds, err = meter.Float64Histogram(
		"engine_frame_generation_duration_seconds",
		metric.WithDescription("Time to generate one frame sequence"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter(
		"engine_cache_hits_total",
		metric.WithDescription("Optimized processor cache hits"),
	); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = meter.Int64Counter(
		"engine_cache_misses_total",
		metric.WithDescription("Optimized processor cache misses"),
	); err != nil {
		return nil, err
	}
	if m.memoEvictions, err = meter.Int64Counter(
		"engine_memo_evictions_total",
		metric.WithDescription("Interpolation memo clears caused by memory pressure"),
	); err != nil {
		return nil, err
	}
	if m.heapBytes, err = meter.Int64Gauge(
		"engine_heap_alloc_bytes",
		metric.WithDescription("Heap bytes in use at the last memory check"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewNoopEngineMetrics returns metrics backed by a noop meter.
func NewNoopEngineMetrics() *EngineMetrics {
	m, _ := NewEngineMetrics(noop.NewMeterProvider().Meter(MeterName))
	return m
}

// RecordParse counts kept and skipped rows.
func (m *EngineMetrics) RecordParse(ctx context.Context, stats domain.ParseStats) {
	if m == nil {
		return
	}
	stage := metric.WithAttributes(attribute.String("stage", "parse"))
	m.rowsParsed.Add(ctx, int64(stats.ValidRows))
	m.rowsSkipped.Add(ctx, int64(stats.SkippedRows), stage)
}

// RecordTransform counts skipped rows and date collisions.
func (m *EngineMetrics) RecordTransform(ctx context.Context, stats domain.TransformStats) {
	if m == nil {
		return
	}
	stage := metric.WithAttributes(attribute.String("stage", "transform"))
	m.rowsSkipped.Add(ctx, int64(stats.SkippedRows), stage)
	m.duplicateDates.Add(ctx, int64(stats.DuplicateDates))
}

// RecordFrames counts frames and their generation latency.
func (m *EngineMetrics) RecordFrames(ctx context.Context, frames int, method string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("interpolation", method))
	m.framesGenerated.Add(ctx, int64(frames), attrs)
	m.generationSeconds.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordCache counts a lookup in the named cache.
func (m *EngineMetrics) RecordCache(ctx context.Context, cache string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("cache", cache))
	if hit {
		m.cacheHits.Add(ctx, 1, attrs)
	} else {
		m.cacheMisses.Add(ctx, 1, attrs)
	}
}

// RecordMemoEviction counts a memory-pressure clear of the memo.
func (m *EngineMetrics) RecordMemoEviction(ctx context.Context, entries int) {
	if m == nil {
		return
	}
	m.memoEvictions.Add(ctx, 1, metric.WithAttributes(attribute.Int("entries", entries)))
}

// RecordHeap records the heap size observed at a memory check.
func (m *EngineMetrics) RecordHeap(ctx context.Context, bytes uint64) {
	if m == nil {
		return
	}
	m.heapBytes.Record(ctx, int64(bytes))
}
