package services

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"barrace/internal/config"
	"barrace/internal/dataprocessing"
	"barrace/internal/frames"
	"barrace/internal/infrastructure"
	"barrace/internal/optimized"
	"barrace/pkg/contracts/domain"
)

// FramesRequest asks for the frames of one CSV document.
type FramesRequest struct {
	CSV             string               `json:"csv" validate:"required"`
	Config          config.EngineOptions `json:"config"`
	DurationSeconds float64              `json:"duration_seconds" validate:"required,gt=0"`
}

// ProcessorReport describes one cached processor.
type ProcessorReport struct {
	Key         string               `json:"key"`
	Config      config.EngineConfig  `json:"config"`
	LastUsed    time.Time            `json:"last_used"`
	Diagnostics domain.Diagnostics   `json:"diagnostics"`
	Cache       optimized.CacheStats `json:"cache"`
}

// DiagnosticsReport is the state of the service.
type DiagnosticsReport struct {
	CacheEnabled bool              `json:"cache_enabled"`
	Last         *ProcessorReport  `json:"last,omitempty"`
	Processors   []ProcessorReport `json:"processors"`
	HeapBytes    uint64            `json:"heap_bytes"`
}

type processorEntry struct {
	processor *optimized.Processor
	lastUsed  time.Time
}

// FrameService turns CSV documents into frame sequences.
type FrameService struct {
	mu         sync.Mutex
	processors map[string]*processorEntry
	lastKey    string
	// lastDiagnostics is kept for uncached runs
	lastDiagnostics *ProcessorReport

	cache    config.CacheConfig
	defaults config.EngineDefaults
	analyzer *dataprocessing.Analyzer
	metrics  *infrastructure.EngineMetrics
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// FrameServiceOption customizes a FrameService
type FrameServiceOption func(*FrameService)

// WithTracer sets the tracer used for engine spans.
func WithTracer(tracer trace.Tracer) FrameServiceOption {
	return func(s *FrameService) { s.tracer = tracer }
}

// WithEngineMetrics sets the instruments shared by every processor.
func WithEngineMetrics(m *infrastructure.EngineMetrics) FrameServiceOption {
	return func(s *FrameService) { s.metrics = m }
}

// NewFrameService creates a frame service from application configuration
func NewFrameService(cfg *config.Config, logger *slog.Logger, opts ...FrameServiceOption) *FrameService {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "frame_service"))

	s := &FrameService{
		processors: make(map[string]*processorEntry),
		cache:      cfg.Cache,
		defaults:   cfg.Engine,
		analyzer:   dataprocessing.NewAnalyzer(logger),
		tracer:     otel.Tracer(infrastructure.MeterName),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Info("FrameService initialized",
		slog.Bool("cache_enabled", s.cache.Enabled),
		slog.Int("max_processors", s.cache.MaxCachedProcessor))
	return s
}

// Analyze inspects CSV content and suggests a configuration.
func (s *FrameService) Analyze(ctx context.Context, content string) (*domain.CSVMetadata, error) {
	ctx, span := s.tracer.Start(ctx, "engine.analyze",
		trace.WithAttributes(attribute.Int("csv.bytes", len(content))))
	defer span.End()

	meta, err := s.analyzer.Analyze(content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("csv.rows", meta.RowCount),
		attribute.String("csv.date_column", meta.DateColumn))
	return meta, nil
}

// Generate returns the frames for req.
func (s *FrameService) Generate(ctx context.Context, req FramesRequest) (*domain.ProcessedSeries, error) {
	return s.generate(ctx, req, 0, nil)
}

// Stream generates the frames for req and hands them to onBatch in
// batches of at most batchSize frames as they are produced. Cached
// sequences are replayed in the same batches. It stops at the first error.
func (s *FrameService) Stream(ctx context.Context, req FramesRequest, batchSize int, onBatch frames.BatchFunc) (*domain.ProcessedSeries, error) {
	if batchSize <= 0 {
		batchSize = config.FrameBatchSize
	}
	return s.generate(ctx, req, batchSize, onBatch)
}

// resolveConfig builds the engine config of req. An omitted date format is
// detected from the data.
func (s *FrameService) resolveConfig(req FramesRequest) (config.EngineConfig, error) {
	opts := req.Config
	if opts.DateFormat == "" {
		hasHeader := opts.HasHeader == nil || *opts.HasHeader
		opts.DateFormat = string(dataprocessing.DetectDateFormat(req.CSV, strings.TrimSpace(opts.DateColumn), hasHeader))
	}
	return opts.Build(s.defaults)
}

func (s *FrameService) generate(ctx context.Context, req FramesRequest, batchSize int, onBatch frames.BatchFunc) (*domain.ProcessedSeries, error) {
	cfg, err := s.resolveConfig(req)
	if err != nil {
		return nil, err
	}
	if err := frames.ValidateFrameCount(req.DurationSeconds, cfg.FPS); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "engine.generate",
		trace.WithAttributes(
			attribute.String("engine.key", cfg.Key()),
			attribute.Float64("engine.duration_seconds", req.DurationSeconds),
			attribute.Int("csv.bytes", len(req.CSV)),
			attribute.Bool("engine.streaming", onBatch != nil),
		))
	defer span.End()

	start := s.now()
	var out *domain.ProcessedSeries
	if s.cache.Enabled {
		out, err = s.generateCached(ctx, cfg, req, batchSize, onBatch)
	} else {
		out, err = s.generateUncached(ctx, cfg, req, batchSize, onBatch)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		infrastructure.LoggerWithContext(ctx).WarnContext(ctx, "frame generation failed",
			slog.String("component", "frame_service"),
			slog.String("engine_key", cfg.Key()),
			slog.String("error", err.Error()))
		return nil, err
	}

	span.SetAttributes(attribute.Int("engine.frames", out.TotalFrames))
	s.logger.InfoContext(ctx, "frames generated",
		slog.String("engine_key", cfg.Key()),
		slog.Int("frames", out.TotalFrames),
		slog.Duration("elapsed", s.now().Sub(start)))
	return out, nil
}

func (s *FrameService) generateCached(ctx context.Context, cfg config.EngineConfig, req FramesRequest, batchSize int, onBatch frames.BatchFunc) (*domain.ProcessedSeries, error) {
	p, err := s.processor(cfg)
	if err != nil {
		return nil, err
	}
	return p.ProcessStream(ctx, req.CSV, req.DurationSeconds, batchSize, onBatch)
}

func (s *FrameService) generateUncached(ctx context.Context, cfg config.EngineConfig, req FramesRequest, batchSize int, onBatch frames.BatchFunc) (*domain.ProcessedSeries, error) {
	opts := []frames.Option{
		frames.WithLogger(s.logger),
		frames.WithMetrics(s.metrics),
	}
	if onBatch != nil {
		opts = append(opts, frames.WithBatchSize(batchSize), frames.WithOnBatch(onBatch))
	}
	p, err := frames.NewProcessor(cfg, opts...)
	if err != nil {
		return nil, err
	}
	out, err := p.Process(ctx, req.CSV, req.DurationSeconds)

	s.mu.Lock()
	s.lastDiagnostics = &ProcessorReport{
		Key:         cfg.Key(),
		Config:      cfg,
		LastUsed:    s.now(),
		Diagnostics: p.Diagnostics(),
	}
	s.mu.Unlock()
	return out, err
}

// processor returns the cached processor for cfg, creating it and evicting
// the least recently used one when the pool is full.
func (s *FrameService) processor(cfg config.EngineConfig) (*optimized.Processor, error) {
	key := cfg.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastKey = key
	if entry, ok := s.processors[key]; ok {
		entry.lastUsed = s.now()
		return entry.processor, nil
	}

	opts := optimized.OptionsFromConfig(s.cache)
	opts.Logger = s.logger
	opts.Metrics = s.metrics
	p, err := optimized.NewProcessor(cfg, opts)
	if err != nil {
		return nil, err
	}

	if limit := s.cache.MaxCachedProcessor; limit > 0 && len(s.processors) >= limit {
		s.evictOldest()
	}
	s.processors[key] = &processorEntry{processor: p, lastUsed: s.now()}
	return p, nil
}

func (s *FrameService) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range s.processors {
		if oldestKey == "" || entry.lastUsed.Before(oldest) {
			oldestKey, oldest = key, entry.lastUsed
		}
	}
	if oldestKey != "" {
		delete(s.processors, oldestKey)
		s.logger.Debug("processor evicted", slog.String("engine_key", oldestKey))
	}
}

// Diagnostics reports the statistics of the most recent request and the
// state of every cached processor.
func (s *FrameService) Diagnostics(ctx context.Context) DiagnosticsReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	used, _ := infrastructure.NewMemoryMonitor(0).Check()
	report := DiagnosticsReport{
		CacheEnabled: s.cache.Enabled,
		Processors:   make([]ProcessorReport, 0, len(s.processors)),
		HeapBytes:    used,
	}
	for key, entry := range s.processors {
		r := ProcessorReport{
			Key:         key,
			Config:      entry.processor.Config(),
			LastUsed:    entry.lastUsed,
			Diagnostics: entry.processor.Diagnostics(),
			Cache:       entry.processor.CacheStats(),
		}
		report.Processors = append(report.Processors, r)
		if key == s.lastKey {
			last := r
			report.Last = &last
		}
	}
	slices.SortFunc(report.Processors, func(a, b ProcessorReport) int {
		return b.LastUsed.Compare(a.LastUsed)
	})

	if !s.cache.Enabled && s.lastDiagnostics != nil {
		last := *s.lastDiagnostics
		report.Last = &last
	}
	return report
}

// ClearCaches empties every processor cache and forgets the processors.
// It returns how many processors were dropped.
func (s *FrameService) ClearCaches(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.processors)
	for _, entry := range s.processors {
		entry.processor.ClearCaches()
	}
	s.processors = make(map[string]*processorEntry)
	s.lastKey = ""
	s.lastDiagnostics = nil

	s.logger.InfoContext(ctx, "frame caches cleared", slog.Int("processors", n))
	return n
}

// ProcessorCount returns the number of cached processors.
func (s *FrameService) ProcessorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processors)
}
