package optimized

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"barrace/internal/config"
	"barrace/internal/dataprocessing"
	"barrace/internal/frames"
	"barrace/internal/infrastructure"
	"barrace/internal/interpolation"
	"barrace/internal/ranking"
	"barrace/pkg/contracts/domain"
)

// Options tunes caching and streaming.
type Options struct {
	// StreamThreshold is the line count above which input is parsed in
	// batches. Zero always parses in one pass.
	StreamThreshold int
	// StreamBatchSize is the number of lines per streamed batch.
	StreamBatchSize int
	// Monitor is consulted after every streamed batch and frame batch.
	Monitor *infrastructure.MemoryMonitor
	Metrics *infrastructure.EngineMetrics
	Logger  *slog.Logger
}

// DefaultOptions mirrors the defaults of config.CacheConfig.
func DefaultOptions() Options {
	return Options{
		StreamThreshold: config.DefaultStreamThreshold,
		StreamBatchSize: config.DefaultStreamBatchSize,
		Monitor:         infrastructure.NewMemoryMonitor(config.DefaultMemoryCeilingMB),
	}
}

// OptionsFromConfig builds Options from application cache settings.
func OptionsFromConfig(c config.CacheConfig) Options {
	opts := DefaultOptions()
	opts.StreamThreshold = c.StreamThreshold
	if c.StreamBatchSize > 0 {
		opts.StreamBatchSize = c.StreamBatchSize
	}
	opts.Monitor = infrastructure.NewMemoryMonitor(c.MemoryCeilingMB)
	return opts
}

// CacheStats reports cache usage since the processor was created.
type CacheStats struct {
	ContentHash    string `json:"content_hash,omitempty"`
	SeriesHits     int64  `json:"series_hits"`
	SeriesMisses   int64  `json:"series_misses"`
	FrameEntries   int    `json:"frame_entries"`
	FrameHits      int64  `json:"frame_hits"`
	FrameMisses    int64  `json:"frame_misses"`
	MemoEntries    int    `json:"memo_entries"`
	MemoHits       int64  `json:"memo_hits"`
	MemoMisses     int64  `json:"memo_misses"`
	MemoEvictions  int64  `json:"memo_evictions"`
	StreamedParses int64  `json:"streamed_parses"`
}

type frameKey struct {
	hash     string
	duration float64
	fps      int
	method   interpolation.Method
	topN     int
}

// Processor is a caching frame processor. It is safe for concurrent use;
// calls are serialized by one mutex.
type Processor struct {
	mu sync.Mutex

	cfg       config.EngineConfig
	opts      Options
	logger    *slog.Logger
	memo      *interpolation.Memo
	generator *frames.Generator

	hash        string
	series      *domain.SeriesSet
	diagnostics domain.Diagnostics
	frameCache  map[frameKey]*domain.ProcessedSeries
	stats       CacheStats
}

// NewProcessor validates cfg and returns a processor with empty caches.
func NewProcessor(cfg config.EngineConfig, opts Options) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StreamBatchSize <= 0 {
		opts.StreamBatchSize = config.DefaultStreamBatchSize
	}

	p := &Processor{
		cfg:        cfg.Clone(),
		opts:       opts,
		logger:     opts.Logger.With(slog.String("component", "optimized_processor")),
		memo:       interpolation.NewMemo(interpolation.New(cfg.Interpolation)),
		frameCache: make(map[frameKey]*domain.ProcessedSeries),
	}
	p.generator = &frames.Generator{
		Evaluator: p.memo,
		Ranker:    ranking.NewRanker(config.ParallelSortThreshold),
		BatchSize: config.FrameBatchSize,
		OnBatch: func([]domain.FrameSnapshot) error {
			p.relieveMemoryPressure(context.Background())
			return nil
		},
	}
	return p, nil
}

// Config returns the processor's configuration.
func (p *Processor) Config() config.EngineConfig {
	return p.cfg.Clone()
}

// Process returns the frame sequence for content played over durationSeconds.
// The returned value may be shared with later calls and must not be modified.
func (p *Processor) Process(ctx context.Context, content string, durationSeconds float64) (*domain.ProcessedSeries, error) {
	return p.ProcessStream(ctx, content, durationSeconds, 0, nil)
}

// ProcessStream is Process that also hands frames to onBatch in batches of
// batchSize: as they are generated on a cache miss, replayed from the cached
// sequence on a hit. onBatch runs while the processor is locked.
func (p *Processor) ProcessStream(ctx context.Context, content string, durationSeconds float64, batchSize int, onBatch frames.BatchFunc) (*domain.ProcessedSeries, error) {
	if err := frames.ValidateFrameCount(durationSeconds, p.cfg.FPS); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = config.FrameBatchSize
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	hash := ContentHash(content)
	if hash == p.hash && p.series != nil {
		p.stats.SeriesHits++
		p.opts.Metrics.RecordCache(ctx, "series", true)
	} else {
		p.stats.SeriesMisses++
		p.opts.Metrics.RecordCache(ctx, "series", false)
		if err := p.load(ctx, hash, content); err != nil {
			return nil, err
		}
	}

	key := frameKey{
		hash:     hash,
		duration: durationSeconds,
		fps:      p.cfg.FPS,
		method:   p.cfg.Interpolation,
		topN:     p.cfg.TopN,
	}
	if out, ok := p.frameCache[key]; ok {
		p.stats.FrameHits++
		p.opts.Metrics.RecordCache(ctx, "frames", true)
		if onBatch != nil {
			if err := replay(ctx, out.Frames, batchSize, onBatch); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	p.stats.FrameMisses++
	p.opts.Metrics.RecordCache(ctx, "frames", false)

	gen := *p.generator
	if onBatch != nil {
		gen.BatchSize = batchSize
		gen.OnBatch = func(batch []domain.FrameSnapshot) error {
			p.relieveMemoryPressure(ctx)
			return onBatch(batch)
		}
	}

	start := time.Now()
	out, err := gen.Generate(ctx, p.series, frames.Request{
		DurationSeconds: durationSeconds,
		FPS:             p.cfg.FPS,
		TopN:            p.cfg.TopN,
	})
	if err != nil {
		return nil, err
	}
	p.opts.Metrics.RecordFrames(ctx, out.TotalFrames, out.Interpolation, time.Since(start))

	p.frameCache[key] = out
	return out, nil
}

func replay(ctx context.Context, all []domain.FrameSnapshot, batchSize int, onBatch frames.BatchFunc) error {
	for batch := range slices.Chunk(all, batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onBatch(batch); err != nil {
			return err
		}
	}
	return nil
}

// load parses and transforms content, replacing the cached series. On
// failure the series cache is left empty.
func (p *Processor) load(ctx context.Context, hash, content string) error {
	p.hash = ""
	p.series = nil
	p.diagnostics = domain.Diagnostics{}
	// Memo keys name categories, not inputs, so they are stale now.
	p.memo.Clear()

	parser := dataprocessing.NewParser(dataprocessing.ParserOptions{HasHeader: p.cfg.HasHeader}, p.logger)
	var (
		rows []domain.RawRow
		err  error
	)
	if p.opts.StreamThreshold > 0 && strings.Count(content, "\n") >= p.opts.StreamThreshold {
		p.stats.StreamedParses++
		rows, err = parser.ParseStream(content, p.cfg.DateColumn, p.cfg.ValueColumns, p.opts.StreamBatchSize,
			func(batch, kept int) error {
				p.relieveMemoryPressure(ctx)
				return ctx.Err()
			})
	} else {
		rows, err = parser.Parse(content, p.cfg.DateColumn, p.cfg.ValueColumns)
	}
	p.diagnostics.Parse = parser.Stats()
	p.opts.Metrics.RecordParse(ctx, p.diagnostics.Parse)
	if err != nil {
		return err
	}

	transformer := dataprocessing.NewTransformer(p.logger)
	set, err := transformer.Transform(rows, p.cfg.DateColumn, p.cfg.DateFormat, p.cfg.ValueColumns)
	p.diagnostics.Transform = transformer.Stats()
	p.opts.Metrics.RecordTransform(ctx, p.diagnostics.Transform)
	if err != nil {
		return err
	}

	p.hash = hash
	p.series = set
	return nil
}

// relieveMemoryPressure drops the memo when heap usage is over the ceiling.
func (p *Processor) relieveMemoryPressure(ctx context.Context) {
	used, over := p.opts.Monitor.Check()
	p.opts.Metrics.RecordHeap(ctx, used)
	if !over {
		return
	}
	dropped := p.memo.Clear()
	p.stats.MemoEvictions++
	p.opts.Metrics.RecordMemoEviction(ctx, dropped)
	p.opts.Monitor.Release()
	p.logger.WarnContext(ctx, "memory ceiling exceeded, interpolation memo cleared",
		slog.Uint64("heap_bytes", used),
		slog.Int("entries_dropped", dropped))
}

// ClearCaches drops the cached series, every cached frame sequence and the
// interpolation memo. Counters are kept.
func (p *Processor) ClearCaches() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.hash = ""
	p.series = nil
	p.frameCache = make(map[frameKey]*domain.ProcessedSeries)
	dropped := p.memo.Clear()
	p.logger.Info("caches cleared", slog.Int("memo_entries", dropped))
}

// CacheStats returns a snapshot of cache usage.
func (p *Processor) CacheStats() CacheStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.ContentHash = p.hash
	s.FrameEntries = len(p.frameCache)
	s.MemoEntries = p.memo.Len()
	s.MemoHits, s.MemoMisses = p.memo.Stats()
	return s
}

// Diagnostics returns the parse and transform statistics of the input that
// produced the cached series.
func (p *Processor) Diagnostics() domain.Diagnostics {
	p.mu.Lock()
	defer p.mu.Unlock()

	d := p.diagnostics
	d.Parse.Errors = slices.Clone(d.Parse.Errors)
	d.Transform.Errors = slices.Clone(d.Transform.Errors)
	return d
}
