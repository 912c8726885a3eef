package frames

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"barrace/internal/config"
	"barrace/internal/dataprocessing"
	apperrors "barrace/internal/errors"
	"barrace/internal/infrastructure"
	"barrace/internal/interpolation"
	"barrace/internal/ranking"
	"barrace/pkg/contracts/domain"
)

// State is the position of a Processor in its request lifecycle.
type State string

const (
	StateIdle            State = "IDLE"
	StateParsed          State = "PARSED"
	StateTransformed     State = "TRANSFORMED"
	StateFramesGenerated State = "FRAMES_GENERATED"
)

// Option customizes a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records engine metrics.
func WithMetrics(m *infrastructure.EngineMetrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithParserOptions overrides the header handling derived from the config,
// e.g. to name the columns of header-less input.
func WithParserOptions(opts dataprocessing.ParserOptions) Option {
	return func(p *Processor) { p.parserOpts = opts }
}

// WithEvaluator replaces the interpolation evaluator, e.g. with a Memo.
func WithEvaluator(e interpolation.Evaluator) Option {
	return func(p *Processor) { p.generator.Evaluator = e }
}

// WithBatchSize sets the number of frames generated between yields.
func WithBatchSize(n int) Option {
	return func(p *Processor) { p.generator.BatchSize = n }
}

// WithOnBatch streams frames to fn as each batch completes.
func WithOnBatch(fn BatchFunc) Option {
	return func(p *Processor) { p.generator.OnBatch = fn }
}

// Processor runs parse, transform and generate for one configuration. It is
// not safe for concurrent use.
type Processor struct {
	cfg        config.EngineConfig
	logger     *slog.Logger
	metrics    *infrastructure.EngineMetrics
	parserOpts dataprocessing.ParserOptions
	generator  *Generator

	state       State
	rows        []domain.RawRow
	series      *domain.SeriesSet
	result      *domain.ProcessedSeries
	diagnostics domain.Diagnostics
}

// NewProcessor validates cfg and returns an idle processor.
func NewProcessor(cfg config.EngineConfig, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Processor{
		cfg:        cfg.Clone(),
		logger:     slog.Default(),
		parserOpts: dataprocessing.ParserOptions{HasHeader: cfg.HasHeader},
		generator: &Generator{
			Evaluator: interpolation.New(cfg.Interpolation),
			Ranker:    ranking.NewRanker(config.ParallelSortThreshold),
			BatchSize: config.FrameBatchSize,
		},
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "frame_processor"))
	return p, nil
}

// Config returns the processor's configuration.
func (p *Processor) Config() config.EngineConfig {
	return p.cfg.Clone()
}

// State returns the current lifecycle state.
func (p *Processor) State() State {
	return p.state
}

// Diagnostics returns the parse and transform statistics of the current request.
func (p *Processor) Diagnostics() domain.Diagnostics {
	d := p.diagnostics
	d.Parse.Errors = slices.Clone(d.Parse.Errors)
	d.Transform.Errors = slices.Clone(d.Transform.Errors)
	return d
}

// Series returns the transformed series, or nil before TransformData.
func (p *Processor) Series() *domain.SeriesSet {
	return p.series
}

// Result returns the last generated frames, or nil.
func (p *Processor) Result() *domain.ProcessedSeries {
	return p.result
}

// ParseCSV starts a new request by parsing content. Any previous request
// state is discarded first, even when parsing fails.
func (p *Processor) ParseCSV(ctx context.Context, content string) error {
	p.reset()
	if err := ctx.Err(); err != nil {
		return err
	}

	parser := dataprocessing.NewParser(p.parserOpts, p.logger)
	rows, err := parser.Parse(content, p.cfg.DateColumn, p.cfg.ValueColumns)
	p.diagnostics.Parse = parser.Stats()
	p.metrics.RecordParse(ctx, p.diagnostics.Parse)
	if err != nil {
		return err
	}

	p.rows = rows
	p.state = StateParsed
	p.logger.DebugContext(ctx, "CSV parsed",
		slog.Int("rows", len(rows)),
		slog.Int("skipped", p.diagnostics.Parse.SkippedRows))
	return nil
}

// TransformData converts the parsed rows into category series.
func (p *Processor) TransformData(ctx context.Context) error {
	switch p.state {
	case StateIdle:
		return apperrors.NewNoRawDataError()
	case StateTransformed, StateFramesGenerated:
		return apperrors.NewOutOfOrderCallError("TransformData", string(p.state))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	transformer := dataprocessing.NewTransformer(p.logger)
	set, err := transformer.Transform(p.rows, p.cfg.DateColumn, p.cfg.DateFormat, p.cfg.ValueColumns)
	p.diagnostics.Transform = transformer.Stats()
	p.metrics.RecordTransform(ctx, p.diagnostics.Transform)
	if err != nil {
		return err
	}

	p.series = set
	p.rows = nil
	p.state = StateTransformed
	return nil
}

// GenerateFrameData produces the frame sequence for a playback duration in
// seconds. It may be called repeatedly once data is transformed.
func (p *Processor) GenerateFrameData(ctx context.Context, durationSeconds float64) (*domain.ProcessedSeries, error) {
	if p.series == nil {
		return nil, apperrors.NewNoProcessedDataError()
	}

	start := time.Now()
	out, err := p.generator.Generate(ctx, p.series, Request{
		DurationSeconds: durationSeconds,
		FPS:             p.cfg.FPS,
		TopN:            p.cfg.TopN,
	})
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	p.metrics.RecordFrames(ctx, out.TotalFrames, out.Interpolation, elapsed)

	p.result = out
	p.state = StateFramesGenerated
	p.logger.InfoContext(ctx, "frames generated",
		slog.Int("frames", out.TotalFrames),
		slog.Int("categories", len(out.Categories)),
		slog.String("interpolation", out.Interpolation),
		slog.Duration("elapsed", elapsed))
	return out, nil
}

// Process runs all three steps on content.
func (p *Processor) Process(ctx context.Context, content string, durationSeconds float64) (*domain.ProcessedSeries, error) {
	if err := ValidateFrameCount(durationSeconds, p.cfg.FPS); err != nil {
		return nil, err
	}
	if err := p.ParseCSV(ctx, content); err != nil {
		return nil, err
	}
	if err := p.TransformData(ctx); err != nil {
		return nil, err
	}
	return p.GenerateFrameData(ctx, durationSeconds)
}

func (p *Processor) reset() {
	p.state = StateIdle
	p.rows = nil
	p.series = nil
	p.result = nil
	p.diagnostics = domain.Diagnostics{}
}
