package frames

import (
	"context"
	"math"
	"runtime"
	"time"

	"barrace/internal/config"
	apperrors "barrace/internal/errors"
	"barrace/internal/interpolation"
	"barrace/internal/ranking"
	"barrace/pkg/contracts/domain"
)

// frameEpsilon absorbs float error in duration × fps so that 2.0 × 30 is
// never rounded up to 61 frames.
const frameEpsilon = 1e-9

// Request describes one frame sequence.
type Request struct {
	DurationSeconds float64
	FPS             int
	TopN            int
}

// BatchFunc receives each completed batch of frames. The slice aliases the
// result and must not be modified. Returning an error stops generation.
type BatchFunc func(batch []domain.FrameSnapshot) error

// Generator turns a series set into a ProcessedSeries.
type Generator struct {
	Evaluator interpolation.Evaluator
	Ranker    *ranking.Ranker
	// BatchSize is the number of frames between yields. Defaults to
	// config.FrameBatchSize.
	BatchSize int
	OnBatch   BatchFunc
}

// NewGenerator creates a generator for method with default batching.
func NewGenerator(method interpolation.Method) *Generator {
	return &Generator{
		Evaluator: interpolation.New(method),
		Ranker:    ranking.NewRanker(config.ParallelSortThreshold),
		BatchSize: config.FrameBatchSize,
	}
}

// ValidateDuration rejects durations that are not positive finite seconds.
func ValidateDuration(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return apperrors.NewInvalidDurationError(seconds)
	}
	return nil
}

// ValidateFrameCount checks the duration and that ceil(seconds × fps) stays
// within config.MaxFrames.
func ValidateFrameCount(seconds float64, fps int) error {
	if err := ValidateDuration(seconds); err != nil {
		return err
	}
	if seconds*float64(max(fps, 1)) > config.MaxFrames+frameEpsilon {
		return apperrors.NewTooManyFramesError(seconds, fps, config.MaxFrames)
	}
	return nil
}

// FrameCount returns ceil(seconds × fps), and at least one frame. Callers
// bound the inputs with ValidateFrameCount first.
func FrameCount(seconds float64, fps int) int {
	n := int(math.Ceil(seconds*float64(fps) - frameEpsilon))
	return max(n, 1)
}

// Timestamp returns the instant shown by frame i of total.
func Timestamp(start, end time.Time, i, total int) time.Time {
	if i <= 0 || total <= 1 {
		return start
	}
	if i >= total-1 {
		return end
	}
	progress := float64(i) / float64(total-1)
	span := end.UnixMilli() - start.UnixMilli()
	return time.UnixMilli(start.UnixMilli() + int64(math.Round(progress*float64(span)))).UTC()
}

// Generate produces every frame for req.
func (g *Generator) Generate(ctx context.Context, set *domain.SeriesSet, req Request) (*domain.ProcessedSeries, error) {
	if err := ValidateFrameCount(req.DurationSeconds, req.FPS); err != nil {
		return nil, err
	}
	if set == nil || len(set.Categories) == 0 {
		return nil, apperrors.NewNoProcessedDataError()
	}

	evaluator := g.Evaluator
	if evaluator == nil {
		evaluator = interpolation.New(interpolation.MethodLinear)
	}
	ranker := g.Ranker
	if ranker == nil {
		ranker = &ranking.Ranker{}
	}
	batchSize := g.BatchSize
	if batchSize <= 0 {
		batchSize = config.FrameBatchSize
	}

	total := FrameCount(req.DurationSeconds, req.FPS)
	frames := make([]domain.FrameSnapshot, total)
	values := make([]ranking.Value, len(set.Categories))

	for from := 0; from < total; from += batchSize {
		to := min(from+batchSize, total)
		for i := from; i < to; i++ {
			ts := Timestamp(set.Start, set.End, i, total)
			for c, category := range set.Categories {
				values[c] = ranking.Value{
					Category: category,
					Value:    evaluator.ValueAt(set.Series[category], ts),
				}
			}
			frames[i] = domain.FrameSnapshot{
				FrameIndex: i,
				Timestamp:  ts,
				Items:      ranking.Truncate(ranker.Rank(values), req.TopN),
			}
		}

		if g.OnBatch != nil {
			if err := g.OnBatch(frames[from:to]); err != nil {
				return nil, err
			}
		}
		if to < total {
			runtime.Gosched()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	return &domain.ProcessedSeries{
		Frames:          frames,
		TotalFrames:     total,
		DateRange:       domain.DateRange{Start: set.Start, End: set.End},
		GlobalMaxValue:  set.MaxValue,
		Categories:      append([]string(nil), set.Categories...),
		FPS:             req.FPS,
		DurationSeconds: req.DurationSeconds,
		Interpolation:   evaluator.Method().String(),
		TopN:            req.TopN,
	}, nil
}
