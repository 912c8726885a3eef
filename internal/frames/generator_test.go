package frames

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barrace/internal/config"
	apperrors "barrace/internal/errors"
	"barrace/internal/interpolation"
	"barrace/pkg/contracts/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testSet(categories int) *domain.SeriesSet {
	set := &domain.SeriesSet{
		Series: make(map[string]*domain.CategorySeries),
		Start:  day(2020, 1, 1),
		End:    day(2020, 1, 11),
	}
	for c := 0; c < categories; c++ {
		name := fmt.Sprintf("cat%02d", c)
		set.Categories = append(set.Categories, name)
		set.Series[name] = &domain.CategorySeries{
			Category: name,
			Points: []domain.DataPoint{
				{Category: name, Value: float64(c), Date: set.Start},
				{Category: name, Value: float64(categories - c), Date: set.End},
			},
		}
		set.MaxValue = max(set.MaxValue, float64(categories-c), float64(c))
	}
	return set
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		seconds float64
		fps     int
		want    int
	}{
		{1, 30, 30},
		{2, 30, 60},
		{0.1, 30, 3},
		{1.0 / 3.0, 30, 10},
		{1.5, 24, 36},
		{0.01, 30, 1},
		{0.7, 10, 7},
		{2.05, 10, 21},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v@%d", tt.seconds, tt.fps), func(t *testing.T) {
			assert.Equal(t, tt.want, FrameCount(tt.seconds, tt.fps))
		})
	}
}

func TestValidateFrameCount(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		fps     int
		wantErr bool
	}{
		{"typical", 10, 30, false},
		{"exactly at the limit", config.MaxFrames / 100, 100, false},
		{"one frame over", config.MaxFrames/100 + 0.01, 100, true},
		{"huge finite duration", 1e300, 30, true},
		{"max float", math.MaxFloat64, 1, true},
		{"negative", -1, 30, true},
		{"nan", math.NaN(), 30, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFrameCount(tt.seconds, tt.fps)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidDuration)
				return
			}
			require.NoError(t, err)
			assert.LessOrEqual(t, FrameCount(tt.seconds, tt.fps), config.MaxFrames)
		})
	}
}

func TestTimestamp(t *testing.T) {
	start, end := day(2020, 1, 1), day(2020, 1, 11)

	assert.True(t, Timestamp(start, end, 0, 11).Equal(start))
	assert.True(t, Timestamp(start, end, 10, 11).Equal(end))
	assert.True(t, Timestamp(start, end, 5, 11).Equal(day(2020, 1, 6)))
	assert.True(t, Timestamp(start, end, 0, 1).Equal(start))
}

func TestGenerator_Invariants(t *testing.T) {
	set := testSet(6)
	g := NewGenerator(interpolation.MethodSmooth)

	out, err := g.Generate(context.Background(), set, Request{DurationSeconds: 2.5, FPS: 24, TopN: 4})
	require.NoError(t, err)

	require.Equal(t, 60, out.TotalFrames)
	require.Len(t, out.Frames, out.TotalFrames)
	assert.True(t, out.Frames[0].Timestamp.Equal(set.Start))
	assert.True(t, out.Frames[len(out.Frames)-1].Timestamp.Equal(set.End))

	for i, f := range out.Frames {
		assert.Equal(t, i, f.FrameIndex)
		if i > 0 {
			assert.False(t, f.Timestamp.Before(out.Frames[i-1].Timestamp))
		}
		require.Len(t, f.Items, 4)
		assert.Equal(t, 1, f.Items[0].Rank)
		for j := 1; j < len(f.Items); j++ {
			assert.GreaterOrEqual(t, f.Items[j-1].Value, f.Items[j].Value)
			assert.GreaterOrEqual(t, f.Items[j].Rank, f.Items[j-1].Rank)
		}
	}
	assert.Equal(t, "smooth", out.Interpolation)
	assert.Equal(t, set.MaxValue, out.GlobalMaxValue)
}

func TestGenerator_Batches(t *testing.T) {
	var sizes []int
	g := NewGenerator(interpolation.MethodLinear)
	g.OnBatch = func(batch []domain.FrameSnapshot) error {
		sizes = append(sizes, len(batch))
		return nil
	}

	out, err := g.Generate(context.Background(), testSet(3), Request{DurationSeconds: 10, FPS: 25, TopN: 3})
	require.NoError(t, err)
	assert.Equal(t, 250, out.TotalFrames)
	assert.Equal(t, []int{100, 100, 50}, sizes)
}

func TestGenerator_StopsEarly(t *testing.T) {
	t.Run("callback error", func(t *testing.T) {
		stop := errors.New("client went away")
		g := NewGenerator(interpolation.MethodLinear)
		g.OnBatch = func([]domain.FrameSnapshot) error { return stop }

		_, err := g.Generate(context.Background(), testSet(2), Request{DurationSeconds: 10, FPS: 30, TopN: 2})
		assert.ErrorIs(t, err, stop)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		g := NewGenerator(interpolation.MethodLinear)
		g.OnBatch = func([]domain.FrameSnapshot) error {
			cancel()
			return nil
		}

		_, err := g.Generate(ctx, testSet(2), Request{DurationSeconds: 10, FPS: 30, TopN: 2})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGenerator_Errors(t *testing.T) {
	g := NewGenerator(interpolation.MethodLinear)

	_, err := g.Generate(context.Background(), nil, Request{DurationSeconds: 1, FPS: 30, TopN: 1})
	assert.ErrorIs(t, err, apperrors.ErrNoProcessedData)

	_, err = g.Generate(context.Background(), testSet(1), Request{DurationSeconds: -2, FPS: 30, TopN: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidDuration)

	out, err := g.Generate(context.Background(), testSet(1), Request{DurationSeconds: 1e300, FPS: 30, TopN: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidDuration)
	assert.Nil(t, out)
}

func TestGenerator_MemoIsTransparent(t *testing.T) {
	set := testSet(8)
	req := Request{DurationSeconds: 3, FPS: 30, TopN: 5}

	plain, err := NewGenerator(interpolation.MethodSmooth).Generate(context.Background(), set, req)
	require.NoError(t, err)

	memo := interpolation.NewMemo(interpolation.New(interpolation.MethodSmooth))
	g := NewGenerator(interpolation.MethodSmooth)
	g.Evaluator = memo

	cached, err := g.Generate(context.Background(), set, req)
	require.NoError(t, err)
	again, err := g.Generate(context.Background(), set, req)
	require.NoError(t, err)

	assert.Equal(t, plain, cached)
	assert.Equal(t, plain, again)
	hits, _ := memo.Stats()
	assert.Positive(t, hits)
}
