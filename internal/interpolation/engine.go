package interpolation

import (
	"sort"
	"time"

	"barrace/pkg/contracts/domain"
)

// Evaluator returns the value of a series at an instant.
type Evaluator interface {
	ValueAt(series *domain.CategorySeries, t time.Time) float64
	Method() Method
}

// Engine is the stateless Evaluator for one method.
type Engine struct {
	method Method
}

// New returns an Engine for method. Unknown methods fall back to linear;
// callers validate with ParseMethod first.
func New(method Method) *Engine {
	if !method.Valid() {
		method = MethodLinear
	}
	return &Engine{method: method}
}

// Method returns the policy the engine applies.
func (e *Engine) Method() Method {
	return e.method
}

// ValueAt computes the series value at t.
func (e *Engine) ValueAt(series *domain.CategorySeries, t time.Time) float64 {
	return ValueAt(series, t, e.method)
}

// ValueAt computes the value of series at t under method.
// An empty or nil series yields 0.
func ValueAt(series *domain.CategorySeries, t time.Time, method Method) float64 {
	if series == nil || len(series.Points) == 0 {
		return 0
	}
	points := series.Points
	first, last := points[0], points[len(points)-1]

	if len(points) == 1 || !t.After(first.Date) {
		return first.Value
	}
	if !t.Before(last.Date) {
		return last.Value
	}

	// hi is the first sample strictly after t; first < t < last guarantees 0 < hi < len.
	hi := sort.Search(len(points), func(i int) bool {
		return points[i].Date.After(t)
	})
	lo := hi - 1
	a, b := points[lo], points[hi]

	if method == MethodStep || method == MethodNone {
		return a.Value
	}
	if a.Date.Equal(t) {
		return a.Value
	}

	span := b.Date.Sub(a.Date)
	if span <= 0 {
		return b.Value
	}
	ratio := float64(t.Sub(a.Date)) / float64(span)
	if method == MethodSmooth {
		ratio = Smoothstep(ratio)
	}
	return Lerp(a.Value, b.Value, ratio)
}

// Smoothstep eases x in [0,1] with 3x²-2x³. Inputs are clamped first.
func Smoothstep(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return x * x * (3 - 2*x)
}

// Lerp interpolates between a and b. ratio outside [0,1] is clamped so the
// result always stays inside the bracket.
func Lerp(a, b, ratio float64) float64 {
	if ratio <= 0 {
		return a
	}
	if ratio >= 1 {
		return b
	}
	return a + (b-a)*ratio
}
