package interpolation

import (
	"strconv"
	"strings"
	"time"

	"barrace/pkg/contracts/domain"
)

// Memo caches ValueAt results of an underlying Evaluator. It is not safe
// for concurrent use; callers sharing one must serialize access.
type Memo struct {
	inner  Evaluator
	values map[string]float64
	hits   int64
	misses int64
}

// NewMemo wraps inner with a result cache.
func NewMemo(inner Evaluator) *Memo {
	return &Memo{
		inner:  inner,
		values: make(map[string]float64),
	}
}

// Method returns the wrapped evaluator's method.
func (m *Memo) Method() Method {
	return m.inner.Method()
}

// ValueAt returns the cached value or computes and stores it.
func (m *Memo) ValueAt(series *domain.CategorySeries, t time.Time) float64 {
	if series == nil {
		return 0
	}
	key := memoKey(series.Category, t, m.inner.Method())
	if v, ok := m.values[key]; ok {
		m.hits++
		return v
	}
	m.misses++
	v := m.inner.ValueAt(series, t)
	m.values[key] = v
	return v
}

// Clear drops every cached value and returns how many were dropped.
func (m *Memo) Clear() int {
	n := len(m.values)
	m.values = make(map[string]float64)
	return n
}

// Len returns the number of cached values.
func (m *Memo) Len() int {
	return len(m.values)
}

// Stats returns hit and miss counts since creation.
func (m *Memo) Stats() (hits, misses int64) {
	return m.hits, m.misses
}

func memoKey(category string, t time.Time, method Method) string {
	var b strings.Builder
	b.Grow(len(category) + 24)
	b.WriteString(category)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(t.UnixMilli(), 10))
	b.WriteByte('|')
	b.WriteString(string(method))
	return b.String()
}
