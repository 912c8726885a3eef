package ranking

import (
	"context"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"barrace/pkg/contracts/domain"
)

// Value is one unranked (category, value) pair.
type Value struct {
	Category string
	Value    float64
}

// Ranker sorts and ranks frame values.
type Ranker struct {
	// ParallelThreshold is the population size above which sorting is split
	// into chunks sorted on separate goroutines. Zero disables parallelism.
	ParallelThreshold int
	// Workers caps the number of chunks; defaults to GOMAXPROCS.
	Workers int
}

// NewRanker returns a Ranker that sorts in parallel above threshold items.
func NewRanker(threshold int) *Ranker {
	return &Ranker{ParallelThreshold: threshold}
}

// Rank orders values and assigns dense ranks. The input is not modified.
func Rank(values []Value) []domain.RankedItem {
	return (&Ranker{}).Rank(values)
}

// TopN ranks values and keeps the first n items. n <= 0 keeps everything.
func TopN(values []Value, n int) []domain.RankedItem {
	return Truncate(Rank(values), n)
}

// Rank orders values and assigns dense ranks.
func (r *Ranker) Rank(values []Value) []domain.RankedItem {
	items := make([]domain.RankedItem, len(values))
	for i, v := range values {
		items[i] = domain.RankedItem{Category: v.Category, Value: v.Value}
	}
	r.sort(items)
	assignRanks(items)
	return items
}

// compare orders higher values first, then category names ascending.
func compare(a, b domain.RankedItem) int {
	switch {
	case a.Value > b.Value:
		return -1
	case a.Value < b.Value:
		return 1
	}
	return strings.Compare(a.Category, b.Category)
}

// Truncate keeps the first n ranked items. It runs after ranking so ranks
// reflect the full population.
func Truncate(items []domain.RankedItem, n int) []domain.RankedItem {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n:n]
}

func assignRanks(items []domain.RankedItem) {
	rank := 0
	for i := range items {
		if i == 0 || items[i].Value != items[i-1].Value {
			rank++
		}
		items[i].Rank = rank
	}
}

func (r *Ranker) sort(items []domain.RankedItem) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if r.ParallelThreshold <= 0 || len(items) < r.ParallelThreshold || workers < 2 {
		slices.SortFunc(items, compare)
		return
	}
	parallelSort(items, workers)
}

// parallelSort sorts chunks concurrently and merges them. compare is a total
// order, so the result is identical to a sequential sort.
func parallelSort(items []domain.RankedItem, workers int) {
	chunkSize := (len(items) + workers - 1) / workers
	var chunks [][]domain.RankedItem
	for start := 0; start < len(items); start += chunkSize {
		end := min(start+chunkSize, len(items))
		chunks = append(chunks, items[start:end])
	}

	g, _ := errgroup.WithContext(context.Background())
	for _, chunk := range chunks {
		g.Go(func() error {
			slices.SortFunc(chunk, compare)
			return nil
		})
	}
	_ = g.Wait()

	merged := mergeChunks(chunks, len(items))
	copy(items, merged)
}

func mergeChunks(chunks [][]domain.RankedItem, total int) []domain.RankedItem {
	out := make([]domain.RankedItem, 0, total)
	heads := make([]int, len(chunks))
	for len(out) < total {
		best := -1
		for c, chunk := range chunks {
			if heads[c] >= len(chunk) {
				continue
			}
			if best == -1 || compare(chunk[heads[c]], chunks[best][heads[best]]) < 0 {
				best = c
			}
		}
		out = append(out, chunks[best][heads[best]])
		heads[best]++
	}
	return out
}
