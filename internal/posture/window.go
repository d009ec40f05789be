package posture

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Window is a fixed-capacity FIFO of recent metric samples. Once full,
// pushing evicts the oldest sample. Not safe for concurrent use; each
// window is owned by a single pipeline.
type Window[T any] struct {
	items []T
	cap   int
}

// NewWindow creates a window holding at most n samples.
func NewWindow[T any](n int) *Window[T] {
	if n < 1 {
		n = 1
	}
	return &Window[T]{items: make([]T, 0, n), cap: n}
}

// Push appends a sample, evicting the oldest if the window is full.
func (w *Window[T]) Push(v T) {
	if len(w.items) == w.cap {
		copy(w.items, w.items[1:])
		w.items = w.items[:len(w.items)-1]
	}
	w.items = append(w.items, v)
}

// Len returns the number of samples currently held.
func (w *Window[T]) Len() int { return len(w.items) }

// Values returns a copy of the samples in insertion order.
func (w *Window[T]) Values() []T {
	out := make([]T, len(w.items))
	copy(out, w.items)
	return out
}

// Median returns the empirical median of the window. ok is false for an
// empty window.
func Median(w *Window[float64]) (float64, bool) {
	if len(w.items) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(w.items))
	copy(sorted, w.items)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil), true
}

// Majority returns the most frequent sample in the window. When two
// labels tie in frequency, the most recently inserted of them wins.
// ok is false for an empty window.
func Majority[T comparable](w *Window[T]) (T, bool) {
	var zero T
	if len(w.items) == 0 {
		return zero, false
	}

	counts := make(map[T]int, len(w.items))
	for _, v := range w.items {
		counts[v]++
	}

	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	for i := len(w.items) - 1; i >= 0; i-- {
		if counts[w.items[i]] == max {
			return w.items[i], true
		}
	}
	return zero, false
}
