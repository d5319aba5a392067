// Package dataset owns an immutable point collection together with a
// memoized pairwise distance cache.
//
// Every distance ever computed between two dataset points is stored under a
// triangular-number key derived from the unordered index pair, so repeated
// queries cost a map lookup after the first computation. The cache is
// append-only: entries are never evicted or overwritten with a different
// value.
package dataset

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// Metric computes the distance between two points.
//
// It must be symmetric, non-negative, deterministic and return zero for
// identical points. A metric that errors or returns a non-finite value
// aborts the operation that invoked it.
type Metric[P any] func(a, b P) (float64, error)

// ErrIndexOutOfRange indicates a distance query with an invalid point index.
type ErrIndexOutOfRange struct {
	Index int
	Size  int
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("point index %d out of range [0, %d)", e.Index, e.Size)
}

// ErrMetricFailure indicates the metric function errored or returned a
// non-finite value for a pair of points.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrMetricFailure struct {
	I, J  int
	cause error
}

func (e *ErrMetricFailure) Error() string {
	return fmt.Sprintf("metric failed for points (%d, %d): %v", e.I, e.J, e.cause)
}

func (e *ErrMetricFailure) Unwrap() error { return e.cause }

// Dataset is an immutable point collection with a memoized distance cache.
//
// It is safe for concurrent use: cache writes follow a read/compute/
// insert-if-absent protocol, so racing writers at worst recompute the same
// value.
type Dataset[P any] struct {
	points []P
	metric Metric[P]

	mu    sync.RWMutex
	cache map[uint64]float64

	computed atomic.Int64
	hits     atomic.Int64
}

// New creates a Dataset over points using the given metric. The points slice
// is retained; it must not be mutated afterwards.
func New[P any](points []P, metric Metric[P]) *Dataset[P] {
	return &Dataset[P]{
		points: points,
		metric: metric,
		cache:  make(map[uint64]float64),
	}
}

// Size returns the number of points.
func (d *Dataset[P]) Size() int { return len(d.points) }

// Point returns the point at index i. It panics if i is out of range, like a
// slice access.
func (d *Dataset[P]) Point(i int) P { return d.points[i] }

// Distance returns the distance between points i and j, computing and
// caching it on first use. Identity queries (i == j) return 0 without
// touching the cache. Each distinct unordered pair is evaluated by the
// metric at most once for the lifetime of the Dataset, except for benign
// duplicate computation under concurrent first access.
func (d *Dataset[P]) Distance(i, j int) (float64, error) {
	if err := d.checkIndex(i); err != nil {
		return 0, err
	}
	if err := d.checkIndex(j); err != nil {
		return 0, err
	}
	if i == j {
		return 0, nil
	}

	key := PairKey(i, j)

	d.mu.RLock()
	v, ok := d.cache[key]
	d.mu.RUnlock()
	if ok {
		d.hits.Add(1)
		return v, nil
	}

	v, err := d.metric(d.points[i], d.points[j])
	if err != nil {
		return 0, &ErrMetricFailure{I: i, J: j, cause: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ErrMetricFailure{I: i, J: j, cause: fmt.Errorf("non-finite distance %v", v)}
	}
	d.computed.Add(1)

	d.mu.Lock()
	if prev, ok := d.cache[key]; ok {
		// A concurrent writer got here first. The metric is deterministic,
		// so prev equals v; keep the existing entry.
		v = prev
	} else {
		d.cache[key] = v
	}
	d.mu.Unlock()

	return v, nil
}

// OneToMany returns the distances from point i to every point in js, in
// order. Results are served from, and added to, the same pairwise cache as
// Distance.
func (d *Dataset[P]) OneToMany(i int, js []int) ([]float64, error) {
	out := make([]float64, len(js))
	for n, j := range js {
		v, err := d.Distance(i, j)
		if err != nil {
			return nil, err
		}
		out[n] = v
	}
	return out, nil
}

// DistanceToPoint returns the distance between an external query point q and
// the dataset point at index i. Query distances bypass the pairwise cache
// since q has no index.
func (d *Dataset[P]) DistanceToPoint(q P, i int) (float64, error) {
	if err := d.checkIndex(i); err != nil {
		return 0, err
	}
	v, err := d.metric(q, d.points[i])
	if err != nil {
		return 0, &ErrMetricFailure{I: -1, J: i, cause: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ErrMetricFailure{I: -1, J: i, cause: fmt.Errorf("non-finite distance %v", v)}
	}
	return v, nil
}

// CacheLen returns the number of cached pair distances.
func (d *Dataset[P]) CacheLen() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.cache)
}

// Stats returns the number of metric invocations and the number of cache
// hits served so far.
func (d *Dataset[P]) Stats() (computed, hits int64) {
	return d.computed.Load(), d.hits.Load()
}

func (d *Dataset[P]) checkIndex(i int) error {
	if i < 0 || i >= len(d.points) {
		return &ErrIndexOutOfRange{Index: i, Size: len(d.points)}
	}
	return nil
}

// PairKey maps an unordered pair of distinct point indices to a dense
// positive integer via the triangular-number encoding
//
//	key = hi*(hi-1)/2 + lo + 1, hi = max(i, j), lo = min(i, j)
//
// which is a bijection between unordered pairs and positive integers, so the
// cache stores each symmetric pair exactly once.
func PairKey(i, j int) uint64 {
	hi, lo := uint64(i), uint64(j)
	if lo > hi {
		hi, lo = lo, hi
	}
	return hi*(hi-1)/2 + lo + 1
}

// PairFromKey is the inverse of PairKey. It recovers (hi, lo) with hi > lo
// from a key produced by PairKey.
func PairFromKey(key uint64) (hi, lo int) {
	h := uint64(math.Ceil((1+math.Sqrt(float64(1+8*key)))/2)) - 1
	// Nudge against float error: T(h) < key <= T(h+1) must hold,
	// with T(n) = n*(n-1)/2.
	for h*(h-1)/2 >= key {
		h--
	}
	for (h+1)*h/2 < key {
		h++
	}
	return int(h), int(key - 1 - h*(h-1)/2)
}
