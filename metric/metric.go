// Package metric provides named distance functions over float64 vectors.
//
// Metrics are resolved by a stable string identifier (e.g. "euclidean") so
// that callers and persisted snapshots can select a function by name. All
// functions are symmetric, non-negative and return zero for identical
// vectors; none of this is enforced at runtime beyond dimension checks.
package metric

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Func computes the distance between two vectors.
type Func func(a, b []float64) (float64, error)

// ErrDimensionMismatch indicates the two vectors have different lengths.
var ErrDimensionMismatch = errors.New("vector sizes do not match")

// ErrUnknownMetric indicates no metric is registered under the given name.
var ErrUnknownMetric = errors.New("unknown metric")

func checkDims(a, b []float64) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	return nil
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float64) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	return floats.Distance(a, b, 2), nil
}

// SqEuclidean returns the squared L2 distance between a and b.
// It skips the square root, which preserves ordering for nearest-pole
// assignment while being cheaper to compute.
func SqEuclidean(a, b []float64) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	d := floats.Distance(a, b, 2)
	return d * d, nil
}

// Manhattan returns the L1 (city-block) distance between a and b.
func Manhattan(a, b []float64) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	return floats.Distance(a, b, 1), nil
}

// Chebyshev returns the L-infinity distance between a and b.
func Chebyshev(a, b []float64) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	return floats.Distance(a, b, math.Inf(1)), nil
}

// Cosine returns the cosine distance (1 - cosine similarity) between a and b.
// If either vector has zero magnitude the similarity is taken as 0, so the
// distance is 1.
func Cosine(a, b []float64) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	magA := floats.Norm(a, 2)
	magB := floats.Norm(b, 2)
	if magA == 0 || magB == 0 {
		return 1, nil
	}
	return 1 - floats.Dot(a, b)/(magA*magB), nil
}

// ByName returns a built-in metric by its stable name.
//
// Persisted snapshots store the metric name in their header, so names must
// remain stable across releases.
func ByName(name string) (Func, error) {
	switch name {
	case "euclidean", "l2":
		return Euclidean, nil
	case "sqeuclidean":
		return SqEuclidean, nil
	case "manhattan", "cityblock", "l1":
		return Manhattan, nil
	case "chebyshev":
		return Chebyshev, nil
	case "cosine":
		return Cosine, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
}
