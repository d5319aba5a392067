package clam

import (
	"errors"
)

var (
	// ErrEmptyDataset is returned when Build is called with zero points.
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrInvalidCriteria is returned when a stopping criterion is
	// malformed (e.g. a negative threshold). It is detected before any
	// partitioning work begins.
	ErrInvalidCriteria = errors.New("invalid criteria")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrClusterNotFound is returned when a cluster name does not resolve
	// to a node in the tree.
	ErrClusterNotFound = errors.New("cluster not found")

	// ErrInvalidDepth is returned when a depth argument is out of range
	// for the tree.
	ErrInvalidDepth = errors.New("invalid depth")
)

// Distance-level failures surface unchanged from the dataset package:
// *dataset.ErrIndexOutOfRange for queries on invalid indices and
// *dataset.ErrMetricFailure when the metric errors or returns a non-finite
// value. Both unwind construction fully; a failed Build never exposes a
// partially built tree.
