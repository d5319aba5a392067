package clam

import (
	"fmt"
)

// Criterion decides whether a cluster should be split further. Check
// returns true to continue splitting. Criteria in a list are ANDed; the
// first false stops recursion at that node.
//
// Implementations must be pure functions of the cluster (and transitively
// its dataset) so that builds stay deterministic and reproducible.
type Criterion interface {
	Check(c *Cluster) (bool, error)
}

// Validator is an optional interface for criteria that can detect a
// malformed configuration before construction begins.
type Validator interface {
	Validate() error
}

func validateCriteria(criteria []Criterion) error {
	for _, crit := range criteria {
		v, ok := crit.(Validator)
		if !ok {
			continue
		}
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCriteria, err)
		}
	}
	return nil
}

// MinPoints returns a criterion that continues splitting while a cluster
// owns more than threshold points.
func MinPoints(threshold int) Criterion {
	return minPoints{threshold: threshold}
}

type minPoints struct {
	threshold int
}

func (m minPoints) Check(c *Cluster) (bool, error) {
	return c.Cardinality() > m.threshold, nil
}

func (m minPoints) Validate() error {
	if m.threshold < 0 {
		return fmt.Errorf("min points threshold must not be negative, got %d", m.threshold)
	}
	return nil
}

func (m minPoints) String() string { return fmt.Sprintf("MinPoints(%d)", m.threshold) }

// MaxDepth returns a criterion that continues splitting while a cluster is
// shallower than limit.
func MaxDepth(limit int) Criterion {
	return maxDepth{limit: limit}
}

type maxDepth struct {
	limit int
}

func (m maxDepth) Check(c *Cluster) (bool, error) {
	return c.Depth() < m.limit, nil
}

func (m maxDepth) Validate() error {
	if m.limit < 0 {
		return fmt.Errorf("max depth limit must not be negative, got %d", m.limit)
	}
	return nil
}

func (m maxDepth) String() string { return fmt.Sprintf("MaxDepth(%d)", m.limit) }

// MinRadius returns a criterion that continues splitting while a cluster's
// radius exceeds limit.
func MinRadius(limit float64) Criterion {
	return minRadius{limit: limit}
}

type minRadius struct {
	limit float64
}

func (m minRadius) Check(c *Cluster) (bool, error) {
	r, err := c.Radius()
	if err != nil {
		return false, err
	}
	return r > m.limit, nil
}

func (m minRadius) Validate() error {
	if m.limit < 0 {
		return fmt.Errorf("min radius limit must not be negative, got %v", m.limit)
	}
	return nil
}

func (m minRadius) String() string { return fmt.Sprintf("MinRadius(%v)", m.limit) }
