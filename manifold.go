package clam

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clamgo/clam/dataset"
	"github.com/clamgo/clam/metric"
)

// Manifold holds a dataset and its fully built cluster tree.
//
// A manifold is immutable after Build: the dataset's distance cache keeps
// growing as queries come in, but the tree itself never changes. Points
// cannot be inserted or removed after construction.
type Manifold[P any] struct {
	ds         *dataset.Dataset[P]
	metricName string
	root       *Cluster
	opts       options
}

// Build constructs a manifold over points with an explicit metric function.
//
// It either fully succeeds or fails as a whole; no partially built tree is
// ever returned. Construction fails with ErrEmptyDataset for zero points
// and with ErrInvalidCriteria for a malformed criterion, both detected
// before any partitioning work begins.
func Build[P any](points []P, metricFn dataset.Metric[P], criteria []Criterion, optFns ...Option) (*Manifold[P], error) {
	return build(points, metricFn, "", criteria, optFns)
}

// BuildVectors constructs a manifold over float64 vectors with a metric
// selected by name (see metric.ByName). The name is recorded and written
// into snapshots so they are self-describing.
func BuildVectors(points [][]float64, metricName string, criteria []Criterion, optFns ...Option) (*Manifold[[]float64], error) {
	metricFn, err := metric.ByName(metricName)
	if err != nil {
		return nil, err
	}
	return build(points, dataset.Metric[[]float64](metricFn), metricName, criteria, optFns)
}

func build[P any](points []P, metricFn dataset.Metric[P], metricName string, criteria []Criterion, optFns []Option) (*Manifold[P], error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	start := time.Now()
	fail := func(err error) (*Manifold[P], error) {
		o.logger.LogBuild(len(points), 0, err)
		o.metrics.RecordBuild(0, time.Since(start), err)
		return nil, err
	}

	if len(points) == 0 {
		return fail(ErrEmptyDataset)
	}
	if err := validateCriteria(criteria); err != nil {
		return fail(err)
	}

	ds := dataset.New(points, metricFn)
	indices := make([]int, len(points))
	for i := range indices {
		indices[i] = i
	}
	root := NewCluster(ds, indices)

	var err error
	if o.parallelism > 1 {
		err = partitionLayered(root, criteria, o)
	} else {
		err = partitionRecursive(root, criteria, o)
	}
	if err != nil {
		return fail(err)
	}

	count := root.ClusterCount()
	o.logger.LogBuild(len(points), count, nil)
	o.metrics.RecordBuild(count, time.Since(start), nil)
	return &Manifold[P]{ds: ds, metricName: metricName, root: root, opts: o}, nil
}

func partitionRecursive(c *Cluster, criteria []Criterion, o options) error {
	start := time.Now()
	split, err := c.split(criteria)
	if err != nil {
		return err
	}
	if !split {
		return nil
	}
	o.metrics.RecordPartition(c.Depth(), time.Since(start))
	o.logger.LogPartition(c.Name(), c.Depth(), len(c.Children()))
	for _, child := range c.Children() {
		if err := partitionRecursive(child, criteria, o); err != nil {
			return err
		}
	}
	return nil
}

// partitionLayered builds the tree one layer at a time, partitioning the
// clusters of each layer concurrently. Pole selection and assignment for
// one cluster never read another unfinished cluster, and the distance
// cache tolerates concurrent writers, so the result is identical to the
// sequential build.
func partitionLayered(root *Cluster, criteria []Criterion, o options) error {
	frontier := []*Cluster{root}
	for len(frontier) > 0 {
		g := new(errgroup.Group)
		g.SetLimit(o.parallelism)
		for _, c := range frontier {
			g.Go(func() error {
				start := time.Now()
				split, err := c.split(criteria)
				if err != nil {
					return err
				}
				if split {
					o.metrics.RecordPartition(c.Depth(), time.Since(start))
					o.logger.LogPartition(c.Name(), c.Depth(), len(c.Children()))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		var next []*Cluster
		for _, c := range frontier {
			next = append(next, c.Children()...)
		}
		frontier = next
	}
	return nil
}

// Root returns the root cluster of the tree.
func (m *Manifold[P]) Root() *Cluster { return m.root }

// Dataset returns the shared dataset backing the tree.
func (m *Manifold[P]) Dataset() *dataset.Dataset[P] { return m.ds }

// MetricName returns the metric identifier the manifold was built with, or
// the empty string if an explicit metric function was supplied.
func (m *Manifold[P]) MetricName() string { return m.metricName }

// ClusterCount returns the total number of nodes in the tree.
func (m *Manifold[P]) ClusterCount() int { return m.root.ClusterCount() }

// Leaves returns every leaf cluster in left-to-right order. The leaves'
// index sets partition the full dataset.
func (m *Manifold[P]) Leaves() []*Cluster { return m.root.Leaves() }

// LeavesAt returns every node at exactly the target depth, with shallower
// leaves included as themselves.
func (m *Manifold[P]) LeavesAt(depth int) ([]*Cluster, error) {
	if depth < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	return m.root.LeavesAt(depth), nil
}

// Depth returns the depth of the deepest leaf.
func (m *Manifold[P]) Depth() int {
	depth := 0
	for _, leaf := range m.root.Leaves() {
		if d := leaf.Depth(); d > depth {
			depth = d
		}
	}
	return depth
}

// Ancestry returns the root-to-node lineage of the cluster with the given
// name, starting at the root.
func (m *Manifold[P]) Ancestry(name string) ([]*Cluster, error) {
	return ancestryByName(m.root, name)
}

// Select returns the cluster with the given name.
func (m *Manifold[P]) Select(name string) (*Cluster, error) {
	lineage, err := m.Ancestry(name)
	if err != nil {
		return nil, err
	}
	return lineage[len(lineage)-1], nil
}
