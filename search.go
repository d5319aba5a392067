package clam

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// ClusterMatch pairs a cluster with the query's distance to its medoid.
type ClusterMatch struct {
	Cluster  *Cluster
	Distance float64
}

// PointMatch pairs a point index with its distance to the query.
type PointMatch struct {
	Index    int
	Distance float64
}

// FindClusters returns the clusters at the target depth whose volumes
// overlap a ball of the given radius around the query point, together with
// the query's distance to each cluster's medoid. A depth of -1 means the
// full tree depth. Shallower leaves on overlapping branches are included.
func (m *Manifold[P]) FindClusters(q P, radius float64, depth int) ([]ClusterMatch, error) {
	if depth == -1 {
		depth = m.Depth()
	}
	if depth < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	return m.treeSearch(q, radius, depth)
}

func (m *Manifold[P]) treeSearch(q P, radius float64, depth int) ([]ClusterMatch, error) {
	d, err := m.distanceToMedoid(q, m.root)
	if err != nil {
		return nil, err
	}
	ok, err := m.root.Overlaps(d, radius)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var results []ClusterMatch
	candidates := []ClusterMatch{{Cluster: m.root, Distance: d}}
	for cur := m.root.Depth(); cur < depth && len(candidates) > 0; cur++ {
		var next []ClusterMatch
		for _, cand := range candidates {
			// Clusters that were never partitioned stay in as results.
			if cand.Cluster.IsLeaf() {
				results = append(results, cand)
				continue
			}
			for _, child := range cand.Cluster.Children() {
				cd, err := m.distanceToMedoid(q, child)
				if err != nil {
					return nil, err
				}
				overlap, err := child.Overlaps(cd, radius)
				if err != nil {
					return nil, err
				}
				if overlap {
					next = append(next, ClusterMatch{Cluster: child, Distance: cd})
				}
			}
		}
		candidates = next
	}
	results = append(results, candidates...)

	slices.SortFunc(results, func(a, b ClusterMatch) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Cluster.Name(), b.Cluster.Name())
	})
	return results, nil
}

func (m *Manifold[P]) distanceToMedoid(q P, c *Cluster) (float64, error) {
	medoid, err := c.ArgMedoid()
	if err != nil {
		return 0, err
	}
	return m.ds.DistanceToPoint(q, medoid)
}

// FindPoints returns the indices of all points within radius of the query,
// sorted by distance (ties by index).
func (m *Manifold[P]) FindPoints(q P, radius float64) ([]PointMatch, error) {
	start := time.Now()
	matches, err := m.findPoints(q, radius)
	m.opts.metrics.RecordSearch(0, time.Since(start), err)
	m.opts.logger.LogSearch(0, len(matches), err)
	return matches, err
}

func (m *Manifold[P]) findPoints(q P, radius float64) ([]PointMatch, error) {
	clusters, err := m.treeSearch(q, radius, m.Depth())
	if err != nil {
		return nil, err
	}
	var matches []PointMatch
	for _, cand := range clusters {
		for _, idx := range cand.Cluster.Indices() {
			d, err := m.ds.DistanceToPoint(q, idx)
			if err != nil {
				return nil, err
			}
			if d <= radius {
				matches = append(matches, PointMatch{Index: idx, Distance: d})
			}
		}
	}
	slices.SortFunc(matches, func(a, b PointMatch) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return matches, nil
}

// FindKNN returns the k nearest neighbors of the query point. It starts
// from the mean leaf radius and doubles the search radius until enough
// points are found. If k exceeds the dataset size, every point is
// returned.
func (m *Manifold[P]) FindKNN(q P, k int) ([]PointMatch, error) {
	start := time.Now()
	matches, err := m.findKNN(q, k)
	m.opts.metrics.RecordSearch(k, time.Since(start), err)
	m.opts.logger.LogSearch(k, len(matches), err)
	return matches, err
}

func (m *Manifold[P]) findKNN(q P, k int) ([]PointMatch, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	want := min(k, m.ds.Size())

	leaves := m.Leaves()
	var radius float64
	for _, leaf := range leaves {
		r, err := leaf.Radius()
		if err != nil {
			return nil, err
		}
		radius += r
	}
	radius /= float64(len(leaves))
	radius = max(radius, 1e-16)

	matches, err := m.findPoints(q, radius)
	if err != nil {
		return nil, err
	}
	for len(matches) < want {
		radius *= 2
		matches, err = m.findPoints(q, radius)
		if err != nil {
			return nil, err
		}
	}
	return matches[:min(k, len(matches))], nil
}
