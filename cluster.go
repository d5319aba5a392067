package clam

import (
	"math"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// BranchFactor is the number of children a partitioned cluster has. The
// partition loop is written over branches so the algorithm generalizes to K
// poles, but every cluster name digit must stay in {0, ..., BranchFactor-1}.
const BranchFactor = 2

// subsampleLimit caps the number of points used for medoid estimation.
// Above it, a deterministic stride over the ordered indices keeps the cost
// of geometry near O(n) while preserving reproducible builds.
const subsampleLimit = 100

// Source is the dataset view a cluster operates against: a point count and
// a memoized pairwise distance. The concrete implementation is
// dataset.Dataset; the interface keeps clusters independent of the point
// representation.
type Source interface {
	Size() int
	Distance(i, j int) (float64, error)
	OneToMany(i int, js []int) ([]float64, error)
}

// Cluster is a node in the hierarchical partition tree. It owns a subset of
// point indices and, unless it is a leaf, exactly BranchFactor children
// whose index sets partition its own.
//
// The name encodes the root-to-node path: the root has the empty name, and
// a child appends one digit indicating its branch, so depth == len(name).
// Within one tree the name uniquely identifies a cluster and serves as its
// hash/map key.
//
// Once constructed (including children) a cluster is immutable apart from
// lazily computed geometry caches.
type Cluster struct {
	src      Source
	indices  []int // ascending, no duplicates
	name     string
	children []*Cluster

	mu         sync.Mutex
	bitmap     *roaring.Bitmap
	argSamples []int
	argMedoid  int
	hasMedoid  bool
	argRadius  int
	radius     float64
	hasRadius  bool
	lfd        float64
	hasLFD     bool
	candidates map[*Cluster]float64
}

// NewCluster creates a root-named cluster over the given point indices.
// Indices must be non-empty, duplicate-free and in range of src; they are
// sorted ascending.
func NewCluster(src Source, indices []int) *Cluster {
	idx := slices.Clone(indices)
	slices.Sort(idx)
	return &Cluster{src: src, indices: idx}
}

// Name returns the path-derived name. The root has the empty name.
func (c *Cluster) Name() string { return c.name }

// String implements fmt.Stringer.
func (c *Cluster) String() string { return c.name }

// Cardinality returns the number of points the cluster owns.
func (c *Cluster) Cardinality() int { return len(c.indices) }

// Depth returns the depth of the cluster in the tree.
func (c *Cluster) Depth() int { return len(c.name) }

// Indices returns a copy of the point indices owned by the cluster, in
// ascending order.
func (c *Cluster) Indices() []int { return slices.Clone(c.indices) }

// Children returns the child clusters, or nil for a leaf.
func (c *Cluster) Children() []*Cluster { return c.children }

// IsLeaf reports whether the cluster has no children.
func (c *Cluster) IsLeaf() bool { return c.children == nil }

// ClusterCount returns the total number of nodes in the subtree rooted at
// the cluster, including itself.
func (c *Cluster) ClusterCount() int {
	count := 1
	for _, child := range c.children {
		count += child.ClusterCount()
	}
	return count
}

// Equal reports whether two clusters have the same name and the same point
// set. Name alone determines tree position; comparing indices as well is a
// correctness safeguard.
func (c *Cluster) Equal(other *Cluster) bool {
	if other == nil || c.name != other.name {
		return false
	}
	return c.pointSet().Equals(other.pointSet())
}

// Contains reports whether the cluster owns the given point index.
func (c *Cluster) Contains(i int) bool {
	if i < 0 {
		return false
	}
	return c.pointSet().Contains(uint32(i))
}

// PointSet returns a copy of the cluster's point-membership bitmap.
func (c *Cluster) PointSet() *roaring.Bitmap {
	return c.pointSet().Clone()
}

func (c *Cluster) pointSet() *roaring.Bitmap {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bitmap == nil {
		b := roaring.New()
		for _, idx := range c.indices {
			b.Add(uint32(idx))
		}
		c.bitmap = b
	}
	return c.bitmap
}

// Leaves returns every leaf of the subtree in left-to-right order.
func (c *Cluster) Leaves() []*Cluster {
	if c.children == nil {
		return []*Cluster{c}
	}
	var out []*Cluster
	for _, child := range c.children {
		out = append(out, child.Leaves()...)
	}
	return out
}

// LeavesAt returns every node at exactly the target depth, in left-to-right
// order. A leaf shallower than the target depth is included as itself since
// it cannot be split further.
func (c *Cluster) LeavesAt(depth int) []*Cluster {
	if c.Depth() == depth || c.children == nil {
		return []*Cluster{c}
	}
	var out []*Cluster
	for _, child := range c.children {
		out = append(out, child.LeavesAt(depth)...)
	}
	return out
}

// Partition recursively splits the cluster under the given criteria,
// building the complete subtree. Criteria are ANDed; failing any one stops
// recursion at this node. An empty criteria list means no splitting at all.
func (c *Cluster) Partition(criteria []Criterion) error {
	split, err := c.split(criteria)
	if err != nil {
		return err
	}
	if !split {
		return nil
	}
	for _, child := range c.children {
		if err := child.Partition(criteria); err != nil {
			return err
		}
	}
	return nil
}

// split performs a single partition step: criteria checks, pole selection
// and nearest-pole assignment. It reports whether children were created.
func (c *Cluster) split(criteria []Criterion) (bool, error) {
	if len(criteria) == 0 || len(c.indices) < BranchFactor {
		return false, nil
	}
	for _, crit := range criteria {
		ok, err := crit.Check(c)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	poles, err := c.findPoles()
	if err != nil {
		return false, err
	}
	if poles == nil {
		// All owned points coincide; nothing to separate.
		return false, nil
	}

	buckets := make([][]int, len(poles))
	for b, p := range poles {
		buckets[b] = []int{p}
	}
	for _, idx := range c.indices {
		if slices.Contains(poles, idx) {
			continue
		}
		best := 0
		bestDist := math.Inf(1)
		for b, p := range poles {
			d, err := c.src.Distance(idx, p)
			if err != nil {
				return false, err
			}
			// Exact ties go to the pole with the smaller point index.
			if d < bestDist || (d == bestDist && p < poles[best]) {
				best, bestDist = b, d
			}
		}
		buckets[best] = append(buckets[best], idx)
	}

	children := make([]*Cluster, len(poles))
	for b, idxs := range buckets {
		slices.Sort(idxs)
		children[b] = &Cluster{
			src:     c.src,
			indices: idxs,
			name:    c.name + string(rune('0'+b)),
		}
	}
	c.children = children
	return true, nil
}

// findPoles selects BranchFactor well-separated seed points: the cluster's
// first index as a provisional pole and the point farthest from it. Ties on
// the farthest distance resolve to the smallest index. Returns nil if every
// owned point coincides with the provisional pole.
func (c *Cluster) findPoles() ([]int, error) {
	provisional := c.indices[0]
	dists, err := c.src.OneToMany(provisional, c.indices)
	if err != nil {
		return nil, err
	}
	farthest := provisional
	far := 0.0
	for n, idx := range c.indices {
		if dists[n] > far {
			far, farthest = dists[n], idx
		}
	}
	if far == 0 {
		return nil, nil
	}
	return []int{provisional, farthest}, nil
}

// ArgSamples returns the indices sampled for medoid estimation. Small
// clusters use all their points; larger ones a deterministic stride of
// about sqrt(n) points over the ordered index slice.
func (c *Cluster) ArgSamples() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.argSamples == nil {
		n := len(c.indices)
		if n <= subsampleLimit {
			c.argSamples = c.indices
		} else {
			k := int(math.Sqrt(float64(n)))
			step := n / k
			samples := make([]int, 0, k)
			for i := 0; i < n && len(samples) < k; i += step {
				samples = append(samples, c.indices[i])
			}
			c.argSamples = samples
		}
	}
	return slices.Clone(c.argSamples)
}

// ArgMedoid returns the index of the cluster's medoid: the sampled point
// minimizing the sum of distances to the other samples. Computed once and
// cached.
func (c *Cluster) ArgMedoid() (int, error) {
	c.mu.Lock()
	if c.hasMedoid {
		v := c.argMedoid
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	samples := c.ArgSamples()
	best := samples[0]
	bestSum := math.Inf(1)
	for _, i := range samples {
		dists, err := c.src.OneToMany(i, samples)
		if err != nil {
			return 0, err
		}
		var sum float64
		for _, d := range dists {
			sum += d
		}
		if sum < bestSum {
			best, bestSum = i, sum
		}
	}

	c.mu.Lock()
	c.argMedoid = best
	c.hasMedoid = true
	c.mu.Unlock()
	return best, nil
}

// Radius returns the maximum distance from the medoid to any owned point.
func (c *Cluster) Radius() (float64, error) {
	_, r, err := c.radiusInfo()
	return r, err
}

// ArgRadius returns the index of the owned point farthest from the medoid.
func (c *Cluster) ArgRadius() (int, error) {
	a, _, err := c.radiusInfo()
	return a, err
}

func (c *Cluster) radiusInfo() (int, float64, error) {
	c.mu.Lock()
	if c.hasRadius {
		a, r := c.argRadius, c.radius
		c.mu.Unlock()
		return a, r, nil
	}
	c.mu.Unlock()

	medoid, err := c.ArgMedoid()
	if err != nil {
		return 0, 0, err
	}
	dists, err := c.src.OneToMany(medoid, c.indices)
	if err != nil {
		return 0, 0, err
	}
	argRadius, radius := medoid, 0.0
	for n, idx := range c.indices {
		if dists[n] > radius {
			radius, argRadius = dists[n], idx
		}
	}

	c.mu.Lock()
	c.argRadius, c.radius = argRadius, radius
	c.hasRadius = true
	c.mu.Unlock()
	return argRadius, radius, nil
}

// LocalFractalDimension returns log2 of the ratio of owned points to points
// within half the radius of the medoid. Zero-radius clusters (all points
// coincident) have dimension 0.
func (c *Cluster) LocalFractalDimension() (float64, error) {
	c.mu.Lock()
	if c.hasLFD {
		v := c.lfd
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	_, radius, err := c.radiusInfo()
	if err != nil {
		return 0, err
	}
	var lfd float64
	if radius > 0 {
		medoid, err := c.ArgMedoid()
		if err != nil {
			return 0, err
		}
		dists, err := c.src.OneToMany(medoid, c.indices)
		if err != nil {
			return 0, err
		}
		count := 0
		for _, d := range dists {
			if d <= radius/2 {
				count++
			}
		}
		// The medoid itself is always counted, so count >= 1.
		lfd = math.Log2(float64(len(c.indices)) / float64(count))
	}

	c.mu.Lock()
	c.lfd = lfd
	c.hasLFD = true
	c.mu.Unlock()
	return lfd, nil
}

// Overlaps reports whether a query at the given distance from the cluster's
// medoid could contain points of the cluster within the query radius.
func (c *Cluster) Overlaps(distanceToMedoid, radius float64) (bool, error) {
	r, err := c.Radius()
	if err != nil {
		return false, err
	}
	return distanceToMedoid <= r+radius, nil
}

func (c *Cluster) setCandidates(m map[*Cluster]float64) {
	c.mu.Lock()
	c.candidates = m
	c.mu.Unlock()
}

func (c *Cluster) getCandidates() map[*Cluster]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidates
}
