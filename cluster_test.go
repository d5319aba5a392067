package clam

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clamgo/clam/dataset"
)

func absMetric(a, b float64) (float64, error) {
	return math.Abs(a - b), nil
}

func scalarSource(values ...float64) *dataset.Dataset[float64] {
	return dataset.New(values, absMetric)
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func TestClusterBasics(t *testing.T) {
	src := scalarSource(0, 1, 2)
	c := NewCluster(src, []int{2, 0, 1})

	assert.Equal(t, "", c.Name())
	assert.Equal(t, 0, c.Depth())
	assert.Equal(t, 3, c.Cardinality())
	assert.Equal(t, []int{0, 1, 2}, c.Indices(), "indices are sorted ascending")
	assert.True(t, c.IsLeaf())
	assert.Equal(t, 1, c.ClusterCount())
}

func TestClusterEqual(t *testing.T) {
	src := scalarSource(0, 1, 2)

	a := NewCluster(src, []int{0, 1, 2})
	b := NewCluster(src, []int{0, 1, 2})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(nil))

	c := NewCluster(src, []int{0, 1})
	assert.False(t, a.Equal(c), "same name, different point set")

	d := NewCluster(src, []int{0, 1, 2})
	d.name = "0"
	assert.False(t, a.Equal(d), "different name")
}

func TestClusterContains(t *testing.T) {
	src := scalarSource(0, 1, 2, 3)
	c := NewCluster(src, []int{1, 3})

	assert.True(t, c.Contains(1))
	assert.True(t, c.Contains(3))
	assert.False(t, c.Contains(0))
	assert.False(t, c.Contains(-1))
	assert.Equal(t, uint64(2), c.PointSet().GetCardinality())
}

func TestSplitDeterministicPoles(t *testing.T) {
	// Provisional pole is the smallest owned index (value 0); the farthest
	// point from it is index 3 (value 11). Every other point joins its
	// nearest pole.
	src := scalarSource(0, 10, 1, 11)
	c := NewCluster(src, allIndices(4))

	split, err := c.split([]Criterion{MinPoints(1)})
	require.NoError(t, err)
	require.True(t, split)

	children := c.Children()
	require.Len(t, children, BranchFactor)
	assert.Equal(t, "0", children[0].Name())
	assert.Equal(t, []int{0, 2}, children[0].Indices())
	assert.Equal(t, "1", children[1].Name())
	assert.Equal(t, []int{1, 3}, children[1].Indices())
}

func TestSplitTieBreak(t *testing.T) {
	// Index 2 (value 1) is equidistant from both poles (values 0 and 2);
	// the tie goes to the pole with the smaller point index.
	src := scalarSource(0, 2, 1)
	c := NewCluster(src, allIndices(3))

	split, err := c.split([]Criterion{MinPoints(1)})
	require.NoError(t, err)
	require.True(t, split)

	assert.Equal(t, []int{0, 2}, c.Children()[0].Indices())
	assert.Equal(t, []int{1}, c.Children()[1].Indices())
}

func TestSplitCoincidentPoints(t *testing.T) {
	src := scalarSource(5, 5, 5)
	c := NewCluster(src, allIndices(3))

	split, err := c.split([]Criterion{MinPoints(1)})
	require.NoError(t, err)
	assert.False(t, split, "identical points cannot be separated")
	assert.True(t, c.IsLeaf())
}

func TestSplitEmptyCriteria(t *testing.T) {
	src := scalarSource(0, 1, 2, 10)
	c := NewCluster(src, allIndices(4))

	split, err := c.split(nil)
	require.NoError(t, err)
	assert.False(t, split)
}

func TestPartitionInvariants(t *testing.T) {
	src := scalarSource(0, 1, 2, 3, 10, 11, 12, 13)
	root := NewCluster(src, allIndices(8))
	require.NoError(t, root.Partition([]Criterion{MinPoints(1)}))

	var walk func(t *testing.T, c *Cluster)
	walk = func(t *testing.T, c *Cluster) {
		assert.Equal(t, len(c.Name()), c.Depth())
		if c.IsLeaf() {
			return
		}

		children := c.Children()
		require.Len(t, children, BranchFactor)
		union := children[0].PointSet()
		for b, child := range children {
			assert.Equal(t, c.Name()+string(rune('0'+b)), child.Name())
			assert.Positive(t, child.Cardinality())
			if b > 0 {
				overlap := children[b-1].PointSet()
				overlap.And(child.PointSet())
				assert.True(t, overlap.IsEmpty(), "siblings must be disjoint")
				union.Or(child.PointSet())
			}
		}
		assert.True(t, union.Equals(c.PointSet()), "children must cover the parent")

		for _, child := range children {
			walk(t, child)
		}
	}
	walk(t, root)

	// The leaves partition the root's point set.
	total := 0
	for _, leaf := range root.Leaves() {
		total += leaf.Cardinality()
	}
	assert.Equal(t, root.Cardinality(), total)
}

func TestLeavesAt(t *testing.T) {
	src := scalarSource(0, 1, 2, 10)
	root := NewCluster(src, allIndices(4))
	require.NoError(t, root.Partition([]Criterion{MinPoints(1)}))

	names := func(clusters []*Cluster) []string {
		out := make([]string, len(clusters))
		for i, c := range clusters {
			out[i] = c.Name()
		}
		return out
	}

	assert.Equal(t, []string{""}, names(root.LeavesAt(0)))
	assert.Equal(t, []string{"0", "1"}, names(root.LeavesAt(1)))
	// "1" is a leaf above the target depth and stands in for itself.
	assert.Equal(t, []string{"00", "01", "1"}, names(root.LeavesAt(2)))
	assert.Equal(t, names(root.Leaves()), names(root.LeavesAt(10)))
}

func TestClusterGeometry(t *testing.T) {
	src := scalarSource(0, 1, 2, 3, 4)
	c := NewCluster(src, allIndices(5))

	medoid, err := c.ArgMedoid()
	require.NoError(t, err)
	assert.Equal(t, 2, medoid)

	radius, err := c.Radius()
	require.NoError(t, err)
	assert.Equal(t, 2.0, radius)

	argRadius, err := c.ArgRadius()
	require.NoError(t, err)
	assert.Equal(t, 0, argRadius, "radius ties resolve to the smallest index")

	// Three of five points lie within radius/2 of the medoid.
	lfd, err := c.LocalFractalDimension()
	require.NoError(t, err)
	assert.InDelta(t, math.Log2(5.0/3.0), lfd, 1e-12)

	overlaps, err := c.Overlaps(2.5, 0.4)
	require.NoError(t, err)
	assert.False(t, overlaps)

	overlaps, err = c.Overlaps(2.5, 0.6)
	require.NoError(t, err)
	assert.True(t, overlaps)
}

func TestClusterGeometryDegenerate(t *testing.T) {
	src := scalarSource(7, 7, 7)
	c := NewCluster(src, allIndices(3))

	radius, err := c.Radius()
	require.NoError(t, err)
	assert.Zero(t, radius)

	lfd, err := c.LocalFractalDimension()
	require.NoError(t, err)
	assert.Zero(t, lfd)
}

func TestArgSamplesStride(t *testing.T) {
	values := make([]float64, 400)
	for i := range values {
		values[i] = float64(i)
	}
	src := scalarSource(values...)
	c := NewCluster(src, allIndices(400))

	samples := c.ArgSamples()
	assert.Len(t, samples, 20)
	assert.Equal(t, samples, c.ArgSamples(), "sampling is deterministic")

	small := NewCluster(src, allIndices(10))
	assert.Equal(t, allIndices(10), small.ArgSamples(), "small clusters use all points")
}
