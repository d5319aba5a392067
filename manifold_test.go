package clam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clamgo/clam/metric"
)

func TestBuildThreePoints(t *testing.T) {
	points := [][]float64{{1}, {2}, {3}}
	m, err := BuildVectors(points, "euclidean", []Criterion{MinPoints(2)})
	require.NoError(t, err)

	assert.Equal(t, 3, m.ClusterCount())
	assert.Equal(t, "euclidean", m.MetricName())

	root := m.Root()
	assert.Equal(t, "", root.Name())
	assert.Equal(t, []int{0, 1, 2}, root.Indices())

	children := root.Children()
	require.Len(t, children, 2)
	// Poles are points 0 and 2; point 1 is equidistant and joins pole 0.
	assert.Equal(t, "0", children[0].Name())
	assert.Equal(t, []int{0, 1}, children[0].Indices())
	assert.True(t, children[0].IsLeaf())
	assert.Equal(t, "1", children[1].Name())
	assert.Equal(t, []int{2}, children[1].Indices())
	assert.True(t, children[1].IsLeaf())
}

func TestBuildEmptyCriteria(t *testing.T) {
	m, err := Build([]float64{0, 1, 2, 10}, absMetric, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, m.ClusterCount())
	assert.True(t, m.Root().IsLeaf())
	assert.Equal(t, 0, m.Depth())
}

func TestBuildErrors(t *testing.T) {
	t.Run("EmptyDataset", func(t *testing.T) {
		_, err := Build(nil, absMetric, []Criterion{MinPoints(1)})
		assert.ErrorIs(t, err, ErrEmptyDataset)
	})

	t.Run("InvalidCriteria", func(t *testing.T) {
		_, err := Build([]float64{1, 2}, absMetric, []Criterion{MinPoints(-1)})
		assert.ErrorIs(t, err, ErrInvalidCriteria)
	})

	t.Run("UnknownMetric", func(t *testing.T) {
		_, err := BuildVectors([][]float64{{1}}, "nope", nil)
		assert.ErrorIs(t, err, metric.ErrUnknownMetric)
	})
}

func TestBuildSinglePoint(t *testing.T) {
	m, err := Build([]float64{42}, absMetric, []Criterion{MinPoints(0)})
	require.NoError(t, err)
	assert.Equal(t, 1, m.ClusterCount())
	assert.True(t, m.Root().IsLeaf())
}

func sameTree(t *testing.T, a, b *Cluster) {
	t.Helper()
	require.True(t, a.Equal(b), "clusters %q and %q differ", a.Name(), b.Name())
	require.Equal(t, len(a.Children()), len(b.Children()))
	for i := range a.Children() {
		sameTree(t, a.Children()[i], b.Children()[i])
	}
}

func TestParallelBuildMatchesSequential(t *testing.T) {
	values := make([]float64, 64)
	for i := range values {
		values[i] = float64(i*i%97) / 3
	}

	sequential, err := Build(values, absMetric, []Criterion{MinPoints(2)})
	require.NoError(t, err)
	parallel, err := Build(values, absMetric, []Criterion{MinPoints(2)}, WithParallelism(4))
	require.NoError(t, err)

	assert.Equal(t, sequential.ClusterCount(), parallel.ClusterCount())
	sameTree(t, sequential.Root(), parallel.Root())
}

func TestBuildDeterministic(t *testing.T) {
	points := [][]float64{{3, 1}, {0, 0}, {7, 2}, {1, 1}, {8, 8}, {2, 5}}
	first, err := BuildVectors(points, "euclidean", []Criterion{MinPoints(1)})
	require.NoError(t, err)
	second, err := BuildVectors(points, "euclidean", []Criterion{MinPoints(1)})
	require.NoError(t, err)
	sameTree(t, first.Root(), second.Root())
}

func TestManifoldAccessors(t *testing.T) {
	m, err := Build([]float64{0, 1, 2, 10}, absMetric, []Criterion{MinPoints(1)})
	require.NoError(t, err)

	assert.Equal(t, 4, m.Dataset().Size())
	assert.Equal(t, "", m.MetricName())
	assert.Equal(t, 3, m.Depth())

	leaves, err := m.LeavesAt(1)
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	assert.Equal(t, "0", leaves[0].Name())
	assert.Equal(t, "1", leaves[1].Name())

	_, err = m.LeavesAt(-1)
	assert.ErrorIs(t, err, ErrInvalidDepth)
}

func TestAncestryAndSelect(t *testing.T) {
	m, err := Build([]float64{0, 1, 2, 10}, absMetric, []Criterion{MinPoints(1)})
	require.NoError(t, err)

	lineage, err := m.Ancestry("00")
	require.NoError(t, err)
	require.Len(t, lineage, 3)
	assert.Equal(t, "", lineage[0].Name())
	assert.Equal(t, "0", lineage[1].Name())
	assert.Equal(t, "00", lineage[2].Name())

	c, err := m.Select("01")
	require.NoError(t, err)
	assert.Equal(t, "01", c.Name())

	root, err := m.Select("")
	require.NoError(t, err)
	assert.Same(t, m.Root(), root)

	_, err = m.Select("9")
	assert.ErrorIs(t, err, ErrClusterNotFound)
	_, err = m.Select("111")
	assert.ErrorIs(t, err, ErrClusterNotFound)
}

func TestBuildWithObservers(t *testing.T) {
	collector := &BasicMetricsCollector{}
	m, err := Build([]float64{0, 1, 2, 10, 11, 12}, absMetric,
		[]Criterion{MinPoints(2)},
		WithMetrics(collector),
		WithLogger(NoopLogger()),
	)
	require.NoError(t, err)

	assert.Equal(t, 7, m.ClusterCount())
	assert.Equal(t, int64(1), collector.BuildCount.Load())
	assert.Equal(t, int64(3), collector.PartitionCount.Load(), "three internal nodes")
	assert.Equal(t, int64(1), collector.MaxDepthSeen.Load())
	assert.Zero(t, collector.BuildErrors.Load())

	_, err = Build(nil, absMetric, nil, WithMetrics(collector))
	require.Error(t, err)
	assert.Equal(t, int64(1), collector.BuildErrors.Load())
}
