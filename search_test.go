package clam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two well-separated groups of 1-D points. With MinPoints(2) the tree has
// leaves "00"=[0 1], "01"=[2], "10"=[3 4] and "11"=[5].
func searchManifold(t *testing.T, optFns ...Option) *Manifold[[]float64] {
	t.Helper()
	points := [][]float64{{0}, {1}, {2}, {10}, {11}, {12}}
	m, err := BuildVectors(points, "euclidean", []Criterion{MinPoints(2)}, optFns...)
	require.NoError(t, err)
	return m
}

func matchIndices(matches []PointMatch) []int {
	out := make([]int, len(matches))
	for i, pm := range matches {
		out[i] = pm.Index
	}
	return out
}

func TestFindPoints(t *testing.T) {
	m := searchManifold(t)

	matches, err := m.FindPoints([]float64{1.5}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, matchIndices(matches))
	for _, pm := range matches {
		assert.Equal(t, 0.5, pm.Distance)
	}
}

func TestFindPointsNoMatches(t *testing.T) {
	m := searchManifold(t)

	matches, err := m.FindPoints([]float64{100}, 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindPointsWholeDataset(t *testing.T) {
	m := searchManifold(t)

	matches, err := m.FindPoints([]float64{6}, 100)
	require.NoError(t, err)
	assert.Len(t, matches, 6)

	// Sorted by distance, ties by index.
	for i := 1; i < len(matches); i++ {
		if matches[i-1].Distance == matches[i].Distance {
			assert.Less(t, matches[i-1].Index, matches[i].Index)
		} else {
			assert.Less(t, matches[i-1].Distance, matches[i].Distance)
		}
	}
}

func TestFindClusters(t *testing.T) {
	m := searchManifold(t)

	matches, err := m.FindClusters([]float64{1.5}, 0.6, -1)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "01", matches[0].Cluster.Name())
	assert.Equal(t, 0.5, matches[0].Distance)
	assert.Equal(t, "00", matches[1].Cluster.Name())
	assert.Equal(t, 1.5, matches[1].Distance)
}

func TestFindClustersAtRoot(t *testing.T) {
	m := searchManifold(t)

	matches, err := m.FindClusters([]float64{1.5}, 1, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Same(t, m.Root(), matches[0].Cluster)
}

func TestFindClustersInvalidDepth(t *testing.T) {
	m := searchManifold(t)

	_, err := m.FindClusters([]float64{1.5}, 1, -2)
	assert.ErrorIs(t, err, ErrInvalidDepth)
}

func TestFindKNN(t *testing.T) {
	m := searchManifold(t)

	matches, err := m.FindKNN([]float64{10.5}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, matchIndices(matches))
}

func TestFindKNNExpandsRadius(t *testing.T) {
	m := searchManifold(t)

	// Far outside every leaf ball; the radius must double several times.
	matches, err := m.FindKNN([]float64{50}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4, 3}, matchIndices(matches))
}

func TestFindKNNMoreThanDataset(t *testing.T) {
	m := searchManifold(t)

	matches, err := m.FindKNN([]float64{1}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 6)
	assert.Equal(t, 1, matches[0].Index, "exact match first")
	assert.Zero(t, matches[0].Distance)
}

func TestFindKNNInvalidK(t *testing.T) {
	m := searchManifold(t)

	for _, k := range []int{0, -3} {
		_, err := m.FindKNN([]float64{1}, k)
		assert.ErrorIs(t, err, ErrInvalidK)
	}
}

func TestSearchRecordsMetrics(t *testing.T) {
	collector := &BasicMetricsCollector{}
	m := searchManifold(t, WithMetrics(collector))

	_, err := m.FindKNN([]float64{1}, 2)
	require.NoError(t, err)
	_, err = m.FindPoints([]float64{1}, 1)
	require.NoError(t, err)
	_, err = m.FindKNN([]float64{1}, 0)
	require.Error(t, err)

	assert.Equal(t, int64(3), collector.SearchCount.Load())
	assert.Equal(t, int64(1), collector.SearchErrors.Load())
}
