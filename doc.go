// Package clam builds hierarchical, divisive cluster trees ("manifolds")
// over a finite point set under an arbitrary pairwise distance function.
//
// A manifold recursively splits each cluster into two children around
// well-separated pole points until a pluggable set of stopping criteria
// halts recursion. The resulting tree supports approximate
// nearest-neighbor search, density estimation and other manifold-learning
// tasks:
//
//   - Deterministic construction: same points, metric and criteria always
//     produce the same tree
//   - Memoized distances: every pairwise distance is computed at most once
//     and cached under a compact triangular index
//   - Pluggable stopping criteria: MinPoints, MaxDepth, MinRadius, or any
//     Criterion implementation
//   - ρ-nearest-neighbor and k-NN search over the built tree
//   - Overlap graphs over tree layers with traversals and random walks
//   - Self-describing snapshots with selectable codec and compression
//
// # Quick Start
//
// Build a manifold over float64 vectors with a named metric:
//
//	points := [][]float64{{0, 0}, {0, 1}, {10, 10}, {10, 11}}
//	m, err := clam.BuildVectors(points, "euclidean", []clam.Criterion{
//	    clam.MinPoints(1),
//	})
//	if err != nil {
//	    panic(err)
//	}
//	for _, leaf := range m.Leaves() {
//	    fmt.Println(leaf.Name(), leaf.Indices())
//	}
//
// Arbitrary point types work with an explicit metric function:
//
//	type city struct{ lat, lon float64 }
//	m, err := clam.Build(cities, haversine, criteria)
//
// # Search
//
// Query points are any value the metric accepts; they need not be dataset
// members:
//
//	hits, err := m.FindKNN([]float64{0.2, 0.4}, 3)
//	near, err := m.FindPoints([]float64{0.2, 0.4}, 1.5)
//
// # Stopping Criteria
//
// Criteria are ANDed; the first one that fails stops recursion at that
// node. An empty criteria list builds a single-leaf tree. Malformed
// criteria are rejected with ErrInvalidCriteria before construction
// begins.
//
// # Snapshots
//
// Save persists the tree (not the points); Load rebuilds it over the same
// point collection:
//
//	var buf bytes.Buffer
//	err := m.Save(&buf)
//	m2, err := clam.LoadVectors(&buf, points)
package clam
