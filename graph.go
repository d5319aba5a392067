package clam

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// candidateRadiusFactor widens the candidate filter during edge building so
// that near-miss neighbors are kept until exact radii decide.
const candidateRadiusFactor = 4

// minEdgeDistance floors edge distances when deriving transition
// probabilities, so coincident medoids don't produce infinite weights.
const minEdgeDistance = 1e-12

// ErrNotInGraph is returned when an operation references a cluster outside
// the graph.
var ErrNotInGraph = errors.New("cluster not in graph")

// ErrSubsumedStart is returned when a traversal or random walk is started
// from a subsumed cluster.
var ErrSubsumedStart = errors.New("cannot start from a subsumed cluster")

// Edge connects a cluster to a neighbor whose volume overlaps its own.
// Probability is the transition probability used by random walks; it is
// non-zero only on edges between walkable clusters.
type Edge struct {
	Neighbor    *Cluster
	Distance    float64
	Probability float64
}

// Graph connects clusters with overlapping volumes. Nodes are clusters of
// one tree (typically the leaves or one layer); two clusters have an edge
// if the distance between their medoids is at most the sum of their radii.
//
// Clusters subsumed by a neighbor (the neighbor's ball contains theirs) are
// excluded from walks and traversals but remain reachable through their
// subsuming neighbors.
type Graph struct {
	root     *Cluster
	clusters []*Cluster // sorted by (depth, name)
	inGraph  map[*Cluster]bool
	edges    map[*Cluster][]Edge
	subsumed map[*Cluster]bool
	built    bool
	rng      *rand.Rand
}

// NewGraph creates a graph over the given clusters of the tree rooted at
// root. Call BuildEdges before querying neighbors, components or walks.
func NewGraph(root *Cluster, clusters []*Cluster, seed int64) *Graph {
	sorted := slices.Clone(clusters)
	slices.SortFunc(sorted, func(a, b *Cluster) int {
		if c := cmp.Compare(a.Depth(), b.Depth()); c != 0 {
			return c
		}
		return cmp.Compare(a.Name(), b.Name())
	})
	inGraph := make(map[*Cluster]bool, len(sorted))
	for _, c := range sorted {
		inGraph[c] = true
	}
	return &Graph{
		root:     root,
		clusters: sorted,
		inGraph:  inGraph,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// LeafGraph builds the overlap graph over the manifold's leaves.
func (m *Manifold[P]) LeafGraph() (*Graph, error) {
	g := NewGraph(m.root, m.Leaves(), m.opts.seed)
	if err := g.BuildEdges(); err != nil {
		return nil, err
	}
	return g, nil
}

// Clusters returns the graph's clusters sorted by depth, then name.
func (g *Graph) Clusters() []*Cluster { return slices.Clone(g.clusters) }

// Cardinality returns the number of clusters in the graph.
func (g *Graph) Cardinality() int { return len(g.clusters) }

// Population returns the total number of points owned by the graph's
// clusters.
func (g *Graph) Population() int {
	total := 0
	for _, c := range g.clusters {
		total += c.Cardinality()
	}
	return total
}

// PointSet returns the union of the clusters' point-membership bitmaps.
func (g *Graph) PointSet() *roaring.Bitmap {
	out := roaring.New()
	for _, c := range g.clusters {
		out.Or(c.pointSet())
	}
	return out
}

// Depth returns the depth of the deepest cluster in the graph.
func (g *Graph) Depth() int {
	depth := 0
	for _, c := range g.clusters {
		if d := c.Depth(); d > depth {
			depth = d
		}
	}
	return depth
}

// Contains reports whether the cluster is a node of the graph.
func (g *Graph) Contains(c *Cluster) bool { return g.inGraph[c] }

// BuildEdges computes all edges, the walkable/subsumed split and the
// transition probabilities. It is idempotent.
func (g *Graph) BuildEdges() error {
	if g.built {
		return nil
	}
	g.root.setCandidates(map[*Cluster]float64{g.root: 0})
	g.edges = make(map[*Cluster][]Edge, len(g.clusters))

	for _, c := range g.clusters {
		if err := g.findCandidates(c); err != nil {
			return err
		}
	}
	for _, c := range g.clusters {
		rc, err := c.Radius()
		if err != nil {
			return err
		}
		for neighbor, d := range c.getCandidates() {
			if neighbor == c || !g.inGraph[neighbor] {
				continue
			}
			rn, err := neighbor.Radius()
			if err != nil {
				return err
			}
			if d <= rc+rn {
				g.addEdge(c, neighbor, d)
			}
		}
	}
	g.sortEdges()

	if err := g.splitSubsumed(); err != nil {
		return err
	}
	g.computeProbabilities()
	g.built = true
	return nil
}

// findCandidates propagates candidate neighbor sets down the ancestry of c,
// so that edge building only ever inspects clusters whose ancestors were
// already close. Candidates of a node are clusters no deeper than it whose
// medoid lies within the candidate's radius plus a slack proportional to
// the local radius.
func (g *Graph) findCandidates(c *Cluster) error {
	lineage, err := ancestryByName(g.root, c.Name())
	if err != nil {
		return err
	}
	radius, err := g.root.Radius()
	if err != nil {
		return err
	}
	for depth := 0; depth+1 < len(lineage); depth++ {
		parent, child := lineage[depth], lineage[depth+1]
		if r, err := child.Radius(); err != nil {
			return err
		} else if r > 0 {
			radius = r
		}
		if child.getCandidates() != nil {
			continue
		}

		pool := make(map[*Cluster]bool)
		for pc := range parent.getCandidates() {
			pool[pc] = true
			if pc.Depth() == depth {
				for _, cc := range pc.Children() {
					pool[cc] = true
				}
			}
		}

		childMedoid, err := child.ArgMedoid()
		if err != nil {
			return err
		}
		out := make(map[*Cluster]float64, len(pool))
		for pc := range pool {
			pcMedoid, err := pc.ArgMedoid()
			if err != nil {
				return err
			}
			d, err := child.src.Distance(childMedoid, pcMedoid)
			if err != nil {
				return err
			}
			pcRadius, err := pc.Radius()
			if err != nil {
				return err
			}
			if d <= pcRadius+radius*candidateRadiusFactor {
				out[pc] = d
			}
		}
		child.setCandidates(out)
	}
	return nil
}

func (g *Graph) addEdge(a, b *Cluster, d float64) {
	if !g.hasEdge(a, b) {
		g.edges[a] = append(g.edges[a], Edge{Neighbor: b, Distance: d})
	}
	if !g.hasEdge(b, a) {
		g.edges[b] = append(g.edges[b], Edge{Neighbor: a, Distance: d})
	}
}

func (g *Graph) hasEdge(a, b *Cluster) bool {
	for _, e := range g.edges[a] {
		if e.Neighbor == b {
			return true
		}
	}
	return false
}

func (g *Graph) sortEdges() {
	for _, edges := range g.edges {
		slices.SortFunc(edges, func(a, b Edge) int {
			if c := cmp.Compare(a.Neighbor.Depth(), b.Neighbor.Depth()); c != 0 {
				return c
			}
			return cmp.Compare(a.Neighbor.Name(), b.Neighbor.Name())
		})
	}
}

// splitSubsumed marks every cluster whose ball lies entirely inside a
// neighbor's ball.
func (g *Graph) splitSubsumed() error {
	g.subsumed = make(map[*Cluster]bool)
	for _, c := range g.clusters {
		rc, err := c.Radius()
		if err != nil {
			return err
		}
		for _, e := range g.edges[c] {
			rn, err := e.Neighbor.Radius()
			if err != nil {
				return err
			}
			if rn >= e.Distance+rc {
				g.subsumed[c] = true
				break
			}
		}
	}
	return nil
}

// computeProbabilities assigns inverse-distance transition probabilities to
// edges between walkable clusters. Probabilities from one cluster sum to 1.
func (g *Graph) computeProbabilities() {
	for _, c := range g.clusters {
		if g.subsumed[c] {
			continue
		}
		edges := g.edges[c]
		var factor float64
		for _, e := range edges {
			if !g.subsumed[e.Neighbor] {
				factor += 1 / max(e.Distance, minEdgeDistance)
			}
		}
		if factor == 0 {
			continue
		}
		for i, e := range edges {
			if !g.subsumed[e.Neighbor] {
				edges[i].Probability = 1 / (max(e.Distance, minEdgeDistance) * factor)
			}
		}
	}
}

// Edges returns a copy of the cluster's edge list.
func (g *Graph) Edges(c *Cluster) ([]Edge, error) {
	if !g.inGraph[c] {
		return nil, fmt.Errorf("%w: %q", ErrNotInGraph, c.Name())
	}
	return slices.Clone(g.edges[c]), nil
}

// Neighbors returns every neighbor of the cluster.
func (g *Graph) Neighbors(c *Cluster) ([]*Cluster, error) {
	edges, err := g.Edges(c)
	if err != nil {
		return nil, err
	}
	out := make([]*Cluster, len(edges))
	for i, e := range edges {
		out[i] = e.Neighbor
	}
	return out, nil
}

// IsSubsumed reports whether the cluster's ball lies inside a neighbor's.
func (g *Graph) IsSubsumed(c *Cluster) bool { return g.subsumed[c] }

// Walkable returns the clusters that are not subsumed by any neighbor, in
// graph order.
func (g *Graph) Walkable() []*Cluster {
	var out []*Cluster
	for _, c := range g.clusters {
		if !g.subsumed[c] {
			out = append(out, c)
		}
	}
	return out
}

// Subsumed returns the clusters subsumed by some neighbor, in graph order.
func (g *Graph) Subsumed() []*Cluster {
	var out []*Cluster
	for _, c := range g.clusters {
		if g.subsumed[c] {
			out = append(out, c)
		}
	}
	return out
}

func (g *Graph) walkableNeighbors(c *Cluster) []Edge {
	var out []Edge
	for _, e := range g.edges[c] {
		if !g.subsumed[e.Neighbor] {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) subsumedNeighbors(c *Cluster) []Edge {
	var out []Edge
	for _, e := range g.edges[c] {
		if g.subsumed[e.Neighbor] {
			out = append(out, e)
		}
	}
	return out
}

// BFT performs a breadth-first traversal over walkable clusters starting at
// start, then attaches the clusters subsumed by any visited cluster. The
// result is in visit order.
func (g *Graph) BFT(start *Cluster) ([]*Cluster, error) {
	return g.traverse(start, true)
}

// DFT performs a depth-first traversal over walkable clusters starting at
// start, then attaches the clusters subsumed by any visited cluster. The
// result is in visit order.
func (g *Graph) DFT(start *Cluster) ([]*Cluster, error) {
	return g.traverse(start, false)
}

func (g *Graph) traverse(start *Cluster, breadthFirst bool) ([]*Cluster, error) {
	if !g.inGraph[start] {
		return nil, fmt.Errorf("%w: %q", ErrNotInGraph, start.Name())
	}
	if g.subsumed[start] {
		return nil, fmt.Errorf("%w: %q", ErrSubsumedStart, start.Name())
	}

	visited := make(map[*Cluster]bool)
	var order []*Cluster
	frontier := []*Cluster{start}
	for len(frontier) > 0 {
		var c *Cluster
		if breadthFirst {
			c, frontier = frontier[0], frontier[1:]
		} else {
			c, frontier = frontier[len(frontier)-1], frontier[:len(frontier)-1]
		}
		if visited[c] {
			continue
		}
		visited[c] = true
		order = append(order, c)
		for _, e := range g.walkableNeighbors(c) {
			if !visited[e.Neighbor] {
				frontier = append(frontier, e.Neighbor)
			}
		}
	}

	for _, c := range slices.Clone(order) {
		for _, e := range g.subsumedNeighbors(c) {
			if !visited[e.Neighbor] {
				visited[e.Neighbor] = true
				order = append(order, e.Neighbor)
			}
		}
	}
	return order, nil
}

// Components returns the connected components of the graph, each as a
// cluster list in graph order.
func (g *Graph) Components() ([][]*Cluster, error) {
	seen := make(map[*Cluster]bool)
	var components [][]*Cluster
	for _, c := range g.clusters {
		if seen[c] || g.subsumed[c] {
			continue
		}
		component, err := g.BFT(c)
		if err != nil {
			return nil, err
		}
		slices.SortFunc(component, func(a, b *Cluster) int {
			if v := cmp.Compare(a.Depth(), b.Depth()); v != 0 {
				return v
			}
			return cmp.Compare(a.Name(), b.Name())
		})
		for _, member := range component {
			seen[member] = true
		}
		components = append(components, component)
	}
	return components, nil
}

// RandomWalks performs one random walk per start cluster, counting
// visitations of each cluster over the given number of steps. Walks move
// between walkable clusters with inverse-distance transition
// probabilities; counts of subsumed clusters inherit from their subsuming
// neighbors afterwards.
func (g *Graph) RandomWalks(starts []*Cluster, steps int) (map[*Cluster]int, error) {
	if g.Cardinality() < 2 {
		counts := make(map[*Cluster]int, len(g.clusters))
		for _, c := range g.clusters {
			counts[c] = 1
		}
		return counts, nil
	}
	for _, c := range starts {
		if !g.inGraph[c] {
			return nil, fmt.Errorf("%w: %q", ErrNotInGraph, c.Name())
		}
		if g.subsumed[c] {
			return nil, fmt.Errorf("%w: %q", ErrSubsumedStart, c.Name())
		}
	}

	counts := make(map[*Cluster]int, len(g.clusters))
	for _, c := range g.clusters {
		counts[c] = 0
	}
	var walks []*Cluster
	for _, c := range starts {
		counts[c] = 1
		if len(g.walkableNeighbors(c)) > 0 {
			walks = append(walks, c)
		}
	}

	for s := 0; s < steps; s++ {
		for i, c := range walks {
			next := g.step(c)
			walks[i] = next
			counts[next]++
		}
	}

	for _, c := range g.clusters {
		if g.subsumed[c] {
			continue
		}
		for _, e := range g.subsumedNeighbors(c) {
			counts[e.Neighbor] += counts[c]
		}
	}
	return counts, nil
}

func (g *Graph) step(c *Cluster) *Cluster {
	edges := g.walkableNeighbors(c)
	if len(edges) == 0 {
		return c
	}
	r := g.rng.Float64()
	var cum float64
	for _, e := range edges {
		cum += e.Probability
		if r <= cum {
			return e.Neighbor
		}
	}
	return edges[len(edges)-1].Neighbor
}

// ancestryByName walks from root to the cluster with the given name,
// returning the full lineage.
func ancestryByName(root *Cluster, name string) ([]*Cluster, error) {
	lineage := []*Cluster{root}
	cur := root
	for i := len(root.Name()); i < len(name); i++ {
		b := int(name[i]) - '0'
		children := cur.Children()
		if b < 0 || b >= len(children) {
			return nil, fmt.Errorf("%w: %q", ErrClusterNotFound, name)
		}
		cur = children[b]
		lineage = append(lineage, cur)
	}
	return lineage, nil
}
