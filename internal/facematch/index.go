package facematch

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-auth/internal/descriptor"
	"github.com/kozaktomas/face-auth/internal/identity"
)

// IndexMaxNeighbors is the HNSW M parameter.
const IndexMaxNeighbors = 16

// Neighbor is one result of an index search.
type Neighbor struct {
	Name     string
	Distance float64
}

// Index is an approximate nearest-neighbour index over a snapshot of identities.
// It is only used for diagnostics; accept/reject decisions use Matcher.
type Index struct {
	graph      *hnsw.Graph[int]
	identities []identity.Identity
	revision   uint64
}

// NewIndex builds an index from identities taken at the given repository revision.
func NewIndex(identities []identity.Identity, revision uint64) *Index {
	idx := &Index{identities: identities, revision: revision}
	if len(identities) == 0 {
		return idx
	}

	g := hnsw.NewGraph[int]()
	g.M = IndexMaxNeighbors
	g.Ml = 1.0 / float64(IndexMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	nodes := make([]hnsw.Node[int], 0, len(identities))
	for i, ident := range identities {
		nodes = append(nodes, hnsw.MakeNode(i, []float32(descriptor.Clone(ident.Descriptor))))
	}
	g.Add(nodes...)

	idx.graph = g
	return idx
}

// Len returns the number of indexed identities.
func (x *Index) Len() int {
	return len(x.identities)
}

// Revision returns the repository revision the index was built from.
func (x *Index) Revision() uint64 {
	return x.revision
}

// Nearest returns up to k identities closest to probe, ordered by exact Euclidean
// distance (ties keep enrollment order).
func (x *Index) Nearest(probe descriptor.Descriptor, k int) []Neighbor {
	if x.graph == nil || k <= 0 {
		return nil
	}
	if k > len(x.identities) {
		k = len(x.identities)
	}

	nodes := x.graph.Search([]float32(probe), k)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Key < nodes[j].Key })

	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		ident := x.identities[n.Key]
		out = append(out, Neighbor{Name: ident.Name, Distance: descriptor.Distance(probe, ident.Descriptor)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// Snapshotter is the part of identity.Repository the index cache needs.
type Snapshotter interface {
	Snapshot() ([]identity.Identity, uint64)
	Revision() uint64
}

// IndexCache keeps one Index and rebuilds it when the repository revision changes.
type IndexCache struct {
	mu  sync.Mutex
	idx *Index
}

// Get returns an index that is current for repo.
func (c *IndexCache) Get(repo Snapshotter) *Index {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.idx != nil && c.idx.revision == repo.Revision() {
		return c.idx
	}
	identities, rev := repo.Snapshot()
	c.idx = NewIndex(identities, rev)
	return c.idx
}
