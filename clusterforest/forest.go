// Package clusterforest implements the disjoint-set cluster forest
// that tracks which transcripts have been
// entangled by ambiguous mappings, accumulating mass and count at each
// cluster's root. Grounded on classic union-by-rank-with-path-
// compression, combined with the small mutex-guarded numeric
// accumulator idiom grailbio-bio/markduplicates/library_size.go uses
// for its per-key running sums.
package clusterforest

import (
	"sync"

	"github.com/homologus/txquant/logmath"
)

type node struct {
	parent int32
	rank   int32
	mass   float64 // log-domain, meaningful only at a root
	count  uint64  // meaningful only at a root
}

// Forest is a disjoint-set over transcript ids [0, n). Every transcript
// starts in its own singleton cluster. All mutating operations are
// serialized by a single coarse mutex: this
// forest is expected to be updated once per EM mini-batch by the worker
// holding exclusive access to it, so a per-root lock buys nothing a
// single mutex doesn't already provide at this call frequency.
type Forest struct {
	mu    sync.Mutex
	nodes []node
}

// New builds a Forest with n singleton clusters, id 0..n-1.
func New(n int) *Forest {
	f := &Forest{nodes: make([]node, n)}
	for i := range f.nodes {
		f.nodes[i] = node{parent: int32(i), mass: logmath.Zero}
	}
	return f
}

// find returns the root of x's cluster, compressing the path traversed.
// Callers must hold f.mu.
func (f *Forest) find(x int32) int32 {
	root := x
	for f.nodes[root].parent != root {
		root = f.nodes[root].parent
	}
	for x != root {
		next := f.nodes[x].parent
		f.nodes[x].parent = root
		x = next
	}
	return root
}

// Root returns the id of the cluster root containing transcript t.
func (f *Forest) Root(t int32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(t)
}

// MergeClusters unions the clusters containing every id in transcripts
// into one, by rank, combining their accumulated mass and count at the
// surviving root.
func (f *Forest) MergeClusters(transcripts []int32) {
	if len(transcripts) < 2 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	root := f.find(transcripts[0])
	for _, t := range transcripts[1:] {
		root = f.union(root, f.find(t))
	}
}

// union merges the clusters rooted at a and b, returning the surviving
// root. Callers must hold f.mu.
func (f *Forest) union(a, b int32) int32 {
	if a == b {
		return a
	}
	ra, rb := &f.nodes[a], &f.nodes[b]
	if ra.rank < rb.rank {
		a, b = b, a
		ra, rb = rb, ra
	}
	rb.parent = a
	if ra.rank == rb.rank {
		ra.rank++
	}
	ra.mass = logmath.LogAdd(ra.mass, rb.mass)
	ra.count += rb.count
	rb.mass = logmath.Zero
	rb.count = 0
	return a
}

// UpdateCluster adds logMass to the root of t's cluster, and, when
// updateCounts is true, also adds count. With updateCounts false only
// the mass changes.
func (f *Forest) UpdateCluster(t int32, count uint64, logMass float64, updateCounts bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	root := f.find(t)
	if updateCounts {
		f.nodes[root].count += count
	}
	f.nodes[root].mass = logmath.LogAdd(f.nodes[root].mass, logMass)
}

// ClusterMass returns the accumulated log-domain mass of t's cluster.
func (f *Forest) ClusterMass(t int32) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes[f.find(t)].mass
}

// ClusterCount returns the accumulated count of t's cluster.
func (f *Forest) ClusterCount(t int32) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodes[f.find(t)].count
}

// Reset returns every transcript to its own singleton cluster with zero
// mass and count.
func (f *Forest) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.nodes {
		f.nodes[i] = node{parent: int32(i), mass: logmath.Zero}
	}
}
