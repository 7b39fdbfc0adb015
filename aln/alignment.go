// Package aln holds the alignment data model shared by the hit
// collector, EM worker, mapping cache, and pipeline driver: Alignment
// (one SMEM-derived alignment), Group (a fragment's alignments), and a Pool that
// loans and reclaims Groups so fragment mapping never allocates in the
// steady state. Grounded on grailbio-bio/markduplicates's reuse of
// *sam.Record via sam.GetFromFreePool/PutInFreePool
// (encoding/bam/pool.go).
package aln

import (
	"sync"

	"github.com/homologus/txquant/libformat"
)

// Alignment is the resolved mapping of one fragment to one transcript.
type Alignment struct {
	TranscriptID  int32
	LibraryFormat libformat.Format
	Score         float64 // coverage fraction, 0-1
	FragLength    int     // inferred insert size; 0 when unknown
	LogProb       float64 // set during the EM worker's E-step
}

// Group is an ordered sequence of Alignments for exactly one read or
// read pair. A Group of length 0 means "no acceptable mapping." Groups
// are loaned from a Pool and returned once the EM worker (or cache
// writer) is done with them.
type Group struct {
	Alignments []Alignment
}

// Reset empties the group's alignment slice while keeping its backing
// array, so the next loan avoids reallocating.
func (g *Group) Reset() {
	g.Alignments = g.Alignments[:0]
}

// Pool is a fixed-capacity, mutex-guarded free list of *Group values.
// Unlike encoding/bam's per-P sharded FreePool, this pool is sized once
// at pipeline startup (T*1000*10) and touched at
// roughly one Get/Put pair per fragment per mapping thread — a plain
// mutex-guarded slice is simpler and sufficiently fast at that rate.
type Pool struct {
	mu   sync.Mutex
	free []*Group
}

// NewPool pre-allocates capacity Groups, ready to be handed out by Get.
func NewPool(capacity int) *Pool {
	p := &Pool{free: make([]*Group, 0, capacity)}
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, &Group{})
	}
	return p
}

// Get returns a Group from the pool, allocating a new one if the pool is
// empty. The returned Group is always empty (Alignments has length 0).
func (p *Pool) Get() *Group {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return &Group{}
	}
	g := p.free[n-1]
	p.free = p.free[:n-1]
	p.mu.Unlock()
	g.Reset()
	return g
}

// Put returns g to the pool for reuse. The caller must guarantee there
// are no outstanding references to g.
func (p *Pool) Put(g *Group) {
	if g == nil {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, g)
	p.mu.Unlock()
}
