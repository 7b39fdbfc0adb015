// Package quantify implements the pipeline driver: it wires the seed
// engine, hit collector, coverage chainer,
// mapping cache, and mini-batch EM worker into the outer mapping/EM
// loop, following the worker-pool/channel shape of
// grailbio-bio/markduplicates's shard-processing pipeline
// (mark_duplicates.go's generateBAM/generatePAM), generalized from
// BAM shards to read batches.
package quantify

import (
	"github.com/homologus/txquant/aln"
	"github.com/homologus/txquant/chain"
	"github.com/homologus/txquant/hitcollect"
	"github.com/homologus/txquant/libformat"
	"github.com/homologus/txquant/reads"
	"github.com/homologus/txquant/refidx"
	"github.com/homologus/txquant/seed"
	"github.com/homologus/txquant/txome"
)

// Mapper resolves one fragment (a single read, or a read pair) to an
// aln.Group by running the seed engine, hit collector, and coverage
// chainer over each strand of each mate and merging per-transcript
// results into fragment-level alignments. One Mapper is owned
// exclusively by one mapping goroutine. It keeps no scratch state
// between fragments; each call allocates its own working slices.
type Mapper struct {
	Index refidx.Index
	Store *txome.Store

	SeedEngine *seed.Engine
	HitOpts    hitcollect.Options

	CoverageThresh float64
	MaxReadOccs    int
	UseSampledVal  bool

	// ExpectedFormat is the library's declared format. It is stored on
	// the Mapper but not consulted while mapping; the observed format of
	// each alignment is inferred from the mates' strands and positions
	// alone.
	ExpectedFormat libformat.Format
}

// NewMapper constructs a Mapper for one mapping thread.
func NewMapper(idx refidx.Index, store *txome.Store, seedOpts seed.Options, hitOpts hitcollect.Options, coverageThresh float64, maxReadOccs int, useSampledVal bool, expected libformat.Format) *Mapper {
	return &Mapper{
		Index:          idx,
		Store:          store,
		SeedEngine:     seed.NewEngine(idx, seedOpts),
		HitOpts:        hitOpts,
		CoverageThresh: coverageThresh,
		MaxReadOccs:    maxReadOccs,
		UseSampledVal:  useSampledVal,
		ExpectedFormat: expected,
	}
}

// endHit is one mate's resolved best chain against one transcript.
type endHit struct {
	txID    int32
	pos     int
	score   float64
	forward bool
	readLen int
}

// mapEnd seeds, collects hits, and chains rec against every transcript
// it touches, returning one endHit per transcript that clears
// CoverageThresh.
func (m *Mapper) mapEnd(rec *reads.Record) []endHit {
	seq := []byte(rec.Seq)
	seeds := m.SeedEngine.Collect(seq)
	hitsByTx := hitcollect.Collect(m.Index, seeds, len(seq), m.HitOpts)

	var out []endHit
	for txID, hl := range hitsByTx {
		tx := m.Store.Transcript(txID)
		var chainer chain.Chainer
		if m.UseSampledVal {
			chainer = chain.NewSampledValidation(tx, seq)
		} else {
			chainer = chain.NewGreedy()
		}
		for _, v := range hl.Forward {
			chainer.AddVote(v)
		}
		for _, v := range hl.RC {
			chainer.AddVoteRC(v)
		}
		chainer.ComputeBestChain(len(seq), tx.Length)
		if chainer.BestHitScore() < m.CoverageThresh {
			continue
		}
		out = append(out, endHit{
			txID:    txID,
			pos:     chainer.BestHitPos(),
			score:   chainer.BestHitScore(),
			forward: chainer.IsForward(),
			readLen: len(seq),
		})
	}
	return out
}

// MapUnmated resolves a single read into g's alignments, one per
// distinct transcript clearing the coverage threshold. g must already
// be empty (as returned by aln.Pool.Get).
func (m *Mapper) MapUnmated(rec *reads.Record, g *aln.Group) {
	for _, h := range m.mapEnd(rec) {
		strand := libformat.S
		if !h.forward {
			strand = libformat.A
		}
		g.Alignments = append(g.Alignments, aln.Alignment{
			TranscriptID:  h.txID,
			LibraryFormat: libformat.Format{ReadType: libformat.SE, Orientation: libformat.None, Strandedness: strand},
			Score:         h.score,
		})
	}
	if m.MaxReadOccs > 0 && len(g.Alignments) > m.MaxReadOccs {
		g.Reset()
	}
}

// MapPaired resolves a read pair into g's alignments: only transcripts
// hit by both mates count as a fragment alignment, per the
// implicit assumption that a "hit" is a concordant fragment placement.
// FragLength is the absolute distance between the two mates' resolved
// transcript positions plus the second mate's read length.
func (m *Mapper) MapPaired(rec1, rec2 *reads.Record, g *aln.Group) {
	hits1 := m.mapEnd(rec1)
	hits2 := m.mapEnd(rec2)

	byTx := make(map[int32]endHit, len(hits1))
	for _, h := range hits1 {
		byTx[h.txID] = h
	}
	for _, h2 := range hits2 {
		h1, ok := byTx[h2.txID]
		if !ok {
			continue
		}
		fragLen := h2.pos - h1.pos
		if fragLen < 0 {
			fragLen = -fragLen
		}
		fragLen += h2.readLen
		observed := libformat.InferFromEnds(h1.forward, h2.forward, h1.pos, h2.pos)
		score := (h1.score + h2.score) / 2
		g.Alignments = append(g.Alignments, aln.Alignment{
			TranscriptID:  h2.txID,
			LibraryFormat: observed,
			Score:         score,
			FragLength:    fragLen,
		})
	}
	if m.MaxReadOccs > 0 && len(g.Alignments) > m.MaxReadOccs {
		g.Reset()
	}
}
