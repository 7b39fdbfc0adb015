// Package hitcollect implements the hit collector: it resolves each
// seed's sampled occurrences to transcript-local
// coordinates and accumulates per-transcript, per-strand KmerVotes ready
// for the coverage chainer. Ported in idiom from
// original_source/Sailfish's collectHitsForRead, whose exact vote-
// position arithmetic and spanning-seed split logic this package
// reproduces.
package hitcollect

import (
	"github.com/homologus/txquant/refidx"
	"github.com/homologus/txquant/seed"
)

// KmerVote is one seed occurrence's contribution to a transcript's
// coverage. VotePos is the transcript-relative offset at which the
// read's leftmost base would land; ReadPos is the seed's offset within
// the read; VoteLen is the seed's length.
type KmerVote struct {
	VotePos int
	ReadPos int
	VoteLen int
}

// HitList is the per-(read, transcript) accumulator: forward and
// reverse-complement vote lists, populated by Collect and consumed by
// the coverage chainer.
type HitList struct {
	Forward []KmerVote
	RC      []KmerVote
}

// Options carries the hit-collector's configuration knobs.
type Options struct {
	// MaxOcc caps the number of evenly-sampled occurrences considered
	// per seed interval.
	MaxOcc int
	// SplitSpanningSeeds enables splitting seeds that straddle two
	// transcripts in the concatenated reference, rather than discarding
	// them outright.
	SplitSpanningSeeds bool
	// MinSeedLen is the minimum usable seed length after any spanning
	// split.
	MinSeedLen int
}

// Collect resolves seeds against idx and accumulates KmerVotes into a
// HitList per transcript id. readLen is the length of the read the
// seeds were collected from.
func Collect(idx refidx.Index, seeds []seed.Seed, readLen int, opts Options) map[int32]*HitList {
	hits := make(map[int32]*HitList)
	for _, s := range seeds {
		collectSeed(idx, s, readLen, opts, hits)
	}
	return hits
}

func listFor(hits map[int32]*HitList, id int32) *HitList {
	hl, ok := hits[id]
	if !ok {
		hl = &HitList{}
		hits[id] = hl
	}
	return hl
}

func stepFor(intervalSize int64, maxOcc int) int64 {
	step := (intervalSize + int64(maxOcc) - 1) / int64(maxOcc)
	if step < 1 {
		step = 1
	}
	return step
}

func collectSeed(idx refidx.Index, s seed.Seed, readLen int, opts Options, hits map[int32]*HitList) {
	size := s.Interval.Size()
	if size == 0 || opts.MaxOcc <= 0 {
		return
	}
	seedLen := s.Len()
	step := stepFor(size, opts.MaxOcc)

	for ordinal := int64(0); ordinal < size; ordinal += step {
		pos := idx.LocateOccurrence(s.Interval, ordinal)
		startSeq, startLocal, startRev, ok1 := idx.ResolvePosition(pos)
		endSeq, _, endRev, ok2 := idx.ResolvePosition(pos + int64(seedLen) - 1)
		if !ok1 || !ok2 || startRev != endRev {
			continue // crosses the forward/reverse-complement boundary
		}

		if startSeq == endSeq {
			addVote(hits, startSeq, startLocal, startRev, s.QueryStart, seedLen, readLen)
			continue
		}

		// Spanning seed: straddles startSeq and endSeq in the
		// concatenated reference.
		if !opts.SplitSpanningSeeds {
			continue
		}
		leftTx := idx.Seq(startSeq)
		len1 := leftTx.Length - startLocal
		len2 := seedLen - len1
		if len1 <= 0 || len2 <= 0 {
			continue
		}
		if len1 >= len2 {
			if len1 < opts.MinSeedLen {
				continue
			}
			// The trailing len2 bases belong to the other transcript, so
			// the RC formula's effective read length is truncated to end
			// where this side's match does, not the full physical read.
			addVote(hits, startSeq, startLocal, startRev, s.QueryStart, len1, s.QueryStart+len1)
		} else {
			if len2 < opts.MinSeedLen {
				continue
			}
			// Right side starts at its own base 0; the portion of the
			// query already consumed by the left side is skipped. The
			// leading len1 bases belong to the other transcript, so the
			// RC formula's effective read length only spans this side's
			// own query window.
			queryStart := s.QueryStart + len1
			addVote(hits, endSeq, 0, endRev, queryStart, len2, queryStart+len2)
		}
	}
}

func addVote(hits map[int32]*HitList, txID int32, hitLoc int, isReverse bool, queryStart, voteLen, readLen int) {
	hl := listFor(hits, txID)
	if !isReverse {
		votePos := hitLoc - queryStart
		hl.Forward = append(hl.Forward, KmerVote{VotePos: votePos, ReadPos: queryStart, VoteLen: voteLen})
		return
	}
	votePos := hitLoc - (readLen - queryStart)
	hl.RC = append(hl.RC, KmerVote{VotePos: votePos, ReadPos: queryStart, VoteLen: voteLen})
}
