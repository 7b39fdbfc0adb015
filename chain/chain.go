// Package chain implements the coverage chainer:
// given a transcript's forward and reverse-complement KmerVote lists, it
// resolves the best-covered read/transcript alignment window, its
// coverage score, and which strand orientation won. Two chainers are
// provided, both ported in idiom from
// original_source/Sailfish/src/SalmonQuantify.cpp: Greedy
// (computeBestLoc_, the default) and SampledValidation
// (computeBestLoc3_, an opt-in refinement).
package chain

import (
	"math"
	"sort"

	"github.com/homologus/txquant/hitcollect"
	"github.com/homologus/txquant/txome"
)

// Chainer resolves the best chain of votes for one transcript across
// both strand orientations. Callers feed every vote observed for the
// transcript via AddVote/AddVoteRC, then call ComputeBestChain once.
// dynamic dispatch over the chaining
// strategy, hence the interface.
type Chainer interface {
	AddVote(v hitcollect.KmerVote)
	AddVoteRC(v hitcollect.KmerVote)
	ComputeBestChain(readLen, txLen int)
	BestHitPos() int
	BestHitCount() int
	BestHitScore() float64
	IsForward() bool
}

const greedyMaxGap = 10

type cluster struct {
	start    int
	coverage int
}

// clusterScore runs the greedy incremental coverage-accumulation
// heuristic over a sorted vote list, returning the best cluster found.
// votes must already be sorted by (VotePos, ReadPos).
func clusterScore(votes []hitcollect.KmerVote, maxGap int) cluster {
	if len(votes) == 0 {
		return cluster{}
	}
	var best cluster
	currClust := votes[0].VotePos
	coverage := 0
	rightmostBase := int(^uint(0) >> 1) // "unset"
	rightmostSet := false

	flush := func() {
		if coverage > best.coverage {
			best = cluster{start: currClust, coverage: coverage}
		}
	}

	for _, v := range votes {
		if v.VotePos < currClust {
			panic("chain: negative gap between sorted votes")
		}
		gap := v.VotePos - currClust
		if gap > maxGap {
			flush()
			currClust = v.VotePos
			coverage = 0
			rightmostSet = false
		}
		end := v.VotePos + v.ReadPos + v.VoteLen
		contribution := v.VoteLen
		if rightmostSet {
			if d := end - rightmostBase; d < contribution {
				contribution = d
			}
		}
		if contribution > 0 {
			coverage += contribution
		}
		rightmostBase = end
		rightmostSet = true
	}
	flush()
	return best
}

func sortVotes(votes []hitcollect.KmerVote) []hitcollect.KmerVote {
	sorted := make([]hitcollect.KmerVote, len(votes))
	copy(sorted, votes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].VotePos != sorted[j].VotePos {
			return sorted[i].VotePos < sorted[j].VotePos
		}
		return sorted[i].ReadPos < sorted[j].ReadPos
	})
	return sorted
}

// Greedy implements computeBestLoc_: a single incremental pass over
// sorted votes per orientation, tracking the highest-coverage cluster.
type Greedy struct {
	forward []hitcollect.KmerVote
	rc      []hitcollect.KmerVote

	bestPos   int
	bestCount int
	bestScore float64
	bestIsFwd bool
	computed  bool
}

// NewGreedy returns an empty Greedy chainer.
func NewGreedy() *Greedy { return &Greedy{} }

// AddVote implements Chainer.
func (g *Greedy) AddVote(v hitcollect.KmerVote) { g.forward = append(g.forward, v) }

// AddVoteRC implements Chainer.
func (g *Greedy) AddVoteRC(v hitcollect.KmerVote) { g.rc = append(g.rc, v) }

// ComputeBestChain implements Chainer.
func (g *Greedy) ComputeBestChain(readLen, txLen int) {
	fwdBest := clusterScore(sortVotes(g.forward), greedyMaxGap)
	rcBest := clusterScore(sortVotes(g.rc), greedyMaxGap)

	fwdScore := float64(fwdBest.coverage) / float64(readLen)
	rcScore := float64(rcBest.coverage) / float64(readLen)

	if fwdScore >= rcScore {
		g.bestPos, g.bestCount, g.bestScore, g.bestIsFwd = fwdBest.start, fwdBest.coverage, fwdScore, true
	} else {
		g.bestPos, g.bestCount, g.bestScore, g.bestIsFwd = rcBest.start, rcBest.coverage, rcScore, false
	}
	g.computed = true
}

// BestHitPos implements Chainer.
func (g *Greedy) BestHitPos() int { return g.bestPos }

// BestHitCount implements Chainer.
func (g *Greedy) BestHitCount() int { return g.bestCount }

// BestHitScore implements Chainer.
func (g *Greedy) BestHitScore() float64 { return g.bestScore }

// IsForward implements Chainer.
func (g *Greedy) IsForward() bool { return g.bestIsFwd }

const (
	sampledValidationMaxGap = 8
	numSampledTries         = 15
)

var (
	leftPattern   = [3]int{-4, -2, 0}
	rightPattern  = [3]int{0, 2, 4}
	centerPattern = [3]int{-4, 0, 4}
)

// SampledValidation implements computeBestLoc3_: instead of accumulating
// coverage from vote lengths alone, it takes numSampledTries evenly
// spaced samples across the read (clipped to fit inside the
// transcript), each probed against one of three fixed 3-base patterns
// selected by how close the sample sits to either end of the read, and
// scores each distinct vote position by summing the sampled-hit counts
// of that position and of every later distinct position at most
// sampledValidationMaxGap beyond it.
type SampledValidation struct {
	forward []hitcollect.KmerVote
	rc      []hitcollect.KmerVote
	tx      *txome.Transcript
	read    []byte

	bestPos   int
	bestCount int
	bestScore float64
	bestIsFwd bool
}

// NewSampledValidation returns a chainer that validates candidate
// clusters against tx's sequence and the read bytes actually observed.
func NewSampledValidation(tx *txome.Transcript, read []byte) *SampledValidation {
	return &SampledValidation{tx: tx, read: read}
}

// AddVote implements Chainer.
func (s *SampledValidation) AddVote(v hitcollect.KmerVote) { s.forward = append(s.forward, v) }

// AddVoteRC implements Chainer.
func (s *SampledValidation) AddVoteRC(v hitcollect.KmerVote) { s.rc = append(s.rc, v) }

func upperBase(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// clipToTranscript narrows the read window starting at readStart in
// tx-relative coordinates to fit inside [0, tlen), the way
// numSampledHits_ trims a votePos that overhangs either end of the
// transcript before sampling. It returns the trimmed read slice, its
// (non-negative) transcript start, and false if nothing of the read
// remains inside the transcript. The result always satisfies
// newStart >= 0 && newStart+len(trimmed) <= tlen.
func clipToTranscript(read []byte, readStart, tlen int) (trimmed []byte, newStart int, ok bool) {
	trimmed, newStart = read, readStart
	if newStart < 0 {
		trimFront := -newStart
		if trimFront >= len(trimmed) {
			return nil, 0, false
		}
		trimmed = trimmed[trimFront:]
		newStart = 0
	}
	if newStart+len(trimmed) > tlen {
		newLen := tlen - newStart
		if newLen <= 0 {
			return nil, 0, false
		}
		trimmed = trimmed[:newLen]
	}
	if len(trimmed) == 0 {
		return nil, 0, false
	}
	return trimmed, newStart, true
}

// numSampledHits ports numSampledHits_: numSampledTries evenly spaced
// samples across the (clipped) read, each checked against one of three
// fixed 3-base patterns chosen by proximity to either read boundary; a
// sample counts as a hit only if every base in its pattern agrees with
// the transcript in the given orientation.
func (s *SampledValidation) numSampledHits(votePos int, reverse bool) int {
	read, start, ok := clipToTranscript(s.read, votePos, s.tx.Length)
	if !ok {
		return 0
	}
	clippedLen := len(read)
	step := float64(clippedLen-1) / float64(numSampledTries-1)

	numHits := 0
	for i := 0; i < numSampledTries; i++ {
		readIndex := int(math.Round(float64(i) * step))
		pattern := centerPattern
		if readIndex+pattern[0] < 0 {
			pattern = rightPattern
		} else if readIndex+pattern[2] >= clippedLen {
			pattern = leftPattern
		}

		subHits := 0
		for _, offset := range pattern {
			readPos := readIndex + offset
			txPos := start + readPos
			if readPos < 0 || readPos >= clippedLen || txPos < 0 || txPos >= s.tx.Length {
				continue
			}
			if upperBase(read[readPos]) == s.tx.BaseAt(txPos, reverse) {
				subHits++
			}
		}
		if subHits == len(pattern) {
			numHits++
		}
	}
	return numHits
}

type locHits struct {
	loc  int
	hits int
}

// bestOfOrientation ports computeBestLoc3_: numSampledHits is run once
// per distinct vote position, then every candidate position's score is
// the sum of sampled hits of that position and of every later distinct
// position at most sampledValidationMaxGap beyond it, divided by the
// fixed sample count.
func (s *SampledValidation) bestOfOrientation(votes []hitcollect.KmerVote, readLen int, reverse bool) (pos int, score float64) {
	sorted := sortVotes(votes)
	var counts []locHits
	prevPos, havePrev := 0, false
	for _, v := range sorted {
		if havePrev && v.VotePos == prevPos {
			continue
		}
		counts = append(counts, locHits{loc: v.VotePos, hits: s.numSampledHits(v.VotePos, reverse)})
		prevPos, havePrev = v.VotePos, true
	}
	if len(counts) == 0 {
		return 0, 0
	}

	best := -1.0
	for i := range counts {
		accum := 0
		for j := i; j < len(counts) && counts[j].loc-counts[i].loc <= sampledValidationMaxGap; j++ {
			accum += counts[j].hits
		}
		sc := float64(accum) / float64(numSampledTries)
		if sc > best {
			best = sc
			pos = counts[i].loc
		}
	}
	if best < 0 {
		best = 0
	}
	return pos, best
}

// ComputeBestChain implements Chainer.
func (s *SampledValidation) ComputeBestChain(readLen, txLen int) {
	fwdPos, fwdScore := s.bestOfOrientation(s.forward, readLen, false)
	rcPos, rcScore := s.bestOfOrientation(s.rc, readLen, true)

	if fwdScore >= rcScore {
		s.bestPos, s.bestScore, s.bestIsFwd = fwdPos, fwdScore, true
	} else {
		s.bestPos, s.bestScore, s.bestIsFwd = rcPos, rcScore, false
	}
	s.bestCount = int(s.bestScore * float64(readLen))
}

// BestHitPos implements Chainer.
func (s *SampledValidation) BestHitPos() int { return s.bestPos }

// BestHitCount implements Chainer.
func (s *SampledValidation) BestHitCount() int { return s.bestCount }

// BestHitScore implements Chainer.
func (s *SampledValidation) BestHitScore() float64 { return s.bestScore }

// IsForward implements Chainer.
func (s *SampledValidation) IsForward() bool { return s.bestIsFwd }
