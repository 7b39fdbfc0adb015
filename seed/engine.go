// Package seed implements the SMEM (Super-Maximal Exact Match) seeding
// engine: three passes over a query that surface
// exact-match seeds against a refidx.Index, ported in idiom (not
// translated) from original_source/Sailfish's mem_collect_intv /
// bwt_smem1 / seed_strategy1 family of functions.
package seed

import (
	"math"

	"github.com/homologus/txquant/refidx"
)

// Options carries the seed engine's configuration knobs.
type Options struct {
	// MinSeedLen is the minimum length of a usable seed.
	MinSeedLen int
	// SplitWidth caps the occurrence count of an SMEM eligible for
	// re-seeding.
	SplitWidth int64
	// SplitFactor scales MinSeedLen to derive the re-seeding length
	// threshold splitLen.
	SplitFactor float64
	// ExtraSeedPass enables the third, "LAST-like" sensitivity pass.
	ExtraSeedPass bool
	// MaxMemIntv caps the occurrence count of seeds from the extra pass.
	MaxMemIntv int64
}

// Seed is one seeded exact match: [QueryStart, QueryEnd) of the query
// matches Interval.Size() locations in the index.
type Seed struct {
	QueryStart int
	QueryEnd   int
	Interval   refidx.Interval
}

// Len returns the seed's length in query bases.
func (s Seed) Len() int { return s.QueryEnd - s.QueryStart }

// Engine collects seeds for queries against a fixed Index.
type Engine struct {
	Index refidx.Index
	Opts  Options
}

// NewEngine constructs a seed engine over idx with the given options.
func NewEngine(idx refidx.Index, opts Options) *Engine {
	return &Engine{Index: idx, Opts: opts}
}

func isDNABase(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		return true
	default:
		return false
	}
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// extendRightMinOcc greedily extends an exact match starting at query
// position start as far right as possible while the SA interval's
// occurrence count stays >= minOcc. It is the shared primitive behind
// all three seeding passes; only the minOcc threshold differs (1 for the
// SMEM pass, occurrence+1 for re-seeding, capped for the extra pass via
// extendUntilCapped below).
func extendRightMinOcc(idx refidx.Index, query []byte, start int, minOcc int64) (end int, iv refidx.Interval) {
	if !isDNABase(query[start]) {
		return start, refidx.Interval{}
	}
	iv = idx.InitInterval(upper(query[start]))
	if iv.Size() < minOcc {
		return start, refidx.Interval{}
	}
	end = start + 1
	for end < len(query) && isDNABase(query[end]) {
		next := idx.ExtendRight(iv, upper(query[end]))
		if next.Size() < minOcc {
			break
		}
		iv = next
		end++
	}
	return end, iv
}

// extendUntilCapped greedily extends an exact match starting at start,
// stopping as soon as the interval's occurrence count first drops to at
// most cap (rather than continuing to full maximality). This trades seed
// length for sensitivity in repetitive regions, mirroring the reference
// implementation's "extra" seeding pass.
func extendUntilCapped(idx refidx.Index, query []byte, start int, cap int64) (end int, iv refidx.Interval) {
	if !isDNABase(query[start]) {
		return start, refidx.Interval{}
	}
	iv = idx.InitInterval(upper(query[start]))
	end = start + 1
	if iv.Size() == 0 || iv.Size() <= cap {
		return end, iv
	}
	for end < len(query) && isDNABase(query[end]) {
		next := idx.ExtendRight(iv, upper(query[end]))
		if next.Size() == 0 {
			break
		}
		iv = next
		end++
		if iv.Size() <= cap {
			break
		}
	}
	return end, iv
}

// Collect runs the SMEM pass, the re-seed pass, and (if enabled) the
// extra-sensitivity pass over query, returning every seed of length at
// least Opts.MinSeedLen. Seeds are returned in emission order, not
// sorted by query position.
func (e *Engine) Collect(query []byte) []Seed {
	var seeds []Seed

	smems := e.collectSMEMs(query)
	seeds = append(seeds, smems...)
	seeds = append(seeds, e.reseed(query, smems)...)
	if e.Opts.ExtraSeedPass {
		seeds = append(seeds, e.extraPass(query)...)
	}
	return seeds
}

// collectSMEMs is pass 1: walk x from 0 to n, extend
// the longest exact match covering x, and keep each SMEM (a match that
// reaches further right than every match found so far) of sufficient
// length.
func (e *Engine) collectSMEMs(query []byte) []Seed {
	var seeds []Seed
	reach := -1
	for x := 0; x < len(query); x++ {
		if !isDNABase(query[x]) {
			continue
		}
		end, iv := extendRightMinOcc(e.Index, query, x, 1)
		if iv.Size() == 0 {
			continue
		}
		if end > reach {
			if end-x >= e.Opts.MinSeedLen {
				seeds = append(seeds, Seed{QueryStart: x, QueryEnd: end, Interval: iv})
			}
			reach = end
		}
	}
	return seeds
}

// reseed is pass 2: for each SMEM long enough and rare
// enough to be worth splitting, extend again from its midpoint requiring
// one more occurrence than the original had, keeping the result if it
// still meets MinSeedLen.
func (e *Engine) reseed(query []byte, smems []Seed) []Seed {
	splitLen := int(math.Round(float64(e.Opts.MinSeedLen) * e.Opts.SplitFactor))
	var seeds []Seed
	for _, s := range smems {
		if s.Len() < splitLen || s.Interval.Size() > e.Opts.SplitWidth {
			continue
		}
		mid := (s.QueryStart + s.QueryEnd) / 2
		if mid >= len(query) || !isDNABase(query[mid]) {
			continue
		}
		end, iv := extendRightMinOcc(e.Index, query, mid, s.Interval.Size()+1)
		if iv.Size() == 0 || end-mid < e.Opts.MinSeedLen {
			continue
		}
		seeds = append(seeds, Seed{QueryStart: mid, QueryEnd: end, Interval: iv})
	}
	return seeds
}

// extraPass is pass 3: a single-result seeding
// strategy, capped at MaxMemIntv occurrences, run from every position.
func (e *Engine) extraPass(query []byte) []Seed {
	var seeds []Seed
	for x := 0; x < len(query); x++ {
		if !isDNABase(query[x]) {
			continue
		}
		end, iv := extendUntilCapped(e.Index, query, x, e.Opts.MaxMemIntv)
		if iv.Size() == 0 || end-x < e.Opts.MinSeedLen {
			continue
		}
		seeds = append(seeds, Seed{QueryStart: x, QueryEnd: end, Interval: iv})
	}
	return seeds
}
