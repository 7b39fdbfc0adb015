package refidx

import (
	"bytes"
	"sort"
)

const sentinel = 0 // separates concatenated sequences; sorts before any base

var complement = map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A', 'N': 'N'}

func revComp(seq []byte) []byte {
	out := make([]byte, len(seq))
	for i, b := range seq {
		c, ok := complement[b]
		if !ok {
			c = 'N'
		}
		out[len(seq)-1-i] = c
	}
	return out
}

// NaiveIndex is a small, in-memory Index built with a full suffix array
// (sorted with sort.Slice, no linear-time construction) over the forward
// and reverse-complement concatenation of the given sequences. It exists
// so the seed engine and hit collector can be built and tested against a
// concrete Index without depending on a real index-construction tool,
// which this module leaves out of scope. It is not intended for production
// transcriptomes: construction is O(n^2 log n) in the reference length.
type NaiveIndex struct {
	seqs []SeqInfo
	ref  []byte // forward half, then a sentinel, then the reverse-complement half
	fwdN int64  // length of the forward half (including its interspersed sentinels)
	sa   []int64
}

// NewNaiveIndex builds an index over names/seqs. Sequence i has name
// names[i] and forward bases seqs[i].
func NewNaiveIndex(names []string, seqs [][]byte) *NaiveIndex {
	idx := &NaiveIndex{seqs: make([]SeqInfo, len(names))}

	var fwd bytes.Buffer
	for i, seq := range seqs {
		idx.seqs[i] = SeqInfo{Name: names[i], Length: len(seq), Offset: int64(fwd.Len())}
		fwd.Write(seq)
		fwd.WriteByte(sentinel)
	}
	idx.fwdN = int64(fwd.Len())

	var rc bytes.Buffer
	for _, seq := range seqs {
		rc.Write(revComp(seq))
		rc.WriteByte(sentinel)
	}

	idx.ref = append(fwd.Bytes(), rc.Bytes()...)

	idx.sa = make([]int64, len(idx.ref))
	for i := range idx.sa {
		idx.sa[i] = int64(i)
	}
	sort.Slice(idx.sa, func(i, j int) bool {
		return bytes.Compare(idx.ref[idx.sa[i]:], idx.ref[idx.sa[j]:]) < 0
	})
	return idx
}

// NumSeqs implements Index.
func (idx *NaiveIndex) NumSeqs() int { return len(idx.seqs) }

// Seq implements Index.
func (idx *NaiveIndex) Seq(id int32) SeqInfo { return idx.seqs[id] }

func (idx *NaiveIndex) byteAt(saRow int64, offset int) (byte, bool) {
	pos := idx.sa[saRow] + int64(offset)
	if pos >= int64(len(idx.ref)) {
		return 0, false
	}
	return idx.ref[pos], true
}

// InitInterval implements Index.
func (idx *NaiveIndex) InitInterval(base byte) Interval {
	lo := sort.Search(len(idx.sa), func(i int) bool {
		b, ok := idx.byteAt(int64(i), 0)
		return ok && b >= base
	})
	hi := sort.Search(len(idx.sa), func(i int) bool {
		b, ok := idx.byteAt(int64(i), 0)
		return !ok || b > base
	})
	return Interval{Lo: int64(lo), Hi: int64(hi), Len: 1}
}

// ExtendRight implements Index.
func (idx *NaiveIndex) ExtendRight(iv Interval, base byte) Interval {
	if iv.Empty() {
		return Interval{Len: iv.Len + 1}
	}
	off := iv.Len
	lo := iv.Lo + int64(sort.Search(int(iv.Size()), func(i int) bool {
		b, ok := idx.byteAt(iv.Lo+int64(i), off)
		return ok && b >= base
	}))
	hi := iv.Lo + int64(sort.Search(int(iv.Size()), func(i int) bool {
		b, ok := idx.byteAt(iv.Lo+int64(i), off)
		return !ok || b > base
	}))
	return Interval{Lo: lo, Hi: hi, Len: iv.Len + 1}
}

// LocateOccurrence implements Index.
func (idx *NaiveIndex) LocateOccurrence(iv Interval, ordinal int64) int64 {
	return idx.sa[iv.Lo+ordinal]
}

// ResolvePosition implements Index.
func (idx *NaiveIndex) ResolvePosition(pos int64) (int32, int, bool, bool) {
	isReverse := false
	p := pos
	if p >= idx.fwdN {
		isReverse = true
		p -= idx.fwdN
	}
	for i, s := range idx.seqs {
		if p >= s.Offset && p < s.Offset+int64(s.Length) {
			return int32(i), int(p - s.Offset), isReverse, true
		}
	}
	return 0, 0, false, false
}
