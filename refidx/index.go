// Package refidx defines the read-only, pre-built index contract the
// quantification core consumes: per-sequence (name, length, offset), a
// packed concatenated reference, and the suffix-array-style seeding
// primitives the seed engine needs. Building the index from FASTA is
// explicitly out of
// scope for this module — refidx ships only the abstract contract plus
// one small in-memory implementation intended for tests.
package refidx

// SeqInfo describes one sequence in the index: its name, length, and its
// starting offset within the forward half of the packed concatenated
// reference.
type SeqInfo struct {
	Name   string
	Length int
	Offset int64
}

// Interval is a half-open range [Lo, Hi) into the index's suffix array,
// together with the length of the pattern that range currently matches.
// It plays the role of a BWA-MEM SA interval (bwtintv_t): its Size is the
// occurrence count of the matched pattern.
type Interval struct {
	Lo, Hi int64
	Len    int
}

// Size returns the number of occurrences an interval represents.
func (iv Interval) Size() int64 { return iv.Hi - iv.Lo }

// Empty reports whether the interval matches no occurrences.
func (iv Interval) Empty() bool { return iv.Hi <= iv.Lo }

// Index is the external, read-only contract the seed engine and hit
// collector are built against. A production implementation would be
// backed by an FM-index/suffix array over the transcriptome plus its
// reverse complement, built once by an out-of-scope index-construction
// tool.
type Index interface {
	// NumSeqs returns the number of sequences in the index.
	NumSeqs() int

	// Seq returns metadata for sequence id.
	Seq(id int32) SeqInfo

	// InitInterval returns the SA interval matching the single-base
	// pattern "base".
	InitInterval(base byte) Interval

	// ExtendRight returns the SA interval obtained by appending base to
	// the pattern iv currently matches. The returned interval's Size is
	// 0 if no occurrence of the extended pattern exists.
	ExtendRight(iv Interval, base byte) Interval

	// LocateOccurrence resolves the ordinal-th occurrence (0-based, in
	// suffix-array order) within iv to a position in the concatenated
	// reference.
	LocateOccurrence(iv Interval, ordinal int64) int64

	// ResolvePosition maps a concatenated-reference position to a
	// sequence id, a sequence-relative offset, and whether the position
	// falls within the reverse-complement half of the packed reference
	// (the "packed-strand tag"). ok is false if pos
	// does not resolve to any sequence (e.g. it lands on a separator).
	ResolvePosition(pos int64) (seqID int32, localPos int, isReverse bool, ok bool)
}
