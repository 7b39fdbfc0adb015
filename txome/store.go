// Package txome holds the read-only table of transcripts a quantification
// run is scored against: id, name, length, and packed sequence, plus the
// mutable per-transcript accumulators (mass, totalCount, uniqueCount) the
// EM worker updates every mini-batch.
package txome

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// priorAlpha is a small prior alpha; every transcript's initial mass is
// log(priorAlpha).
const priorAlpha = 0.005

// revCompTable maps an ASCII base to its complement, 'N' for anything
// else. Ported in the style of biosimd's revComp8Table (a flat 256-entry
// ASCII lookup table), which is grailbio-bio's idiom for base
// complementing; biosimd itself is not imported here because a 2-bit
// packed representation, not raw ASCII bytes, is what Store stores.
var revCompTable = [256]byte{}

func init() {
	for i := range revCompTable {
		revCompTable[i] = 'N'
	}
	revCompTable['A'] = 'T'
	revCompTable['T'] = 'A'
	revCompTable['C'] = 'G'
	revCompTable['G'] = 'C'
	revCompTable['a'] = 'T'
	revCompTable['t'] = 'A'
	revCompTable['c'] = 'G'
	revCompTable['g'] = 'C'
}

// baseCode packs an ASCII base into 2 bits; ambiguous bases map to 0 but
// are separately flagged in Transcript.ambig.
var baseCode = map[byte]byte{'A': 0, 'C': 1, 'G': 2, 'T': 3}
var codeBase = [4]byte{'A', 'C', 'G', 'T'}

// Transcript is one entry of the transcript store: a dense id, an opaque
// name, a length, and a 2-bit packed sequence with a separate ambiguity
// bitmask. Mass and the two count accumulators are updated concurrently:
// mass is guarded by mu, one mutex per transcript, and the two counts are
// updated atomically.
type Transcript struct {
	ID     int32
	Name   string
	Length int

	packed []byte // 2 bits/base, big-endian within each byte
	ambig  []byte // 1 bit/base, set when the base is not A/C/G/T

	mu          sync.Mutex
	mass        float64
	totalCount  uint64
	uniqueCount uint64
}

func newTranscript(id int32, name string, seq []byte) *Transcript {
	n := len(seq)
	t := &Transcript{
		ID:     id,
		Name:   name,
		Length: n,
		packed: make([]byte, (n+3)/4),
		ambig:  make([]byte, (n+7)/8),
		mass:   mathLog(priorAlpha),
	}
	for i, b := range seq {
		code, ok := baseCode[upper(b)]
		if !ok {
			t.ambig[i/8] |= 1 << uint(i%8)
			continue
		}
		t.packed[i/4] |= code << uint((i%4)*2)
	}
	return t
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// BaseAt returns the base at 0-based position pos, in forward orientation
// if reverse is false, or as the reverse-complement-strand base at pos
// (i.e. the base that would appear at pos if the transcript were
// reverse-complemented) if reverse is true.
func (t *Transcript) BaseAt(pos int, reverse bool) byte {
	if pos < 0 || pos >= t.Length {
		return 'N'
	}
	p := pos
	if reverse {
		p = t.Length - 1 - pos
	}
	if t.ambig[p/8]&(1<<uint(p%8)) != 0 {
		return 'N'
	}
	code := (t.packed[p/4] >> uint((p%4)*2)) & 0x3
	base := codeBase[code]
	if reverse {
		return revCompTable[base]
	}
	return base
}

// Mass returns the transcript's current log-domain mass.
func (t *Transcript) Mass() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mass
}

// AddMass log-adds delta (itself already a log-domain quantity) into the
// transcript's mass.
func (t *Transcript) AddMass(delta float64) {
	t.mu.Lock()
	t.mass = logAdd(t.mass, delta)
	t.mu.Unlock()
}

// AddTotalCount increments the transcript's observed-alignment count.
func (t *Transcript) AddTotalCount(n uint64) {
	atomic.AddUint64(&t.totalCount, n)
}

// AddUniqueCount increments the transcript's uniquely-assigned count.
func (t *Transcript) AddUniqueCount(n uint64) {
	atomic.AddUint64(&t.uniqueCount, n)
}

// TotalCount returns the transcript's observed-alignment count.
func (t *Transcript) TotalCount() uint64 { return atomic.LoadUint64(&t.totalCount) }

// UniqueCount returns the transcript's uniquely-assigned count.
func (t *Transcript) UniqueCount() uint64 { return atomic.LoadUint64(&t.uniqueCount) }

// Store is the read-only table of transcripts a run quantifies against,
// plus their mutable per-round accumulators.
type Store struct {
	transcripts []*Transcript
	byName      map[string]int32
}

// New builds a Store from parallel name/sequence slices. ids are dense
// [0, len(names)).
func New(names []string, seqs [][]byte) (*Store, error) {
	if len(names) != len(seqs) {
		return nil, errors.Errorf("txome: %d names but %d sequences", len(names), len(seqs))
	}
	s := &Store{
		transcripts: make([]*Transcript, len(names)),
		byName:      make(map[string]int32, len(names)),
	}
	for i, name := range names {
		if len(seqs[i]) == 0 {
			return nil, errors.Errorf("txome: transcript %q has zero length", name)
		}
		if _, dup := s.byName[name]; dup {
			return nil, errors.Errorf("txome: duplicate transcript name %q", name)
		}
		s.transcripts[i] = newTranscript(int32(i), name, seqs[i])
		s.byName[name] = int32(i)
	}
	return s, nil
}

// NumTranscripts returns the number of transcripts in the store.
func (s *Store) NumTranscripts() int { return len(s.transcripts) }

// Transcript returns the transcript with the given dense id. It panics on
// an out-of-range id: an out-of-range transcript id from within the
// mapping or EM pipeline is an invariant violation (spec error kind 5),
// not a recoverable condition.
func (s *Store) Transcript(id int32) *Transcript {
	if id < 0 || int(id) >= len(s.transcripts) {
		panic(errors.Errorf("txome: transcript id %d out of range [0, %d)", id, len(s.transcripts)))
	}
	return s.transcripts[id]
}

// IDByName returns the dense id for name, and whether it was found.
func (s *Store) IDByName(name string) (int32, bool) {
	id, ok := s.byName[name]
	return id, ok
}

// SoftReset zeros the per-round totalCount/uniqueCount accumulators while
// leaving mass untouched, matching the pipeline driver's cache-enabled
// between-round reset.
func (s *Store) SoftReset() {
	for _, t := range s.transcripts {
		atomic.StoreUint64(&t.totalCount, 0)
		atomic.StoreUint64(&t.uniqueCount, 0)
	}
}

// Reset zeros both per-transcript counts and returns mass to its initial
// value log(priorAlpha), matching the pipeline driver's cache-disabled
// hard reset.
func (s *Store) Reset() {
	for _, t := range s.transcripts {
		t.mu.Lock()
		t.mass = mathLog(priorAlpha)
		t.mu.Unlock()
		atomic.StoreUint64(&t.totalCount, 0)
		atomic.StoreUint64(&t.uniqueCount, 0)
	}
}
