// Package libformat describes the (read-type, orientation, strandedness)
// triple that characterizes how a sequencing library was constructed, and
// how compatible an observed fragment alignment is with the format a
// library was declared to have.
//
// The encoding mirrors the compact library-type strings used throughout
// the quantification literature (e.g. "IU", "ISF", "OSR") without trying
// to reproduce every historical alias; ParseFormat accepts the strings
// this package itself produces via String, plus the handful of aliases
// listed in parse.go.
package libformat

import (
	"fmt"
	"math"
)

// ReadType distinguishes single-end from paired-end libraries.
type ReadType uint8

const (
	// SE is a single-end library.
	SE ReadType = iota
	// PE is a paired-end library.
	PE
)

func (r ReadType) String() string {
	if r == PE {
		return "PE"
	}
	return "SE"
}

// Orientation describes the relative orientation of the two mates of a
// paired-end fragment. It is meaningless (and always None) for SE.
type Orientation uint8

const (
	// None means the library carries no orientation constraint (SE, or
	// unspecified PE).
	None Orientation = iota
	// Same means both mates map to the same strand.
	Same
	// Away means the mates point away from each other (outward-facing).
	Away
	// Toward means the mates point toward each other (the common
	// "innie" paired-end orientation).
	Toward
)

func (o Orientation) String() string {
	switch o {
	case Same:
		return "SAME"
	case Away:
		return "AWAY"
	case Toward:
		return "TOWARD"
	default:
		return "NONE"
	}
}

// Strandedness describes which strand(s) of the transcript a fragment is
// expected to originate from.
type Strandedness uint8

const (
	// U is unstranded: either strand is equally likely a priori.
	U Strandedness = iota
	// S is stranded, sense: the fragment is expected to match the
	// transcript's coding strand.
	S
	// A is stranded, antisense.
	A
	// SA is stranded with mate 1 sense, mate 2 antisense.
	SA
	// AS is stranded with mate 1 antisense, mate 2 sense.
	AS
)

func (s Strandedness) String() string {
	switch s {
	case S:
		return "S"
	case A:
		return "A"
	case SA:
		return "SA"
	case AS:
		return "AS"
	default:
		return "U"
	}
}

// Format is the (read-type, orientation, strandedness) triple.
type Format struct {
	ReadType     ReadType
	Orientation  Orientation
	Strandedness Strandedness
}

// String renders the format the way it is parsed back by ParseFormat, e.g.
// "PE:TOWARD:U".
func (f Format) String() string {
	return fmt.Sprintf("%s:%s:%s", f.ReadType, f.Orientation, f.Strandedness)
}

// table enumerates every representable format in a fixed order; the index
// into this table is the formatID, a single-byte bijection as required by
// the wire format used by aln.Alignment and mapcache.
var table = buildTable()

func buildTable() []Format {
	var t []Format
	// SE has no orientation.
	for _, s := range []Strandedness{U, S, A} {
		t = append(t, Format{SE, None, s})
	}
	for _, o := range []Orientation{Same, Away, Toward} {
		for _, s := range []Strandedness{U, S, A, SA, AS} {
			t = append(t, Format{PE, o, s})
		}
	}
	return t
}

var idByFormat = func() map[Format]byte {
	m := make(map[Format]byte, len(table))
	for i, f := range table {
		m[f] = byte(i)
	}
	return m
}()

// FormatID returns the single-byte id used to serialize f. It panics if f
// is not one of the representable formats built by buildTable — this is
// an invariant violation (spec error kind 5), not a recoverable error,
// since every Format constructed by this package's own parsing and
// inference paths is guaranteed to be in the table.
func FormatID(f Format) byte {
	id, ok := idByFormat[f]
	if !ok {
		panic(fmt.Sprintf("libformat: %v is not a representable format", f))
	}
	return id
}

// FromID is the inverse of FormatID.
func FromID(id byte) (Format, error) {
	if int(id) >= len(table) {
		return Format{}, fmt.Errorf("libformat: formatID %d out of range", id)
	}
	return table[id], nil
}

// MaxFormatID returns the largest valid formatID, mirroring
// LibraryFormat::maxLibTypeID() in the reference implementation; callers
// size per-format tally slices with this.
func MaxFormatID() byte {
	return byte(len(table) - 1)
}

// LogZero stands in for log(0) in the log-domain arithmetic used
// throughout the quantification core.
var LogZero = math.Inf(-1)

// LogOrientationProb scores how compatible an observed alignment's format
// is with a library's expected format, in log space. It returns 0 (log 1)
// when fully compatible, log(0.5) when the expected library is unstranded
// (each strand gets half credit), and LogZero when the observed and
// expected formats disagree on read type or orientation, or disagree on
// strand when the expectation is itself stranded.
func LogOrientationProb(observed, expected Format) float64 {
	if observed.ReadType != expected.ReadType {
		return LogZero
	}
	if expected.Orientation != None && observed.Orientation != expected.Orientation {
		return LogZero
	}
	if expected.Strandedness == U {
		return math.Log(0.5)
	}
	if observed.Strandedness == expected.Strandedness {
		return 0
	}
	return LogZero
}
