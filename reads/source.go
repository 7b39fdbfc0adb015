package reads

import "os"

// Source produces one fragment's records at a time — a single Record
// for an unmated library, or a Record pair for a paired library — so
// the mapping-thread pool in the pipeline driver can treat both library
// kinds uniformly.
type Source interface {
	// Next reads the next fragment. mate is nil for unmated libraries.
	Next() (rec, mate *Record, ok bool)
	Err() error
}

// UnmatedSource adapts a single Scanner to Source.
type UnmatedSource struct {
	s *Scanner
}

// NewUnmatedSource wraps s as a Source.
func NewUnmatedSource(s *Scanner) *UnmatedSource { return &UnmatedSource{s: s} }

// Next implements Source.
func (u *UnmatedSource) Next() (*Record, *Record, bool) {
	rec := &Record{}
	if !u.s.Scan(rec) {
		return nil, nil, false
	}
	return rec, nil, true
}

// Err implements Source.
func (u *UnmatedSource) Err() error { return u.s.Err() }

// PairedSource adapts a PairScanner to Source.
type PairedSource struct {
	p *PairScanner
}

// NewPairedSource wraps p as a Source.
func NewPairedSource(p *PairScanner) *PairedSource { return &PairedSource{p: p} }

// Next implements Source.
func (p *PairedSource) Next() (*Record, *Record, bool) {
	rec1, rec2 := &Record{}, &Record{}
	if !p.p.Scan(rec1, rec2) {
		return nil, nil, false
	}
	return rec1, rec2, true
}

// Err implements Source.
func (p *PairedSource) Err() error { return p.p.Err() }

// IsRegularFile reports whether f names a regular file, as opposed to a
// pipe, FIFO, or other non-seekable stream. The pipeline driver uses
// this to decide whether a second pass over a library is even
// possible: the driver warns and breaks out
// of the outer loop when a non-regular source needs another pass.
func IsRegularFile(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
