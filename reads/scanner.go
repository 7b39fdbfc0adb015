// Package reads implements FASTQ read input for the mapping stage:
// Record, Scanner, and PairScanner, plus a small Source abstraction the
// pipeline driver uses to treat unmated and paired libraries uniformly.
// Adapted in idiom from grailbio-bio/encoding/fastq/scanner.go, trimmed
// to the ID/Seq/Qual fields the mapper actually consumes (the "unknown"
// third FASTQ line is validated but discarded).
package reads

import (
	"bufio"
	"errors"
	"io"
)

var (
	// ErrShort is returned when a truncated FASTQ record is encountered.
	ErrShort = errors.New("reads: short FASTQ record")
	// ErrInvalid is returned when a malformed FASTQ record is encountered.
	ErrInvalid = errors.New("reads: invalid FASTQ record")
	// ErrDiscordant is returned when a read-pair's two streams desynchronize.
	ErrDiscordant = errors.New("reads: discordant FASTQ pair")
)

var errEOF = errors.New("reads: eof")

// Record is one FASTQ read: its id line, sequence, and quality string.
type Record struct {
	ID, Seq, Qual string
}

// Trim cuts Seq and Qual to at most n bytes.
func (r *Record) Trim(n int) {
	if len(r.Seq) > n {
		r.Seq = r.Seq[:n]
	}
	if len(r.Qual) > n {
		r.Qual = r.Qual[:n]
	}
}

// Scanner reads FASTQ records one at a time. Not safe for concurrent use.
type Scanner struct {
	b   *bufio.Scanner
	err error
}

// NewScanner returns a Scanner reading raw FASTQ data from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan reads the next record into rec, returning false once the stream
// is exhausted or an error occurs; check Err afterward.
func (s *Scanner) Scan(rec *Record) bool {
	if s.err != nil {
		return false
	}
	if !s.b.Scan() {
		if s.err = s.b.Err(); s.err == nil {
			s.err = errEOF
		}
		return false
	}
	id := s.b.Bytes()
	if len(id) == 0 || id[0] != '@' {
		s.err = ErrInvalid
		return false
	}
	rec.ID = string(id)

	if !s.scanLine() {
		return false
	}
	rec.Seq = s.b.Text()

	if !s.scanLine() {
		return false
	}
	unk := s.b.Bytes()
	if len(unk) == 0 || unk[0] != '+' {
		s.err = ErrInvalid
		return false
	}

	if !s.scanLine() {
		return false
	}
	rec.Qual = s.b.Text()
	return true
}

func (s *Scanner) scanLine() bool {
	if !s.b.Scan() {
		if s.err = s.b.Err(); s.err == nil {
			s.err = ErrShort
		}
		return false
	}
	return true
}

// Err returns the scanning error, if any (nil at clean end-of-stream).
func (s *Scanner) Err() error {
	if s.err == errEOF {
		return nil
	}
	return s.err
}

// PairScanner scans two FASTQ streams (mate 1 and mate 2) in lockstep.
type PairScanner struct {
	r1, r2 *Scanner
	err    error
}

// NewPairScanner returns a PairScanner over r1 (mate 1) and r2 (mate 2).
func NewPairScanner(r1, r2 io.Reader) *PairScanner {
	return &PairScanner{r1: NewScanner(r1), r2: NewScanner(r2)}
}

// Scan reads the next record pair into rec1, rec2.
func (p *PairScanner) Scan(rec1, rec2 *Record) bool {
	ok1 := p.r1.Scan(rec1)
	ok2 := p.r2.Scan(rec2)
	if ok1 != ok2 {
		p.err = ErrDiscordant
	}
	return ok1 && ok2
}

// Err returns the scanning error, if any.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return err
	}
	if err := p.r2.Err(); err != nil {
		return err
	}
	return p.err
}
