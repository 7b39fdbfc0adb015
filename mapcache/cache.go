// Package mapcache implements the inter-round mapping cache: a
// snappy-compressed, length-prefixed binary stream of
// AlignmentGroups, one file per read library, written during round 0
// mapping and replayed during later EM-only rounds instead of
// re-mapping. Grounded on
// grailbio-bio/encoding/bampair/disk_mate_shard.go's disk-shard codec
// (encoding/binary length-prefixed records over a
// github.com/golang/snappy stream).
package mapcache

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/homologus/txquant/aln"
	"github.com/homologus/txquant/libformat"
)

// File describes one completed cache-writing pass: the path it was
// written to and how many alignment groups it holds.
type File struct {
	Path              string
	NumRecordsWritten uint64
}

// CacheFileName returns the conventional cache file name for read
// library libIdx within dir.
func CacheFileName(dir string, libIdx int) string {
	return fmt.Sprintf("%s/alnCache_%d.bin", dir, libIdx)
}

// Writer appends AlignmentGroups to a snappy-compressed cache file.
type Writer struct {
	mu       sync.Mutex
	f        *os.File
	sw       *snappy.Writer
	path     string
	numGroups uint64
}

// CreateWriter creates (truncating any existing file) a cache writer at
// path.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "mapcache: creating %s", path)
	}
	return &Writer{f: f, sw: snappy.NewBufferedWriter(f), path: path}, nil
}

// WriteGroup appends one alignment group: a uint32 alignment count
// followed by, per alignment, transcriptId (uint32 LE), formatID (byte),
// score (float64 bits, uint64 LE), fragLength (uint32 LE).
func (w *Writer) WriteGroup(g *aln.Group) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(g.Alignments)))
	if _, err := w.sw.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "mapcache: writing group header")
	}

	var rec [17]byte
	for _, a := range g.Alignments {
		binary.LittleEndian.PutUint32(rec[0:4], uint32(a.TranscriptID))
		rec[4] = libformat.FormatID(a.LibraryFormat)
		binary.LittleEndian.PutUint64(rec[5:13], math.Float64bits(a.Score))
		binary.LittleEndian.PutUint32(rec[13:17], uint32(a.FragLength))
		if _, err := w.sw.Write(rec[:]); err != nil {
			return errors.Wrap(err, "mapcache: writing alignment record")
		}
	}
	w.numGroups++
	return nil
}

// Close flushes and closes the underlying file, returning a File summary.
func (w *Writer) Close() (File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.sw.Close(); err != nil {
		return File{}, errors.Wrapf(err, "mapcache: closing snappy writer for %s", w.path)
	}
	if err := w.f.Close(); err != nil {
		return File{}, errors.Wrapf(err, "mapcache: closing %s", w.path)
	}
	return File{Path: w.path, NumRecordsWritten: w.numGroups}, nil
}

// Reader replays AlignmentGroups from a cache file written by Writer.
type Reader struct {
	f  *os.File
	sr *snappy.Reader
}

// OpenReader opens the cache file at path for replay.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "mapcache: opening %s", path)
	}
	return &Reader{f: f, sr: snappy.NewReader(f)}, nil
}

// ReadGroup reads the next alignment group into a Group loaned from
// pool. It returns io.EOF once every record has been read.
func (r *Reader) ReadGroup(pool *aln.Pool) (*aln.Group, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r.sr, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errors.New("mapcache: truncated group header")
		}
		return nil, err // propagates io.EOF unwrapped
	}
	n := binary.LittleEndian.Uint32(hdr[:])

	g := pool.Get()
	var rec [17]byte
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(r.sr, rec[:]); err != nil {
			return nil, errors.Wrap(err, "mapcache: reading alignment record")
		}
		txID := int32(binary.LittleEndian.Uint32(rec[0:4]))
		formatID := rec[4]
		score := math.Float64frombits(binary.LittleEndian.Uint64(rec[5:13]))
		fragLen := int(binary.LittleEndian.Uint32(rec[13:17]))

		format, err := libformat.FromID(formatID)
		if err != nil {
			return nil, errors.Wrap(err, "mapcache: decoding library format")
		}
		g.Alignments = append(g.Alignments, aln.Alignment{
			TranscriptID:  txID,
			LibraryFormat: format,
			Score:         score,
			FragLength:    fragLen,
		})
	}
	return g, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return errors.Wrapf(r.f.Close(), "mapcache: closing %s", r.f.Name())
}
