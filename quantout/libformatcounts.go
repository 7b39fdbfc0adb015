package quantout

import (
	"bufio"
	"fmt"
	"os"

	farm "github.com/dgryski/go-farm"
	"github.com/pkg/errors"

	"github.com/homologus/txquant/libformat"
)

// FormatCount is one hash-bucket in a LibFormatSummary's per-format
// tally: the resolved Format alongside its observed count.
type FormatCount struct {
	Format libformat.Format
	Count  uint64
}

// LibFormatSummary is one library's format-compatibility tally: how
// many observed fragments matched each libformat.Format, and how many
// of those were compatible vs. incompatible with the library's
// declared (expected) format, mirroring
// original_source/Sailfish's libTypeCounts reporting.
type LibFormatSummary struct {
	LibraryIndex int
	Expected     libformat.Format
	Total        uint64
	Compatible   uint64
	Incompatible uint64

	// byFormat is keyed by farm.Hash64WithSeed of the observed
	// formatID rather than the Format value itself, the same
	// hash-indexed lookup fusion/kmer_index.go's hashKmer uses in
	// place of keying a map directly by its natural (wider) key.
	byFormat map[uint64]FormatCount
}

func formatHash(id byte) uint64 {
	return farm.Hash64WithSeed([]byte{id}, 0)
}

// Formats returns the summary's per-format counts.
func (s *LibFormatSummary) Formats() []FormatCount {
	out := make([]FormatCount, 0, len(s.byFormat))
	for _, e := range s.byFormat {
		out = append(out, e)
	}
	return out
}

func compatible(observed, expected libformat.Format) bool {
	return libformat.LogOrientationProb(observed, expected) != libformat.LogZero
}

// Summarize builds one LibFormatSummary per library from counts (as
// returned by quantify.Driver.LibTypeCounts) and each library's
// declared expected format.
func Summarize(expected []libformat.Format, counts []map[byte]uint64) []LibFormatSummary {
	out := make([]LibFormatSummary, len(counts))
	for i, byID := range counts {
		s := LibFormatSummary{
			LibraryIndex: i,
			Expected:     expected[i],
			byFormat:     make(map[uint64]FormatCount, len(byID)),
		}
		for id, n := range byID {
			f, err := libformat.FromID(id)
			if err != nil {
				continue
			}
			s.byFormat[formatHash(id)] = FormatCount{Format: f, Count: n}
			s.Total += n
			if compatible(f, expected[i]) {
				s.Compatible += n
			} else {
				s.Incompatible += n
			}
		}
		out[i] = s
	}
	return out
}

// WriteLibFormatCounts writes summaries to path, one section per
// library.
func WriteLibFormatCounts(path string, summaries []LibFormatSummary) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "quantout: creating %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	for _, s := range summaries {
		fmt.Fprintf(w, "# library %d\n", s.LibraryIndex)
		fmt.Fprintf(w, "expected_format\t%s\n", s.Expected)
		fmt.Fprintf(w, "total_fragments\t%d\n", s.Total)
		fmt.Fprintf(w, "compatible_fragments\t%d\n", s.Compatible)
		fmt.Fprintf(w, "incompatible_fragments\t%d\n", s.Incompatible)
		for _, e := range s.Formats() {
			fmt.Fprintf(w, "observed_format\t%s\t%d\n", e.Format, e.Count)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "quantout: writing %s", path)
	}
	return nil
}
