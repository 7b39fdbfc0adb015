package quantify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homologus/txquant/aln"
	"github.com/homologus/txquant/hitcollect"
	"github.com/homologus/txquant/libformat"
	"github.com/homologus/txquant/reads"
	"github.com/homologus/txquant/refidx"
	"github.com/homologus/txquant/seed"
	"github.com/homologus/txquant/txome"
)

func testMapper(t *testing.T, txSeq string) (*Mapper, *txome.Store) {
	idx := refidx.NewNaiveIndex([]string{"tx1"}, [][]byte{[]byte(txSeq)})
	store, err := txome.New([]string{"tx1"}, [][]byte{[]byte(txSeq)})
	require.NoError(t, err)
	m := NewMapper(idx, store, seed.Options{MinSeedLen: 8}, hitcollect.Options{MaxOcc: 200, MinSeedLen: 8}, 0.5, 0, false, libformat.Format{})
	return m, store
}

func TestMapUnmatedFindsForwardHit(t *testing.T) {
	txSeq := "ACGTACGTTTGGCCAAGGTTCCAAGGTTCCAA"
	m, _ := testMapper(t, txSeq)

	g := &aln.Group{}
	m.MapUnmated(&reads.Record{ID: "r1", Seq: txSeq[4:20]}, g)

	require.Len(t, g.Alignments, 1)
	assert.EqualValues(t, 0, g.Alignments[0].TranscriptID)
	assert.Equal(t, libformat.S, g.Alignments[0].LibraryFormat.Strandedness)
	assert.Greater(t, g.Alignments[0].Score, 0.5)
}

func TestMapUnmatedFindsReverseComplementHit(t *testing.T) {
	txSeq := "ACGTACGTTTGGCCAAGGTTCCAAGGTTCCAA"
	m, _ := testMapper(t, txSeq)

	rc := reverseComplement(txSeq[4:20])
	g := &aln.Group{}
	m.MapUnmated(&reads.Record{ID: "r1", Seq: rc}, g)

	require.Len(t, g.Alignments, 1)
	assert.Equal(t, libformat.A, g.Alignments[0].LibraryFormat.Strandedness)
}

func TestMapUnmatedRejectsBelowCoverageThreshold(t *testing.T) {
	txSeq := "ACGTACGTTTGGCCAAGGTTCCAAGGTTCCAA"
	m, _ := testMapper(t, txSeq)
	m.CoverageThresh = 1.1 // unreachable

	g := &aln.Group{}
	m.MapUnmated(&reads.Record{ID: "r1", Seq: txSeq[4:20]}, g)
	assert.Empty(t, g.Alignments)
}

func TestMapUnmatedCapsAtMaxReadOccs(t *testing.T) {
	txSeq := "ACGTACGTTTGGCCAAGGTTCCAAGGTTCCAA"
	idx := refidx.NewNaiveIndex([]string{"tx1", "tx2"}, [][]byte{[]byte(txSeq), []byte(txSeq)})
	store, err := txome.New([]string{"tx1", "tx2"}, [][]byte{[]byte(txSeq), []byte(txSeq)})
	require.NoError(t, err)
	m := NewMapper(idx, store, seed.Options{MinSeedLen: 8}, hitcollect.Options{MaxOcc: 200, MinSeedLen: 8}, 0.5, 1, false, libformat.Format{})

	g := &aln.Group{}
	m.MapUnmated(&reads.Record{ID: "r1", Seq: txSeq[4:20]}, g)
	assert.Empty(t, g.Alignments)
}

func TestMapPairedRequiresConcordantTranscriptHit(t *testing.T) {
	txSeq := "ACGTACGTTTGGCCAAGGTTCCAAGGTTCCAAGGGGCCCCTTTTAAAA"
	m, _ := testMapper(t, txSeq)

	rec1 := &reads.Record{ID: "r1", Seq: txSeq[0:16]}
	rec2 := &reads.Record{ID: "r1", Seq: reverseComplement(txSeq[30:48])}

	g := &aln.Group{}
	m.MapPaired(rec1, rec2, g)

	require.Len(t, g.Alignments, 1)
	a := g.Alignments[0]
	assert.EqualValues(t, 0, a.TranscriptID)
	assert.Equal(t, libformat.PE, a.LibraryFormat.ReadType)
	assert.Greater(t, a.FragLength, 0)
}

func TestMapPairedScoresAsAverageOfBothMates(t *testing.T) {
	txSeq := "ACGTACGTTTGGCCAAGGTTCCAAGGTTCCAAGGGGCCCCTTTTAAAA"
	m, _ := testMapper(t, txSeq)

	rec1 := &reads.Record{ID: "r1", Seq: txSeq[0:16]}
	rec2 := &reads.Record{ID: "r1", Seq: reverseComplement(txSeq[30:48])}

	hits1 := m.mapEnd(rec1)
	hits2 := m.mapEnd(rec2)
	require.Len(t, hits1, 1)
	require.Len(t, hits2, 1)
	wantScore := (hits1[0].score + hits2[0].score) / 2

	g := &aln.Group{}
	m.MapPaired(rec1, rec2, g)

	require.Len(t, g.Alignments, 1)
	assert.InDelta(t, wantScore, g.Alignments[0].Score, 1e-9, "concordant pair score must be the average of both mates, not the min")
}

func TestMapPairedDropsMateOnlyHittingDifferentTranscript(t *testing.T) {
	tx1 := "ACGTACGTTTGGCCAAGGTTCCAAGGTTCCAA"
	tx2 := "TTTTGGGGCCCCAAAATTTTGGGGCCCCAAAA"
	idx := refidx.NewNaiveIndex([]string{"tx1", "tx2"}, [][]byte{[]byte(tx1), []byte(tx2)})
	store, err := txome.New([]string{"tx1", "tx2"}, [][]byte{[]byte(tx1), []byte(tx2)})
	require.NoError(t, err)
	m := NewMapper(idx, store, seed.Options{MinSeedLen: 8}, hitcollect.Options{MaxOcc: 200, MinSeedLen: 8}, 0.5, 0, false, libformat.Format{})

	rec1 := &reads.Record{ID: "r1", Seq: tx1[0:16]}
	rec2 := &reads.Record{ID: "r1", Seq: reverseComplement(tx2[10:26])}

	g := &aln.Group{}
	m.MapPaired(rec1, rec2, g)
	assert.Empty(t, g.Alignments)
}

func reverseComplement(s string) string {
	comp := map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[len(s)-1-i] = comp[s[i]]
	}
	return string(out)
}
