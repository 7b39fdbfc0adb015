package reads

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fastqSample = "@r1\nACGT\n+\nIIII\n@r2\nTTTT\n+\nJJJJ\n"

func TestScannerReadsRecords(t *testing.T) {
	s := NewScanner(strings.NewReader(fastqSample))
	var r Record
	require.True(t, s.Scan(&r))
	assert.Equal(t, "@r1", r.ID)
	assert.Equal(t, "ACGT", r.Seq)
	assert.Equal(t, "IIII", r.Qual)

	require.True(t, s.Scan(&r))
	assert.Equal(t, "@r2", r.ID)

	assert.False(t, s.Scan(&r))
	assert.NoError(t, s.Err())
}

func TestScannerRejectsMissingAtSign(t *testing.T) {
	s := NewScanner(strings.NewReader("r1\nACGT\n+\nIIII\n"))
	var r Record
	assert.False(t, s.Scan(&r))
	assert.Equal(t, ErrInvalid, s.Err())
}

func TestScannerRejectsTruncatedRecord(t *testing.T) {
	s := NewScanner(strings.NewReader("@r1\nACGT\n"))
	var r Record
	assert.False(t, s.Scan(&r))
	assert.Equal(t, ErrShort, s.Err())
}

func TestPairScannerReadsInLockstep(t *testing.T) {
	p := NewPairScanner(strings.NewReader(fastqSample), strings.NewReader(fastqSample))
	var r1, r2 Record
	require.True(t, p.Scan(&r1, &r2))
	assert.Equal(t, r1.ID, r2.ID)
	require.True(t, p.Scan(&r1, &r2))
	assert.False(t, p.Scan(&r1, &r2))
	assert.NoError(t, p.Err())
}

func TestPairScannerDetectsDiscordantStreams(t *testing.T) {
	short := "@r1\nACGT\n+\nIIII\n"
	p := NewPairScanner(strings.NewReader(fastqSample), strings.NewReader(short))
	var r1, r2 Record
	require.True(t, p.Scan(&r1, &r2))
	assert.False(t, p.Scan(&r1, &r2))
	assert.Equal(t, ErrDiscordant, p.Err())
}

func TestRecordTrim(t *testing.T) {
	r := Record{Seq: "ACGTACGT", Qual: "IIIIIIII"}
	r.Trim(4)
	assert.Equal(t, "ACGT", r.Seq)
	assert.Equal(t, "IIII", r.Qual)
}

func TestUnmatedSourceAdapter(t *testing.T) {
	src := NewUnmatedSource(NewScanner(strings.NewReader(fastqSample)))
	rec, mate, ok := src.Next()
	require.True(t, ok)
	assert.Nil(t, mate)
	assert.Equal(t, "@r1", rec.ID)
}

func TestPairedSourceAdapter(t *testing.T) {
	src := NewPairedSource(NewPairScanner(strings.NewReader(fastqSample), strings.NewReader(fastqSample)))
	rec, mate, ok := src.Next()
	require.True(t, ok)
	require.NotNil(t, mate)
	assert.Equal(t, rec.ID, mate.ID)
}
