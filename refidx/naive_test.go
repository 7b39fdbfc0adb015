package refidx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaiveIndexExactMatch(t *testing.T) {
	idx := NewNaiveIndex([]string{"t0"}, [][]byte{[]byte("ACGTACGT")})
	iv := idx.InitInterval('A')
	require.False(t, iv.Empty())
	iv = idx.ExtendRight(iv, 'C')
	iv = idx.ExtendRight(iv, 'G')
	// "ACGTACGT" is its own reverse complement, so "ACG" occurs at 0 and 4
	// of the forward half and at the same offsets of the reverse half.
	assert.Equal(t, int64(4), iv.Size())

	iv = idx.ExtendRight(iv, 'T')
	assert.Equal(t, int64(4), iv.Size())

	iv = idx.ExtendRight(iv, 'X') // no such extension
	assert.True(t, iv.Empty())
}

func TestNaiveIndexResolvePosition(t *testing.T) {
	idx := NewNaiveIndex([]string{"t0", "t1"}, [][]byte{[]byte("AAAA"), []byte("CCCC")})
	seqID, localPos, isReverse, ok := idx.ResolvePosition(0)
	require.True(t, ok)
	assert.Equal(t, int32(0), seqID)
	assert.Equal(t, 0, localPos)
	assert.False(t, isReverse)

	seqID, localPos, isReverse, ok = idx.ResolvePosition(5) // "AAAA\0" then "CCCC" starts at 5
	require.True(t, ok)
	assert.Equal(t, int32(1), seqID)
	assert.Equal(t, 0, localPos)
	assert.False(t, isReverse)
}

func TestNaiveIndexResolvePositionReverseHalf(t *testing.T) {
	idx := NewNaiveIndex([]string{"t0"}, [][]byte{[]byte("AACG")})
	// forward half is "AACG\x00" (5 bytes); reverse-complement half starts there.
	seqID, localPos, isReverse, ok := idx.ResolvePosition(5)
	require.True(t, ok)
	assert.Equal(t, int32(0), seqID)
	assert.Equal(t, 0, localPos)
	assert.True(t, isReverse)
}

func TestNaiveIndexLocateOccurrence(t *testing.T) {
	idx := NewNaiveIndex([]string{"t0"}, [][]byte{[]byte("ACGTACGT")})
	iv := idx.InitInterval('A')
	iv = idx.ExtendRight(iv, 'C')
	iv = idx.ExtendRight(iv, 'G')
	positions := map[int64]bool{}
	for i := int64(0); i < iv.Size(); i++ {
		positions[idx.LocateOccurrence(iv, i)] = true
	}
	assert.True(t, positions[0])
	assert.True(t, positions[4])
}
