package txome

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFastaParsesMultipleSequences(t *testing.T) {
	names, seqs, err := LoadFasta(strings.NewReader(">tx1\nACGT\nACGT\n>tx2 some description\nTTTT\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tx1", "tx2"}, names)
	require.Len(t, seqs, 2)
	assert.Equal(t, "ACGTACGT", string(seqs[0]))
	assert.Equal(t, "TTTT", string(seqs[1]))
}

func TestLoadFastaTruncatesNameAtFirstSpace(t *testing.T) {
	names, _, err := LoadFasta(strings.NewReader(">tx1 extra info here\nACGT\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tx1"}, names)
}

func TestLoadFastaRejectsSequenceWithoutHeader(t *testing.T) {
	_, _, err := LoadFasta(strings.NewReader("ACGT\n"))
	assert.Error(t, err)
}

func TestLoadFastaSkipsBlankLines(t *testing.T) {
	names, seqs, err := LoadFasta(strings.NewReader(">tx1\nACGT\n\nACGT\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tx1"}, names)
	assert.Equal(t, "ACGTACGT", string(seqs[0]))
}
