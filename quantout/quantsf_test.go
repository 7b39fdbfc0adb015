package quantout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homologus/txquant/txome"
)

func newTestStore(t *testing.T) *txome.Store {
	store, err := txome.New([]string{"tx1", "tx2"}, [][]byte{
		[]byte("ACGTACGTACGTACGTACGTACGTACGTACGT"), // 32bp
		[]byte("TTTTGGGGCCCCAAAATTTTGGGGCCCCAAAA"), // 32bp
	})
	require.NoError(t, err)
	return store
}

func TestEffectiveLengthFallsBackToFullLengthWithoutFLD(t *testing.T) {
	assert.Equal(t, 100.0, effectiveLength(100, 0))
}

func TestEffectiveLengthFloorsAtOne(t *testing.T) {
	assert.Equal(t, 1.0, effectiveLength(50, 200))
}

func TestEffectiveLengthShortensByMeanFragLen(t *testing.T) {
	assert.Equal(t, 71.0, effectiveLength(100, 30))
}

func TestComputeResultsProducesNormalizedTPM(t *testing.T) {
	store := newTestStore(t)
	store.Transcript(0).AddMass(3.0)
	store.Transcript(1).AddMass(1.0)
	store.Transcript(0).AddTotalCount(10)
	store.Transcript(1).AddTotalCount(2)

	results := ComputeResults(store, 0)
	require.Len(t, results, 2)

	var sum float64
	for _, r := range results {
		sum += r.TPM
	}
	assert.InDelta(t, 1e6, sum, 1.0)
	assert.Greater(t, results[0].TPM, results[1].TPM, "transcript 0 has more mass and should carry more TPM")
	assert.EqualValues(t, 10, results[0].NumReads)
}

func TestWriteQuantSFProducesCommentedHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quant.sf")
	results := []Result{
		{Name: "tx1", Length: 33, EffectiveLength: 33, TPM: 600000, NumReads: 10},
		{Name: "tx2", Length: 32, EffectiveLength: 32, TPM: 400000, NumReads: 2},
	}
	require.NoError(t, WriteQuantSF(path, results, "txquant -i idx -o out"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# txquant\n")
	assert.Contains(t, content, "Name\tLength\tEffectiveLength\tTPM\tNumReads\n")
	assert.Contains(t, content, "tx1\t33\t")
}
