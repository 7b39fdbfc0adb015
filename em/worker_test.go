package em

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homologus/txquant/aln"
	"github.com/homologus/txquant/clusterforest"
	"github.com/homologus/txquant/fld"
	"github.com/homologus/txquant/libformat"
	"github.com/homologus/txquant/txome"
)

func newFixture(t *testing.T, n int) (*txome.Store, *clusterforest.Forest, *fld.Distribution) {
	names := make([]string, n)
	seqs := make([][]byte, n)
	for i := range names {
		names[i] = "t" + string(rune('0'+i))
		seqs[i] = []byte("ACGTACGTACGTACGTACGTACGT")
	}
	store, err := txome.New(names, seqs)
	require.NoError(t, err)
	forest := clusterforest.New(n)
	dist := fld.New(fld.Options{MaxFragLen: 200, Mean: 100, StdDev: 20, KernelN: 4, KernelP: 0.5})
	return store, forest, dist
}

func baseOpts() Options {
	return Options{
		UseFragLenDist:   false,
		UseReadCompat:    false,
		ForgettingFactor: 0.6,
		BurnInFragments:  5_000_000,
	}
}

func TestProcessMiniBatchAssignsMassProportionally(t *testing.T) {
	store, forest, dist := newFixture(t, 2)
	w := NewWorker(store, dist, forest, baseOpts(), 42)

	pool := aln.NewPool(4)
	g := pool.Get()
	g.Alignments = append(g.Alignments, aln.Alignment{TranscriptID: 0}, aln.Alignment{TranscriptID: 1})

	before0, before1 := store.Transcript(0).Mass(), store.Transcript(1).Mass()
	w.ProcessMiniBatch([]*aln.Group{g})

	assert.Greater(t, store.Transcript(0).Mass(), before0)
	assert.Greater(t, store.Transcript(1).Mass(), before1)
}

func TestProcessMiniBatchSkipsEmptyGroups(t *testing.T) {
	store, forest, dist := newFixture(t, 1)
	w := NewWorker(store, dist, forest, baseOpts(), 1)
	before := store.Transcript(0).Mass()

	w.ProcessMiniBatch([]*aln.Group{{}})
	assert.Equal(t, before, store.Transcript(0).Mass())
}

func TestProcessMiniBatchCreditsUniqueCountForSingleTranscriptRead(t *testing.T) {
	store, forest, dist := newFixture(t, 2)
	w := NewWorker(store, dist, forest, baseOpts(), 1)

	g := &aln.Group{Alignments: []aln.Alignment{{TranscriptID: 0}}}
	w.ProcessMiniBatch([]*aln.Group{g})

	assert.Equal(t, uint64(1), store.Transcript(0).UniqueCount())
}

func TestProcessMiniBatchAccumulatesClusterMass(t *testing.T) {
	store, forest, dist := newFixture(t, 2)
	w := NewWorker(store, dist, forest, baseOpts(), 1)

	before := forest.ClusterMass(0)

	g := &aln.Group{Alignments: []aln.Alignment{{TranscriptID: 0}}}
	w.ProcessMiniBatch([]*aln.Group{g})

	assert.Greater(t, forest.ClusterMass(0), before, "a single-transcript read must credit its cluster's mass, not leave it a no-op")
}

func TestProcessMiniBatchMergesClustersForAmbiguousRead(t *testing.T) {
	store, forest, dist := newFixture(t, 3)
	w := NewWorker(store, dist, forest, baseOpts(), 1)

	g := &aln.Group{Alignments: []aln.Alignment{{TranscriptID: 0}, {TranscriptID: 1}}}
	w.ProcessMiniBatch([]*aln.Group{g})

	assert.Equal(t, forest.Root(0), forest.Root(1))
	assert.NotEqual(t, forest.Root(0), forest.Root(2))
}

func TestForgettingMassAdvancesOnlyFromSecondBatchOnward(t *testing.T) {
	store, forest, dist := newFixture(t, 1)
	w := NewWorker(store, dist, forest, baseOpts(), 1)

	assert.Equal(t, 0.0, w.logForgettingMass)
	w.advanceForgettingMass()
	assert.Equal(t, 0.0, w.logForgettingMass, "first batch (b=1) leaves logForgettingMass untouched")
	w.advanceForgettingMass()
	assert.NotEqual(t, 0.0, w.logForgettingMass, "second batch (b=2) applies the schedule")
}

func TestFirstRoundIncrementsTotalCountOncePerGroup(t *testing.T) {
	store, forest, dist := newFixture(t, 1)
	opts := baseOpts()
	opts.FirstRound = true
	w := NewWorker(store, dist, forest, opts, 1)

	g1 := &aln.Group{Alignments: []aln.Alignment{{TranscriptID: 0}}}
	g2 := &aln.Group{Alignments: []aln.Alignment{{TranscriptID: 0}}}
	w.ProcessMiniBatch([]*aln.Group{g1, g2})

	assert.Equal(t, uint64(2), store.Transcript(0).TotalCount())
}

func TestSampleForBurnInUsesPreBatchRegimeAcrossWholeMiniBatch(t *testing.T) {
	makeBatch := func() []*aln.Group {
		lens := []int{60, 90, 140}
		batch := make([]*aln.Group, len(lens))
		for i, l := range lens {
			batch[i] = &aln.Group{Alignments: []aln.Alignment{{TranscriptID: 0, FragLength: l}}}
		}
		return batch
	}

	// BurnInFragments=2 crosses mid-batch, after the second of three
	// reads; BurnInFragments=3 only crosses at the very end of the same
	// batch. Since burnedIn should only flip once the whole batch's
	// E-step/M-step has run, every read in both batches samples under
	// the same pre-burn-in regime and both distributions must end up
	// identical.
	store1, forest1, dist1 := newFixture(t, 1)
	opts1 := baseOpts()
	opts1.BurnInFragments = 2
	w1 := NewWorker(store1, dist1, forest1, opts1, 1)
	w1.ProcessMiniBatch(makeBatch())

	store2, forest2, dist2 := newFixture(t, 1)
	opts2 := baseOpts()
	opts2.BurnInFragments = 3
	w2 := NewWorker(store2, dist2, forest2, opts2, 1)
	w2.ProcessMiniBatch(makeBatch())

	assert.Equal(t, dist1.Mean(), dist2.Mean(), "every read in a mini-batch must sample under the same pre-batch burn-in regime regardless of where within the batch BurnInFragments is crossed")
	assert.True(t, w1.BurnedIn())
	assert.True(t, w2.BurnedIn())
}

func TestReadCompatibilityRejectsIncompatibleFormat(t *testing.T) {
	store, forest, dist := newFixture(t, 1)
	opts := baseOpts()
	opts.UseReadCompat = true
	opts.ExpectedFormat = libformat.Format{ReadType: libformat.SE, Orientation: libformat.None, Strandedness: libformat.S}
	w := NewWorker(store, dist, forest, opts, 1)

	g := &aln.Group{Alignments: []aln.Alignment{{
		TranscriptID:  0,
		LibraryFormat: libformat.Format{ReadType: libformat.SE, Orientation: libformat.None, Strandedness: libformat.A},
	}}}
	before := store.Transcript(0).Mass()
	w.ProcessMiniBatch([]*aln.Group{g})
	assert.Equal(t, before, store.Transcript(0).Mass(), "incompatible-format alignment should score LOG_0 and be skipped")
}
