// Package em implements the mini-batch EM worker: the E-step/M-step
// update that turns a batch of AlignmentGroups
// into transcript mass, plus the forgetting-mass schedule and the
// burn-in-gated fragment-length-distribution and cluster-forest
// co-learning. Ported in idiom from
// original_source/Sailfish/src/SalmonQuantify.cpp's processMiniBatch,
// with the batch-loop shape grounded on
// grailbio-bio/markduplicates/mark_duplicates.go's worker loop.
package em

import (
	"math"
	"math/rand"

	"github.com/homologus/txquant/aln"
	"github.com/homologus/txquant/clusterforest"
	"github.com/homologus/txquant/fld"
	"github.com/homologus/txquant/libformat"
	"github.com/homologus/txquant/logmath"
	"github.com/homologus/txquant/txome"
)

// Options carries the per-worker EM knobs.
type Options struct {
	UseFragLenDist   bool
	UseReadCompat    bool
	ExpectedFormat   libformat.Format
	ForgettingFactor float64 // ff, in (0.5, 0.7]
	BurnInFragments  uint64  // total assigned fragments before burn-in ends
	FirstRound       bool    // true only for the very first pass over the data
}

// Worker applies the online mini-batch EM update against a
// shared transcript store, fragment-length distribution, and cluster
// forest. A Worker is not safe for concurrent use by multiple
// goroutines; the pipeline driver shares a single Worker between its
// mapping goroutines and serializes every call into it with a mutex.
type Worker struct {
	Store   *txome.Store
	FLD     *fld.Distribution
	Forest  *clusterforest.Forest
	Opts    Options
	rng     *rand.Rand

	logForgettingMass float64
	batchNum          uint64
	totalAssigned     uint64
	burnedIn          bool
	libTypeCounts     map[byte]uint64
}

// NewWorker constructs a Worker with a fresh forgetting-mass schedule
// starting at batch 0 (logForgettingMass = log(1) = 0).
func NewWorker(store *txome.Store, dist *fld.Distribution, forest *clusterforest.Forest, opts Options, seed int64) *Worker {
	return &Worker{
		Store:         store,
		FLD:           dist,
		Forest:        forest,
		Opts:          opts,
		rng:           rand.New(rand.NewSource(seed)),
		libTypeCounts: make(map[byte]uint64),
	}
}

// BurnedIn reports whether at least Opts.BurnInFragments fragments have
// been assigned across the worker's lifetime.
func (w *Worker) BurnedIn() bool { return w.burnedIn }

// LibTypeCounts returns the running per-library-format alignment tally.
func (w *Worker) LibTypeCounts() map[byte]uint64 { return w.libTypeCounts }

func distinctTranscripts(alignments []aln.Alignment) []int32 {
	seen := make(map[int32]bool, len(alignments))
	var out []int32
	for _, a := range alignments {
		if !seen[a.TranscriptID] {
			seen[a.TranscriptID] = true
			out = append(out, a.TranscriptID)
		}
	}
	return out
}

// advanceForgettingMass advances the forgetting-mass schedule:
// between batches b >= 2, logForgettingMass += ff*log(b-1) - log(b^ff-1).
func (w *Worker) advanceForgettingMass() {
	w.batchNum++
	if w.batchNum < 2 {
		return
	}
	b := float64(w.batchNum)
	ff := w.Opts.ForgettingFactor
	w.logForgettingMass += ff*math.Log(b-1) - math.Log(math.Pow(b, ff)-1)
}

// ProcessMiniBatch runs the E-step, burn-in sampling, cluster update,
// and M-step over one fixed-size batch of AlignmentGroups.
func (w *Worker) ProcessMiniBatch(batch []*aln.Group) {
	w.advanceForgettingMass()

	txMassAccum := make(map[int32][]float64)

	for _, g := range batch {
		if len(g.Alignments) == 0 {
			continue
		}
		if !w.eStep(g) {
			continue // S == LOG_0: skip this read entirely
		}
		w.sampleForBurnIn(g)
		w.updateClusters(g)

		for _, a := range g.Alignments {
			txMassAccum[a.TranscriptID] = append(txMassAccum[a.TranscriptID], a.LogProb)
		}
	}

	for id, probs := range txMassAccum {
		updateMass := w.logForgettingMass + logmath.LogSumExp(probs...)
		w.Store.Transcript(id).AddMass(updateMass)
	}

	// Only flips after the whole batch's E-step/M-step has run, so every
	// read in the batch that crosses BurnInFragments still samples under
	// the pre-burn-in regime.
	if w.totalAssigned >= w.Opts.BurnInFragments {
		w.burnedIn = true
	}
}

// eStep computes each alignment's normalized logProb in place, credits
// the library-type counters, and reports whether the read was assigned
// (false means every alignment scored LOG_0 and the read is skipped).
func (w *Worker) eStep(g *aln.Group) bool {
	logs := make([]float64, len(g.Alignments))
	for i := range g.Alignments {
		a := &g.Alignments[i]
		t := w.Store.Transcript(a.TranscriptID)
		if t.Mass() == logmath.Zero {
			a.LogProb = logmath.Zero
			logs[i] = logmath.Zero
			continue
		}
		logFragProb := 0.0
		if w.Opts.UseFragLenDist && a.FragLength > 0 {
			logFragProb = w.FLD.Pmf(a.FragLength)
		}
		logOrientProb := 0.0
		if w.Opts.UseReadCompat {
			logOrientProb = libformat.LogOrientationProb(a.LibraryFormat, w.Opts.ExpectedFormat)
		}
		a.LogProb = (t.Mass() - math.Log(float64(t.Length))) + logFragProb + logOrientProb
		logs[i] = a.LogProb
	}

	s := logmath.LogSumExp(logs...)
	if s == logmath.Zero {
		return false
	}
	for i := range g.Alignments {
		g.Alignments[i].LogProb -= s
		w.libTypeCounts[libformat.FormatID(g.Alignments[i].LibraryFormat)]++
	}
	w.totalAssigned++
	return true
}

func (w *Worker) sampleForBurnIn(g *aln.Group) {
	if w.burnedIn {
		return
	}
	for _, a := range g.Alignments {
		if a.FragLength <= 0 {
			continue
		}
		if w.rng.Float64() < math.Exp(a.LogProb) {
			w.FLD.AddVal(a.FragLength, w.logForgettingMass)
		}
	}
}

func (w *Worker) updateClusters(g *aln.Group) {
	distinct := distinctTranscripts(g.Alignments)
	if w.Opts.FirstRound {
		for _, id := range distinct {
			w.Store.Transcript(id).AddTotalCount(1)
		}
	}
	if len(distinct) == 1 {
		id := distinct[0]
		w.Store.Transcript(id).AddUniqueCount(1)
		w.Forest.UpdateCluster(id, 1, w.logForgettingMass, true)
		return
	}
	w.Forest.MergeClusters(distinct)
	root := w.Forest.Root(distinct[0])
	w.Forest.UpdateCluster(root, 1, w.logForgettingMass, true)
}
