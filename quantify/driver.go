package quantify

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/homologus/txquant/aln"
	"github.com/homologus/txquant/clusterforest"
	"github.com/homologus/txquant/em"
	"github.com/homologus/txquant/fld"
	"github.com/homologus/txquant/hitcollect"
	"github.com/homologus/txquant/libformat"
	"github.com/homologus/txquant/mapcache"
	"github.com/homologus/txquant/reads"
	"github.com/homologus/txquant/refidx"
	"github.com/homologus/txquant/seed"
	"github.com/homologus/txquant/txome"
)

// miniBatchSize is the number of fragments a mapping or EM worker
// accumulates before calling ProcessMiniBatch, matching the scale
// original_source/Sailfish uses for its mini-batches.
const miniBatchSize = 1000

// progressInterval is how often (in observed fragments) recordFragment
// logs a "processed N fragments" progress line.
const progressInterval = 50000

// Driver runs the outer mapping/EM loop across
// every configured library, sharing one transcript store, cluster
// forest, and (optionally) fragment-length distribution across rounds.
type Driver struct {
	Opts  Opts
	Index refidx.Index
	Store *txome.Store

	Forest *clusterforest.Forest
	FLD    *fld.Distribution
	Pool   *aln.Pool

	// emMu serializes ProcessMiniBatch calls across mapping/EM
	// goroutines: logForgettingMass and batchNum are per-Worker fields
	// (not independently shared), so one *em.Worker is shared and its
	// mini-batch calls are coarse-locked, the same "protected by a
	// coarse lock" concurrency choice used elsewhere for
	// the cluster forest.
	emMu sync.Mutex
	em   *em.Worker

	numObserved uint64
	numAssigned uint64
	validHits   uint64

	libTypeMu     sync.Mutex
	libTypeCounts []map[byte]uint64
}

// NewDriver constructs a Driver over a pre-built index and transcript
// store. Both index construction and transcript-store construction
// from a reference FASTA are out of scope for this package; callers
// supply both.
func NewDriver(opts Opts, idx refidx.Index, store *txome.Store) (*Driver, error) {
	if err := validate(&opts); err != nil {
		return nil, err
	}
	forest := clusterforest.New(store.NumTranscripts())
	dist := fld.New(fld.Options{
		MaxFragLen: opts.FLDMaxLen,
		Mean:       opts.FLDMean,
		StdDev:     opts.FLDStdDev,
		KernelN:    opts.FLDKernelN,
		KernelP:    opts.FLDKernelP,
	})
	d := &Driver{
		Opts:          opts,
		Index:         idx,
		Store:         store,
		Forest:        forest,
		FLD:           dist,
		Pool:          aln.NewPool(opts.Threads * 1000 * 10),
		libTypeCounts: make([]map[byte]uint64, len(opts.Libraries)),
	}
	for i := range d.libTypeCounts {
		d.libTypeCounts[i] = make(map[byte]uint64)
	}
	d.em = em.NewWorker(store, dist, forest, em.Options{
		UseFragLenDist:   opts.UseFragLenDist,
		UseReadCompat:    opts.UseReadCompat,
		ForgettingFactor: opts.ForgettingFactor,
		BurnInFragments:  opts.BurnInFragments,
	}, 0)
	return d, nil
}

// NumObserved returns the number of fragments observed so far.
func (d *Driver) NumObserved() uint64 { return atomic.LoadUint64(&d.numObserved) }

// NumAssigned returns the number of fragments that cleared the coverage
// threshold against at least one transcript.
func (d *Driver) NumAssigned() uint64 { return atomic.LoadUint64(&d.numAssigned) }

// ValidHits returns the total number of per-transcript alignments
// produced across every assigned fragment.
func (d *Driver) ValidHits() uint64 { return atomic.LoadUint64(&d.validHits) }

// LibTypeCounts returns the per-library, per-observed-format fragment
// tallies accumulated across every round, keyed by libformat.FormatID.
func (d *Driver) LibTypeCounts() []map[byte]uint64 { return d.libTypeCounts }

// recordFragment updates the observed/assigned/validHits counters and,
// for an assigned fragment, tallies the format of its first alignment
// against libIdx's running library-format counts. Every progressInterval
// fragments it logs a running summary, the way the original prints
// "processed N fragments" / "hits per frag" progress to stderr.
func (d *Driver) recordFragment(libIdx int, g *aln.Group) {
	observed := atomic.AddUint64(&d.numObserved, 1)
	if len(g.Alignments) == 0 {
		d.logProgress(observed)
		return
	}
	atomic.AddUint64(&d.numAssigned, 1)
	atomic.AddUint64(&d.validHits, uint64(len(g.Alignments)))

	id := libformat.FormatID(g.Alignments[0].LibraryFormat)
	d.libTypeMu.Lock()
	d.libTypeCounts[libIdx][id]++
	d.libTypeMu.Unlock()

	d.logProgress(observed)
}

// logProgress emits a "processed N fragments" line every progressInterval
// fragments, along with a running hits-per-fragment ratio.
func (d *Driver) logProgress(observed uint64) {
	if observed == 0 || observed%progressInterval != 0 {
		return
	}
	assigned := atomic.LoadUint64(&d.numAssigned)
	hits := atomic.LoadUint64(&d.validHits)
	perFrag := 0.0
	if assigned > 0 {
		perFrag = float64(hits) / float64(assigned)
	}
	log.Debug.Printf("quantify: processed %d fragments, hits per frag: %.3f", observed, perFrag)
}

// cacheDir is the directory alnCache_<libIdx>.bin files live in.
func (d *Driver) cacheDir() string { return d.Opts.OutputPath }

func newSource(lib LibraryInput) (reads.Source, []*os.File, error) {
	openAll := func(paths []string) ([]io.Reader, []*os.File, error) {
		var readers []io.Reader
		var files []*os.File
		for _, p := range paths {
			f, err := os.Open(p)
			if err != nil {
				for _, opened := range files {
					opened.Close()
				}
				return nil, nil, errors.E(err, "quantify: opening", p)
			}
			files = append(files, f)
			readers = append(readers, f)
		}
		return readers, files, nil
	}

	if len(lib.Unmated) > 0 {
		readers, files, err := openAll(lib.Unmated)
		if err != nil {
			return nil, nil, err
		}
		return reads.NewUnmatedSource(reads.NewScanner(io.MultiReader(readers...))), files, nil
	}
	r1, f1, err := openAll(lib.Mates1)
	if err != nil {
		return nil, nil, err
	}
	r2, f2, err := openAll(lib.Mates2)
	if err != nil {
		for _, opened := range f1 {
			opened.Close()
		}
		return nil, nil, err
	}
	files := append(f1, f2...)
	return reads.NewPairedSource(reads.NewPairScanner(io.MultiReader(r1...), io.MultiReader(r2...))), files, nil
}

func filesAreRegular(files []*os.File) bool {
	for _, f := range files {
		ok, err := reads.IsRegularFile(f)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// Run executes the outer loop: repeated rounds
// over every library until numRequiredFragments fragments have been
// observed, or the input can no longer be re-read.
func (d *Driver) Run() error {
	round := 0
	for atomic.LoadUint64(&d.numObserved) < d.Opts.NumRequiredFragments {
		firstRound := round == 0
		cacheDisabled := d.Opts.DisableMappingCache
		anyNonRegular := false

		for libIdx, lib := range d.Opts.Libraries {
			var err error
			nonRegular := false
			if firstRound || cacheDisabled {
				nonRegular, err = d.mapRound(libIdx, lib, firstRound)
			} else {
				err = d.cacheRound(libIdx)
			}
			if err != nil {
				return err
			}
			anyNonRegular = anyNonRegular || nonRegular
		}

		if atomic.LoadUint64(&d.numObserved) >= d.Opts.NumRequiredFragments {
			break
		}
		if anyNonRegular {
			log.Error.Printf("quantify: input for at least one library cannot be re-read (pipe or FIFO); stopping after %d fragments observed", atomic.LoadUint64(&d.numObserved))
			break
		}

		if cacheDisabled {
			d.Store.Reset()
			d.Forest.Reset()
		} else {
			d.Store.SoftReset()
		}
		round++
	}
	if !d.Opts.DisableMappingCache {
		d.removeCacheFiles()
	}
	return nil
}

// removeCacheFiles deletes every library's cache file once the loop has
// run to completion; they are scratch space
// for the run, not a durable artifact.
func (d *Driver) removeCacheFiles() {
	for libIdx := range d.Opts.Libraries {
		if err := os.Remove(mapcache.CacheFileName(d.cacheDir(), libIdx)); err != nil && !os.IsNotExist(err) {
			log.Error.Printf("quantify: removing cache file for library %d: %v", libIdx, err)
		}
	}
}

// mapRound maps every fragment of one library, feeding each mini-batch
// through the shared EM worker, and (unless the cache is disabled)
// writes every group to that library's cache file for later rounds.
// It returns true if the library's input is a non-regular stream (a
// pipe or FIFO cannot be re-read for a subsequent round).
func (d *Driver) mapRound(libIdx int, lib LibraryInput, firstRound bool) (nonRegular bool, err error) {
	src, files, err := newSource(lib)
	if err != nil {
		return false, err
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	// A pipe or FIFO can only be read once. This round still maps the
	// whole library; the result only reports the non-regular source, and
	// Run stops after this round if another one would be needed,
	// regardless of caching mode.
	nonRegular = !filesAreRegular(files)

	var cacheWriter *mapcache.Writer
	if !d.Opts.DisableMappingCache {
		cacheWriter, err = mapcache.CreateWriter(mapcache.CacheFileName(d.cacheDir(), libIdx))
		if err != nil {
			return nonRegular, err
		}
	}

	var wg sync.WaitGroup
	fragCh := make(chan [2]*reads.Record, d.Opts.Threads*4)
	groupCh := make(chan *aln.Group, d.Opts.Threads*4)
	var workerErr error
	var errOnce sync.Once

	setErr := func(e error) {
		if e == nil {
			return
		}
		errOnce.Do(func() { workerErr = e })
	}

	for i := 0; i < d.Opts.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mapper := NewMapper(d.Index, d.Store, seed.Options{
				MinSeedLen:    d.Opts.MinSeedLen,
				SplitWidth:    d.Opts.SplitWidth,
				SplitFactor:   d.Opts.SplitFactor,
				ExtraSeedPass: d.Opts.ExtraSeedPass,
				MaxMemIntv:    d.Opts.MaxMemIntv,
			}, hitcollect.Options{
				MaxOcc:             d.Opts.MaxOcc,
				SplitSpanningSeeds: d.Opts.SplitSpanningSeeds,
				MinSeedLen:         d.Opts.MinSeedLen,
			}, d.Opts.CoverageThresh, d.Opts.MaxReadOccs, d.Opts.UseSampledVal, lib.Format)

			batch := make([]*aln.Group, 0, miniBatchSize)
			for frag := range fragCh {
				g := d.Pool.Get()
				if frag[1] == nil {
					mapper.MapUnmated(frag[0], g)
				} else {
					mapper.MapPaired(frag[0], frag[1], g)
				}
				d.recordFragment(libIdx, g)
				batch = append(batch, g)
				if len(batch) >= miniBatchSize {
					d.runMiniBatch(batch, firstRound, lib.Format)
					if cacheWriter != nil {
						for _, bg := range batch {
							groupCh <- bg
						}
					} else {
						for _, bg := range batch {
							d.Pool.Put(bg)
						}
					}
					batch = batch[:0]
				}
			}
			if len(batch) > 0 {
				d.runMiniBatch(batch, firstRound, lib.Format)
				if cacheWriter != nil {
					for _, bg := range batch {
						groupCh <- bg
					}
				} else {
					for _, bg := range batch {
						d.Pool.Put(bg)
					}
				}
			}
		}()
	}

	var writerWg sync.WaitGroup
	if cacheWriter != nil {
		writerWg.Add(1)
		go func() {
			defer writerWg.Done()
			for g := range groupCh {
				if e := cacheWriter.WriteGroup(g); e != nil {
					setErr(e)
				}
				d.Pool.Put(g)
			}
		}()
	}

	feedErr := d.feedFragments(src, fragCh)
	setErr(feedErr)
	close(fragCh)
	wg.Wait()
	if cacheWriter != nil {
		close(groupCh)
		writerWg.Wait()
		if _, e := cacheWriter.Close(); e != nil {
			setErr(e)
		}
	}
	return nonRegular, workerErr
}

// feedFragments reads src to exhaustion, pushing one [2]*Record entry
// (mate2 nil for unmated) per fragment onto fragCh.
func (d *Driver) feedFragments(src reads.Source, fragCh chan<- [2]*reads.Record) error {
	for {
		rec, mate, ok := src.Next()
		if !ok {
			return src.Err()
		}
		fragCh <- [2]*reads.Record{rec, mate}
	}
}

// runMiniBatch feeds batch through the shared EM worker under emMu.
// expected is the declared format of the library batch came from;
// since one Worker is shared across every library, its ExpectedFormat
// is set immediately before each call rather than fixed at
// construction time.
func (d *Driver) runMiniBatch(batch []*aln.Group, firstRound bool, expected libformat.Format) {
	d.emMu.Lock()
	d.em.Opts.FirstRound = firstRound
	d.em.Opts.ExpectedFormat = expected
	d.em.ProcessMiniBatch(batch)
	d.emMu.Unlock()
}

// cacheRound replays a prior round's cache file for one library through
// the EM worker, without remapping.
func (d *Driver) cacheRound(libIdx int) error {
	reader, err := mapcache.OpenReader(mapcache.CacheFileName(d.cacheDir(), libIdx))
	if err != nil {
		return err
	}
	defer reader.Close()

	batch := make([]*aln.Group, 0, miniBatchSize)
	for {
		g, err := reader.ReadGroup(d.Pool)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		d.recordFragment(libIdx, g)
		batch = append(batch, g)
		if len(batch) >= miniBatchSize {
			d.runMiniBatch(batch, false, d.Opts.Libraries[libIdx].Format)
			for _, bg := range batch {
				d.Pool.Put(bg)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		d.runMiniBatch(batch, false, d.Opts.Libraries[libIdx].Format)
		for _, bg := range batch {
			d.Pool.Put(bg)
		}
	}
	return nil
}
