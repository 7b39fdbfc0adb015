// txquant quantifies transcript abundance from one or more libraries of
// sequencing reads against a reference transcriptome. See
// github.com/homologus/txquant/quantify for the underlying pipeline.
package main

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/homologus/txquant/libformat"
	"github.com/homologus/txquant/quantify"
	"github.com/homologus/txquant/quantout"
	"github.com/homologus/txquant/refidx"
	"github.com/homologus/txquant/txome"
)

var (
	transcripts = flag.String("index", "", "Reference transcriptome FASTA. Real index construction is out of scope for this module; this loads the transcript table directly and builds an in-memory reference index over it (see refidx.NaiveIndex).")
	libType     = flag.String("libType", "", "Library type string, e.g. IU, ISF, SF, U (see libformat.ParseFormat).")
	outputPath  = flag.String("output", "", "Output directory for quant.sf, libFormatCounts.txt, logs/, and mapping-cache files.")
	unmatedFlag = flag.String("unmatedReads", "", "Comma-separated single-end FASTQ files.")
	mates1Flag  = flag.String("mates1", "", "Comma-separated mate-1 FASTQ files.")
	mates2Flag  = flag.String("mates2", "", "Comma-separated mate-2 FASTQ files.")

	threads              = flag.Int("threads", runtime.NumCPU(), "Number of mapping/EM threads.")
	minSeedLen           = flag.Int("minSeedLen", 19, "Minimum SMEM seed length.")
	maxOcc               = flag.Int("maxOcc", 200, "Maximum occurrences sampled per seed interval.")
	maxReadOccs          = flag.Int("maxReadOccs", 100, "Maximum transcripts a single fragment may map to before it is discarded as multi-mapping noise.")
	splitWidth           = flag.Int64("splitWidth", 4, "Occurrence-count cap eligible for re-seeding.")
	splitFactor          = flag.Float64("splitFactor", 1.5, "Scales minSeedLen to derive the re-seeding length threshold.")
	maxMemIntv           = flag.Int64("maxMemIntv", 20, "Occurrence cap for the extra sensitivity seeding pass.")
	splitSpanningSeeds   = flag.Bool("splitSpanningSeeds", false, "Split seeds that straddle two transcripts instead of discarding them.")
	extraSeedPass        = flag.Bool("extraSeedPass", false, "Enable the third, LAST-like seeding pass.")
	coverageThresh       = flag.Float64("coverageThresh", 0.75, "Minimum fraction of a read that must be covered by its best chain.")
	useSampledVal        = flag.Bool("validateMappings", false, "Use the sampled-validation chainer instead of the greedy one.")
	useReadCompat        = flag.Bool("useReadCompat", false, "Score alignments by their compatibility with the declared library format.")
	useFragLenDist       = flag.Bool("useFragLenDist", true, "Learn and score against the fragment-length distribution.")
	disableMappingCache  = flag.Bool("disableMappingCache", false, "Disable the inter-round mapping cache; every round re-maps from the original input.")
	numRequiredFragments = flag.Uint64("numRequiredFragments", 50_000_000, "Fragment count the outer loop runs to across as many rounds as needed.")
	forgettingFactor     = flag.Float64("forgettingFactor", 0.65, "Online-EM forgetting-mass exponent.")
	burnInFragments      = flag.Uint64("burnInFragments", 5_000_000, "Fragments over which the fragment-length distribution is actively learned.")
)

func splitFiles(flagVal string) []string {
	if flagVal == "" {
		return nil
	}
	return strings.Split(flagVal, ",")
}

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() > 0 {
		log.Fatalf("unparsed flags, please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	if *transcripts == "" {
		log.Fatalf("-index is required")
	}
	if *outputPath == "" {
		log.Fatalf("-output is required")
	}

	format, err := libformat.ParseFormat(*libType)
	if err != nil {
		log.Fatalf("invalid -libType %q: %v", *libType, err)
	}

	commandLine := strings.Join(os.Args, " ")

	if err := os.MkdirAll(*outputPath, 0o755); err != nil {
		log.Fatalf("creating output directory %s: %v", *outputPath, err)
	}
	runLog, err := quantout.OpenRunLog(*outputPath, commandLine)
	if err != nil {
		log.Fatalf("opening run log under %s: %v", *outputPath, err)
	}
	defer runLog.Close()

	f, err := os.Open(*transcripts)
	if err != nil {
		log.Fatalf("opening transcript FASTA %s: %v", *transcripts, err)
	}
	names, seqs, err := txome.LoadFasta(f)
	f.Close()
	if err != nil {
		log.Fatalf("parsing transcript FASTA %s: %v", *transcripts, err)
	}

	store, err := txome.New(names, seqs)
	if err != nil {
		log.Fatalf("building transcript store: %v", err)
	}
	idx := refidx.NewNaiveIndex(names, seqs)

	opts := quantify.Opts{
		IndexPath:            *transcripts,
		OutputPath:           *outputPath,
		Threads:              *threads,
		MinSeedLen:           *minSeedLen,
		MaxOcc:               *maxOcc,
		MaxReadOccs:          *maxReadOccs,
		SplitWidth:           *splitWidth,
		SplitFactor:          *splitFactor,
		SplitSpanningSeeds:   *splitSpanningSeeds,
		ExtraSeedPass:        *extraSeedPass,
		MaxMemIntv:           *maxMemIntv,
		CoverageThresh:       *coverageThresh,
		UseSampledVal:        *useSampledVal,
		UseReadCompat:        *useReadCompat,
		UseFragLenDist:       *useFragLenDist,
		DisableMappingCache:  *disableMappingCache,
		NumRequiredFragments: *numRequiredFragments,
		ForgettingFactor:     *forgettingFactor,
		BurnInFragments:      *burnInFragments,
		CommandLine:          commandLine,
		Libraries: []quantify.LibraryInput{{
			Format:  format,
			Unmated: splitFiles(*unmatedFlag),
			Mates1:  splitFiles(*mates1Flag),
			Mates2:  splitFiles(*mates2Flag),
		}},
	}

	driver, err := quantify.NewDriver(opts, idx, store)
	if err != nil {
		log.Fatalf("constructing driver: %v", err)
	}
	if err := driver.Run(); err != nil {
		log.Fatalf("%v", errors.E(err, "quantification failed"))
	}

	results := quantout.ComputeResults(store, driver.FLD.Mean())
	quantSFPath := filepath.Join(*outputPath, "quant.sf")
	if err := quantout.WriteQuantSF(quantSFPath, results, commandLine); err != nil {
		log.Fatalf("writing %s: %v", quantSFPath, err)
	}

	summaries := quantout.Summarize([]libformat.Format{format}, driver.LibTypeCounts())
	libCountsPath := filepath.Join(*outputPath, "libFormatCounts.txt")
	if err := quantout.WriteLibFormatCounts(libCountsPath, summaries); err != nil {
		log.Fatalf("writing %s: %v", libCountsPath, err)
	}

	log.Debug.Printf("quantified %d transcripts from %d observed fragments (%d assigned, %d valid hits)",
		store.NumTranscripts(), driver.NumObserved(), driver.NumAssigned(), driver.ValidHits())
}
