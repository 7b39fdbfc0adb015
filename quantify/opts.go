package quantify

import (
	"fmt"
	"runtime"

	"github.com/grailbio/base/errors"

	"github.com/homologus/txquant/libformat"
)

// LibraryInput names one library's read files: either Unmated (one or
// more single-end files) or Mates1/Mates2 (parallel paired files), per
// this module's two read-input modes.
type LibraryInput struct {
	Format  libformat.Format
	Unmated []string
	Mates1  []string
	Mates2  []string
}

// Opts carries every CLI-surface knob the driver accepts, plus
// the derived state validate fills in. Grounded on
// grailbio-bio/markduplicates.Opts's flat commandline-options-plus-
// derived-state shape.
type Opts struct {
	// Commandline options.
	IndexPath  string
	OutputPath string
	Libraries  []LibraryInput
	Threads    int

	MinSeedLen         int
	MaxOcc             int
	MaxReadOccs        int
	SplitWidth         int64
	SplitFactor        float64
	SplitSpanningSeeds bool
	ExtraSeedPass      bool
	MaxMemIntv         int64

	CoverageThresh       float64
	UseSampledVal        bool
	UseReadCompat        bool
	UseFragLenDist       bool
	DisableMappingCache  bool
	NumRequiredFragments uint64

	FLDMean    float64
	FLDStdDev  float64
	FLDMaxLen  int
	FLDKernelN int
	FLDKernelP float64

	ForgettingFactor float64
	BurnInFragments  uint64

	// CommandLine is the full invocation, recorded into quant.sf's
	// comment header.
	CommandLine string
}

// validate checks Opts for internal consistency and fills in defaults,
// mirroring markduplicates/validate.go's flat "return the first error"
// style.
func validate(opts *Opts) error {
	if opts.IndexPath == "" {
		return errors.E("quantify: index path is required")
	}
	if opts.OutputPath == "" {
		return errors.E("quantify: output path is required")
	}
	if len(opts.Libraries) == 0 {
		return errors.E("quantify: at least one library is required")
	}
	for i, lib := range opts.Libraries {
		unmated := len(lib.Unmated) > 0
		paired := len(lib.Mates1) > 0 || len(lib.Mates2) > 0
		if unmated == paired {
			return errors.E(fmt.Sprintf("quantify: library %d must specify either unmated reads or mates-1/mates-2, not both or neither", i))
		}
		if paired && len(lib.Mates1) != len(lib.Mates2) {
			return errors.E(fmt.Sprintf("quantify: library %d has mismatched mates-1/mates-2 file counts", i))
		}
	}
	if opts.Threads <= 0 {
		opts.Threads = runtime.NumCPU()
	}
	if opts.MinSeedLen <= 0 {
		opts.MinSeedLen = 19
	}
	if opts.MaxOcc <= 0 {
		opts.MaxOcc = 200
	}
	if opts.MaxReadOccs <= 0 {
		opts.MaxReadOccs = 100
	}
	if opts.SplitWidth <= 0 {
		opts.SplitWidth = 4
	}
	if opts.SplitFactor <= 0 {
		opts.SplitFactor = 1.5
	}
	if opts.MaxMemIntv <= 0 {
		opts.MaxMemIntv = 20
	}
	if opts.CoverageThresh <= 0 {
		opts.CoverageThresh = 0.75
	}
	if opts.FLDMaxLen <= 0 {
		opts.FLDMaxLen = 1000
	}
	if opts.FLDMean <= 0 {
		opts.FLDMean = 200
	}
	if opts.FLDStdDev <= 0 {
		opts.FLDStdDev = 80
	}
	if opts.FLDKernelN <= 0 {
		opts.FLDKernelN = 4
	}
	if opts.FLDKernelP <= 0 {
		opts.FLDKernelP = 0.5
	}
	if opts.ForgettingFactor <= 0 {
		opts.ForgettingFactor = 0.65
	}
	if opts.BurnInFragments == 0 {
		opts.BurnInFragments = 5_000_000
	}
	if opts.NumRequiredFragments == 0 {
		opts.NumRequiredFragments = 50_000_000
	}
	return nil
}
