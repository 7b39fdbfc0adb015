// Package quantout writes a run's on-disk output artifacts: quant.sf
// (per-transcript abundance estimates) and libFormatCounts.txt
// (per-library format-compatibility tallies), grounded on
// grailbio-bio/markduplicates/metrics.go's writeMetrics — os.Create, a
// '#'-commented header, then a tab-separated table.
package quantout

import (
	"bufio"
	"fmt"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/homologus/txquant/logmath"
	"github.com/homologus/txquant/txome"
)

// Result is one transcript's row in quant.sf.
type Result struct {
	Name            string
	Length          int
	EffectiveLength float64
	TPM             float64
	NumReads        uint64
}

// effectiveLength applies the fragment-length correction: the length is
// shortened by meanFragLen-1 and floored at 1 base (so a transcript no
// longer than the mean fragment length gets 1), so TPM never divides by
// zero. A non-positive mean leaves the length unchanged.
func effectiveLength(length int, meanFragLen float64) float64 {
	if meanFragLen <= 0 {
		return float64(length)
	}
	el := float64(length) - meanFragLen + 1
	if el < 1 {
		return 1
	}
	return el
}

// ComputeResults derives quant.sf rows from store's converged
// per-transcript mass and read counts. meanFragLen is the fragment-
// length distribution's current mean (0 disables the length
// correction, e.g. when useFragLenDist is off).
func ComputeResults(store *txome.Store, meanFragLen float64) []Result {
	n := store.NumTranscripts()
	results := make([]Result, n)
	logRho := make([]float64, n)
	logRhoSum := logmath.Zero

	for i := 0; i < n; i++ {
		t := store.Transcript(int32(i))
		el := effectiveLength(t.Length, meanFragLen)
		results[i] = Result{
			Name:            t.Name,
			Length:          t.Length,
			EffectiveLength: el,
			NumReads:        t.TotalCount(),
		}
		logRho[i] = t.Mass() - math.Log(el)
		logRhoSum = logmath.LogAdd(logRhoSum, logRho[i])
	}

	if logRhoSum == logmath.Zero {
		return results
	}
	for i := range results {
		results[i].TPM = math.Exp(logRho[i]-logRhoSum) * 1e6
	}
	return results
}

// WriteQuantSF writes results to path as tab-separated
// Name/Length/EffectiveLength/TPM/NumReads rows, preceded by comment
// lines recording the command line that produced them.
func WriteQuantSF(path string, results []Result, commandLine string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "quantout: creating %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# txquant\n")
	fmt.Fprintf(w, "# command: %s\n", commandLine)
	fmt.Fprintf(w, "Name\tLength\tEffectiveLength\tTPM\tNumReads\n")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%.6f\t%.6f\t%d\n", r.Name, r.Length, r.EffectiveLength, r.TPM, r.NumReads)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "quantout: writing %s", path)
	}
	return nil
}
