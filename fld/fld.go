// Package fld implements the fragment-length distribution: a
// log-domain pmf over [1, maxFragLen], initialized from
// a kernel-smoothed Gaussian prior and updated online, with
// exponential-decay weighting, only during burn-in. Grounded on
// original_source/Sailfish's FragmentLengthDistribution together with
// grailbio-bio/markduplicates/library_size.go's log-domain accumulator
// idiom.
package fld

import (
	"math"

	"github.com/homologus/txquant/logmath"
)

// Options carries the FLD's prior parameters.
type Options struct {
	MaxFragLen int
	Mean       float64
	StdDev     float64
	KernelN    int
	KernelP    float64
}

// Distribution is a log-domain pmf over fragment lengths [1, MaxFragLen].
// logMass is kept unnormalized; logTotal is the running log-sum of all
// mass ever added, so Pmf's normalization is a single subtraction rather
// than a full-array pass.
type Distribution struct {
	opts Options
	// logMass[l] holds log-mass for fragment length l+1 (0-indexed).
	logMass  []float64
	logTotal float64
}

// New builds a Distribution whose prior is a Gaussian(mean, stddev)
// clipped to [1, maxFragLen] and convolved with a binomial(kernelN,
// kernelP) smoothing kernel.
func New(opts Options) *Distribution {
	d := &Distribution{opts: opts, logMass: make([]float64, opts.MaxFragLen), logTotal: logmath.Zero}
	prior := gaussianPrior(opts)
	kernel := binomialKernel(opts.KernelN, opts.KernelP)
	smoothed := convolve(prior, kernel)
	for i, m := range smoothed {
		lm := logmath.Zero
		if m > 0 {
			lm = math.Log(m)
		}
		d.logMass[i] = lm
		d.logTotal = logmath.LogAdd(d.logTotal, lm)
	}
	return d
}

func gaussianPrior(opts Options) []float64 {
	out := make([]float64, opts.MaxFragLen)
	if opts.StdDev <= 0 {
		if opts.Mean >= 1 && int(opts.Mean) <= opts.MaxFragLen {
			out[int(opts.Mean)-1] = 1
		}
		return out
	}
	variance := opts.StdDev * opts.StdDev
	sum := 0.0
	for l := 1; l <= opts.MaxFragLen; l++ {
		x := float64(l) - opts.Mean
		density := math.Exp(-(x * x) / (2 * variance))
		out[l-1] = density
		sum += density
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out
}

// binomialKernel returns the pmf of Binomial(n, p), used to smooth the
// Gaussian prior.
func binomialKernel(n int, p float64) []float64 {
	if n <= 0 {
		return []float64{1}
	}
	kernel := make([]float64, n+1)
	logP, log1mP := math.Log(p), math.Log(1-p)
	logCoef := 0.0
	for k := 0; k <= n; k++ {
		if k > 0 {
			logCoef += math.Log(float64(n-k+1)) - math.Log(float64(k))
		}
		kernel[k] = math.Exp(logCoef + float64(k)*logP + float64(n-k)*log1mP)
	}
	return kernel
}

// convolve centers the kernel on each prior mass point and spreads it,
// truncating to the prior's support length.
func convolve(prior, kernel []float64) []float64 {
	out := make([]float64, len(prior))
	half := len(kernel) / 2
	for i, m := range prior {
		if m == 0 {
			continue
		}
		for k, w := range kernel {
			j := i + k - half
			if j < 0 || j >= len(out) {
				continue
			}
			out[j] += m * w
		}
	}
	return out
}

// Pmf returns log P(L = l). l is 1-indexed; out-of-range l returns
// logmath.Zero.
func (d *Distribution) Pmf(l int) float64 {
	if l < 1 || l > len(d.logMass) || d.logTotal == logmath.Zero {
		return logmath.Zero
	}
	return d.logMass[l-1] - d.logTotal
}

// Mean returns the distribution's current expected fragment length,
// used by quantout's effective-length correction. It is 0 if no mass
// has ever been added and the prior itself degenerated to nothing
// (StdDev <= 0 with an out-of-range Mean).
func (d *Distribution) Mean() float64 {
	if d.logTotal == logmath.Zero {
		return 0
	}
	mean := 0.0
	for l := 1; l <= len(d.logMass); l++ {
		mean += float64(l) * math.Exp(d.Pmf(l))
	}
	return mean
}

// AddVal increments logMass[l] by logWeight (typically the current
// logForgettingMass) and folds the same increment into the running
// total, so the pmf renormalizes lazily at the next Pmf call rather than
// requiring a full-array pass here.
func (d *Distribution) AddVal(l int, logWeight float64) {
	if l < 1 || l > len(d.logMass) {
		return
	}
	idx := l - 1
	d.logMass[idx] = logmath.LogAdd(d.logMass[idx], logWeight)
	d.logTotal = logmath.LogAdd(d.logTotal, logWeight)
}
