// Package zipf implements the Zipf-skewed key sampler used by the
// workload generator (spec §4.9): keys in [0, n) are drawn with
// probability proportional to rank^-s, via a precomputed CDF and a
// uniform draw inverted through binary search.
package zipf

import (
	"math"
	"sort"
)

// Sampler draws ranks in [0, N) from a Zipf(s) distribution.
type Sampler struct {
	N   uint64
	S   float64
	cdf []float64
}

// New precomputes the CDF for n ranks with skew s. A skew of 0 (or
// negative) is coerced to a tiny positive value so every rank still
// carries a well-defined, near-uniform weight.
func New(n uint64, s float64) *Sampler {
	if n == 0 {
		n = 1
	}
	if s <= 0 {
		s = 0.0001
	}

	w := make([]float64, n)
	var sum float64
	for i := uint64(1); i <= n; i++ {
		w[i-1] = 1.0 / math.Pow(float64(i), s)
		sum += w[i-1]
	}

	cdf := make([]float64, n)
	var run float64
	for i := uint64(0); i < n; i++ {
		run += w[i] / sum
		cdf[i] = run
	}

	return &Sampler{N: n, S: s, cdf: cdf}
}

// Sample inverts a uniform draw u in [0, 1) into a rank in [0, N) via
// binary search over the CDF (the Go analog of std::lower_bound).
func (z *Sampler) Sample(u float64) uint64 {
	idx := sort.Search(len(z.cdf), func(i int) bool { return z.cdf[i] >= u })
	if idx >= len(z.cdf) {
		idx = len(z.cdf) - 1
	}
	return uint64(idx)
}
