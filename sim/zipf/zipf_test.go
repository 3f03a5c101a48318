package zipf

import "testing"

func TestSampler_AlwaysInRange(t *testing.T) {
	z := New(1000, 1.2)
	for _, u := range []float64{0, 0.001, 0.25, 0.5, 0.75, 0.999, 1} {
		r := z.Sample(u)
		if r >= z.N {
			t.Fatalf("Sample(%v) = %d, out of range [0, %d)", u, r, z.N)
		}
	}
}

func TestSampler_RankZeroIsMostFrequentUnderSkew(t *testing.T) {
	z := New(100, 1.5)
	counts := make(map[uint64]int)
	const draws = 2000
	for i := 0; i < draws; i++ {
		u := float64(i) / float64(draws)
		counts[z.Sample(u)]++
	}
	for r := uint64(1); r < 10; r++ {
		if counts[0] < counts[r] {
			t.Fatalf("rank 0 count %d should dominate rank %d count %d under skew", counts[0], r, counts[r])
		}
	}
}

func TestSampler_ZeroNCoercedToOne(t *testing.T) {
	z := New(0, 1.0)
	if z.N != 1 {
		t.Fatalf("N = %d, want 1", z.N)
	}
	if got := z.Sample(0.5); got != 0 {
		t.Fatalf("Sample = %d, want 0", got)
	}
}

func TestSampler_NonPositiveSkewStillProducesValidCDF(t *testing.T) {
	z := New(10, 0)
	last := 0.0
	for _, c := range z.cdf {
		if c < last {
			t.Fatal("cdf must be non-decreasing")
		}
		last = c
	}
	if last < 0.999999 {
		t.Fatalf("cdf must end near 1.0, got %v", last)
	}
}
