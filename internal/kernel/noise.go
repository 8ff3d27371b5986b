package kernel

import "sort"

// WeightedNoise is a proper discrete probability distribution over
// non-negative nanosecond latency addends, sampled by cumulative weight
// rather than uniformly over however many buckets happen to be
// configured. A degenerate single-value distribution (weight 1.0 on one
// value) is always deterministic, independent of how many buckets are
// configured.
type WeightedNoise struct {
	values      []int64
	cumulative  []float64 // cumulative weight, normalized to sum to 1.0
}

// NewWeightedNoise builds a distribution from parallel (value, weight)
// slices. Weights need not be pre-normalized. Panics if the slices are
// empty, mismatched in length, or any value is negative — a malformed
// scenario configuration, not a runtime condition to tolerate.
func NewWeightedNoise(values []int64, weights []float64) *WeightedNoise {
	if len(values) == 0 || len(values) != len(weights) {
		panic("kernel: WeightedNoise requires matching non-empty values/weights")
	}
	var total float64
	for i, v := range values {
		if v < 0 {
			panic("kernel: WeightedNoise values must be non-negative nanosecond addends")
		}
		total += weights[i]
	}
	if total <= 0 {
		panic("kernel: WeightedNoise weights must sum to a positive number")
	}
	cum := make([]float64, len(weights))
	running := 0.0
	for i, w := range weights {
		running += w / total
		cum[i] = running
	}
	cum[len(cum)-1] = 1.0 // guard against float rounding leaving a gap at the top
	vs := make([]int64, len(values))
	copy(vs, values)
	return &WeightedNoise{values: vs, cumulative: cum}
}

// Sample draws one value from the distribution using rng's own stream —
// latency noise is the kernel's single entropy source outside of
// agent/oracle-owned RNGs (determinism contract, §4.1).
func (d *WeightedNoise) Sample(rng RNG) int64 {
	r := rng.Float64()
	idx := sort.SearchFloat64s(d.cumulative, r)
	if idx >= len(d.values) {
		idx = len(d.values) - 1
	}
	return d.values[idx]
}

// ZeroNoise is the degenerate distribution used by tests that need
// exact, noise-free latency.
type ZeroNoise struct{}

func (ZeroNoise) Sample(RNG) int64 { return 0 }
