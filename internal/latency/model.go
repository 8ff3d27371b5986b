// Package latency supplies kernel.NoiseDistribution implementations for
// the kernel's latency-noise addend, plus small duration helpers. Latency
// noise is drawn from the kernel's own single RNG stream rather than a
// stream owned separately by each sender, so a distribution here plugs
// into kernel.Kernel directly instead of being applied by callers.
package latency

import "github.com/marketsim/marketsim/internal/kernel"

// UniformJitter draws a non-negative integer delay uniformly from
// [0, MaxNs).
type UniformJitter struct {
	MaxNs int64
}

// Sample implements kernel.NoiseDistribution.
func (u UniformJitter) Sample(rng kernel.RNG) int64 {
	if u.MaxNs <= 0 {
		return 0
	}
	return rng.Int63n(u.MaxNs)
}

// MsToNs converts milliseconds to nanoseconds.
func MsToNs(ms int64) int64 {
	return ms * 1_000_000
}
