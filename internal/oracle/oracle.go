// Package oracle defines the fundamental-value observation contract
// consumed by trading strategies, plus one concrete mean-reverting
// implementation supplemented from original_source per SPEC_FULL.md §4.5.
// The spec treats a strategy's oracle as an external collaborator; this
// package supplies the "one concrete implementation" it names without
// scoping any strategy logic in.
package oracle

import (
	"math"
	"math/rand"

	"github.com/marketsim/marketsim/internal/kernel"
)

// Oracle provides noisy fundamental-value observations at a simulation
// time. For sigma_n == 0 it returns the true fundamental; otherwise a
// draw from Normal(mean=true_value, variance=sigma_n), rounded to integer
// cents.
type Oracle interface {
	ObservePrice(symbol string, t kernel.SimTime, sigmaN float64) int64
}

// MeanReverting is an Ornstein-Uhlenbeck-style fundamental-value walk: the
// true price drifts back toward a long-run mean at rate Kappa per
// nanosecond-scaled step, stepped deterministically off its own RNG
// stream (never the kernel's) so reordering draws elsewhere in the
// simulation can't perturb it.
type MeanReverting struct {
	rng *rand.Rand

	meanCents  float64
	kappa      float64 // reversion rate per step
	stepNs     int64   // granularity at which the walk advances
	shockSigma float64 // stddev of the per-step innovation, in cents

	lastStepped kernel.SimTime
	value       float64

	mktClose     kernel.SimTime
	hasMktClose  bool
	frozenAtCls  float64
}

// NewMeanReverting constructs a walk seeded from its own derived stream
// (never the kernel's RNG — §5's RNG discipline requires each
// component's draws stay on its own stream for replay stability).
func NewMeanReverting(seed int64, meanCents float64, kappa float64, stepNs int64, shockSigma float64) *MeanReverting {
	return &MeanReverting{
		rng:        rand.New(rand.NewSource(seed)),
		meanCents:  meanCents,
		kappa:      kappa,
		stepNs:     stepNs,
		shockSigma: shockSigma,
		value:      meanCents,
	}
}

// SetMarketClose freezes the walk's advancement at mkt_close: requests at
// or after close observe the final pre-close value (spec.md §4.5).
func (m *MeanReverting) SetMarketClose(t kernel.SimTime) {
	m.mktClose = t
	m.hasMktClose = true
}

// advanceTo steps the underlying OU process forward to t, in stepNs
// increments, stopping at mkt_close if one is set.
func (m *MeanReverting) advanceTo(t kernel.SimTime) {
	target := t
	if m.hasMktClose && target > m.mktClose {
		if m.lastStepped >= m.mktClose {
			return // already frozen
		}
		target = m.mktClose
	}
	for m.lastStepped < target {
		next := m.lastStepped.Add(m.stepNs)
		if next > target || m.stepNs <= 0 {
			next = target
		}
		m.value += m.kappa * (m.meanCents - m.value)
		if m.shockSigma > 0 {
			m.value += m.rng.NormFloat64() * m.shockSigma
		}
		m.lastStepped = next
	}
	m.lastStepped = target
	if m.hasMktClose && target >= m.mktClose {
		m.frozenAtCls = m.value
	}
}

// ObservePrice implements Oracle. The Kalman-style variance update used
// by callers that track posterior variance over repeated observations is
// the textbook form resolved in SPEC_FULL.md §9:
// sigma_t' = (sigma_n * sigma_tprime) / (sigma_n + sigma_tprime).
func (m *MeanReverting) ObservePrice(symbol string, t kernel.SimTime, sigmaN float64) int64 {
	m.advanceTo(t)

	trueValue := m.value
	if m.hasMktClose && t >= m.mktClose {
		trueValue = m.frozenAtCls
	}

	if sigmaN == 0 {
		return roundCents(trueValue)
	}
	noisy := trueValue + m.rng.NormFloat64()*math.Sqrt(sigmaN)
	return roundCents(noisy)
}

// PosteriorVariance applies the textbook Kalman update for a Bayesian
// estimator tracking the fundamental across repeated noisy observations.
func PosteriorVariance(sigmaN, sigmaTPrime float64) float64 {
	if sigmaN+sigmaTPrime == 0 {
		return 0
	}
	return (sigmaN * sigmaTPrime) / (sigmaN + sigmaTPrime)
}

func roundCents(v float64) int64 {
	if v >= 0 {
		return int64(v + 0.5)
	}
	return -int64(-v + 0.5)
}
