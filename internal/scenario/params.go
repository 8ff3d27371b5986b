// Package scenario defines named background-order-flow parameter sets
// and a NoiseTrader strategy that drives them through the kernel. Flow
// generation is a reactive agent.Strategy rather than a pre-computed
// batch of events, since the kernel dispatches one wake at a time
// instead of draining a flat pre-built event list.
package scenario

// Config holds all parameters for one background-flow scenario.
type Config struct {
	Name     string
	Seed     int64
	Duration int64 // total scenario duration in nanoseconds

	Scenario Params
}

// Params holds the background order flow distribution.
type Params struct {
	InitialMidPriceCents int64
	InitialSpreadCents   int64
	OrderIntervalNs      int64
	MarketOrderRatio     float64
	CancelRate           float64
	MinOrderSize         int64
	MaxOrderSize         int64
	PriceTickCents       int64
	MaxPriceLevels       int

	// Resting orders placed per side at each of MaxPriceLevels levels
	// when the strategy first wakes (all three scenarios set it).
	DepthPerLevel int64

	// Spike specific.
	BurstWindowNs   int64
	BurstIntervalNs int64
	BurstRate       float64
	BurstCancelMul  float64
	BurstMarketMul  float64
	BurstSizeMul    float64
	BurstCancelCap  float64
	BurstMarketCap  float64
}

// DefaultCalm returns parameters for a calm, steady-state market.
func DefaultCalm(seed int64) *Config {
	return &Config{
		Name:     "calm",
		Seed:     seed,
		Duration: 10_000 * 1_000_000,
		Scenario: Params{
			InitialMidPriceCents: 10_000,
			InitialSpreadCents:   2,
			OrderIntervalNs:      5 * 1_000_000,
			MarketOrderRatio:     0.15,
			CancelRate:           0.10,
			MinOrderSize:         1,
			MaxOrderSize:         10,
			PriceTickCents:       1,
			MaxPriceLevels:       5,
			DepthPerLevel:        20,
		},
	}
}

// DefaultThin returns parameters for a thin, sparsely quoted book.
func DefaultThin(seed int64) *Config {
	return &Config{
		Name:     "thin",
		Seed:     seed,
		Duration: 10_000 * 1_000_000,
		Scenario: Params{
			InitialMidPriceCents: 10_000,
			InitialSpreadCents:   5,
			OrderIntervalNs:      20 * 1_000_000,
			MarketOrderRatio:     0.25,
			CancelRate:           0.15,
			MinOrderSize:         1,
			MaxOrderSize:         5,
			PriceTickCents:       1,
			MaxPriceLevels:       3,
			DepthPerLevel:        5,
		},
	}
}

// DefaultSpike returns parameters for a market with periodic order-flow
// bursts.
func DefaultSpike(seed int64) *Config {
	return &Config{
		Name:     "spike",
		Seed:     seed,
		Duration: 10_000 * 1_000_000,
		Scenario: Params{
			InitialMidPriceCents: 10_000,
			InitialSpreadCents:   3,
			OrderIntervalNs:      8 * 1_000_000,
			MarketOrderRatio:     0.20,
			CancelRate:           0.25,
			MinOrderSize:         1,
			MaxOrderSize:         15,
			PriceTickCents:       1,
			MaxPriceLevels:       5,
			DepthPerLevel:        15,
			BurstWindowNs:        500 * 1_000_000,
			BurstIntervalNs:      2_000 * 1_000_000,
			BurstRate:            4.0,
			BurstCancelMul:       2.0,
			BurstMarketMul:       2.0,
			BurstSizeMul:         2.0,
			BurstCancelCap:       0.5,
			BurstMarketCap:       0.6,
		},
	}
}

// GetConfig returns the named default scenario, or nil if unknown.
func GetConfig(name string, seed int64) *Config {
	switch name {
	case "calm":
		return DefaultCalm(seed)
	case "thin":
		return DefaultThin(seed)
	case "spike":
		return DefaultSpike(seed)
	default:
		return nil
	}
}
