package scenario

import (
	"math/rand"

	"github.com/marketsim/marketsim/internal/agent"
	"github.com/marketsim/marketsim/internal/kernel"
)

// NoiseTrader is a reactive background-flow strategy: on every wake it
// rolls a cancel/market/limit decision off its own RNG stream, never the
// kernel's, and reschedules its own next wake at OrderIntervalNs plus
// jitter. Calm/thin parameter sets behave as steady background flow;
// spike parameters additionally widen the cancel/market ratio and order
// size during periodic burst windows, in the manner of a SpikeGenerator
// burst window.
type NoiseTrader struct {
	symbol string
	params Params
	rng    *rand.Rand

	restingIDs []uint64
	seeded     bool
}

// NewNoiseTrader constructs a background-flow strategy for symbol, seeded
// independently from cfg.Seed.
func NewNoiseTrader(symbol string, cfg *Config) *NoiseTrader {
	return &NoiseTrader{
		symbol: symbol,
		params: cfg.Scenario,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (n *NoiseTrader) randSize() int64 {
	p := n.params
	if p.MaxOrderSize <= p.MinOrderSize {
		return p.MinOrderSize
	}
	return p.MinOrderSize + n.rng.Int63n(p.MaxOrderSize-p.MinOrderSize+1)
}

func (n *NoiseTrader) inBurst(elapsed int64) bool {
	p := n.params
	if p.BurstIntervalNs <= 0 || p.BurstWindowNs <= 0 {
		return false
	}
	phase := elapsed % p.BurstIntervalNs
	return phase < p.BurstWindowNs
}

// OnWake implements agent.Strategy.
func (n *NoiseTrader) OnWake(a *agent.TradingAgent, t kernel.SimTime) {
	if !n.seeded {
		n.seedInitialBook(a)
		n.seeded = true
	}

	p := n.params
	cancelRate, marketRatio, sizeMul := p.CancelRate, p.MarketOrderRatio, 1.0
	if n.inBurst(t.Nanos()) {
		cancelRate *= p.BurstCancelMul
		marketRatio *= p.BurstMarketMul
		if p.BurstCancelCap > 0 && cancelRate > p.BurstCancelCap {
			cancelRate = p.BurstCancelCap
		}
		if p.BurstMarketCap > 0 && marketRatio > p.BurstMarketCap {
			marketRatio = p.BurstMarketCap
		}
		if p.BurstSizeMul > 0 {
			sizeMul = p.BurstSizeMul
		}
	}

	roll := n.rng.Float64()
	switch {
	case roll < cancelRate && len(n.restingIDs) > 0:
		idx := n.rng.Intn(len(n.restingIDs))
		cancelID := n.restingIDs[idx]
		n.restingIDs = append(n.restingIDs[:idx], n.restingIDs[idx+1:]...)
		a.CancelOrder(cancelID)
	case roll < cancelRate+marketRatio:
		isBuy := n.rng.Float64() < 0.5
		size := int64(float64(n.randSize()) * sizeMul)
		if size < 1 {
			size = 1
		}
		last, ok := a.LastTrade(n.symbol)
		if !ok {
			last = p.InitialMidPriceCents
		}
		// A market order is modeled as an aggressively priced limit
		// order: spec.md keeps OrderType as the book-level discriminator
		// (§4.2), so the strategy asks PlaceLimitOrder for an extreme
		// price. The book sweeps whatever rests on the other side, and
		// any residual rests at that extreme price.
		price := last + 1_000_000
		if !isBuy {
			price = last - 1_000_000
			if price < 0 {
				price = 0
			}
		}
		a.PlaceLimitOrder(n.symbol, size, isBuy, price)
	default:
		isBuy := n.rng.Float64() < 0.5
		last, ok := a.LastTrade(n.symbol)
		if !ok {
			last = p.InitialMidPriceCents
		}
		offset := int64(0)
		if p.MaxPriceLevels > 0 {
			offset = n.rng.Int63n(int64(p.MaxPriceLevels)) * p.PriceTickCents
		}
		halfSpread := p.InitialSpreadCents / 2
		price := last - halfSpread - offset
		if !isBuy {
			price = last + halfSpread + offset
		}
		if price < 1 {
			price = 1
		}
		id, admitted := a.PlaceLimitOrder(n.symbol, n.randSize(), isBuy, price)
		if admitted {
			n.restingIDs = append(n.restingIDs, id)
		}
	}

	interval := p.OrderIntervalNs
	if interval <= 0 {
		return
	}
	jitter := n.rng.Int63n(interval/2 + 1)
	a.ScheduleWake(t.Add(interval + jitter))
}

// seedInitialBook places resting orders on both sides of the book at
// startup so the first incoming market order has liquidity to trade
// against.
func (n *NoiseTrader) seedInitialBook(a *agent.TradingAgent) {
	p := n.params
	if p.DepthPerLevel <= 0 {
		return
	}
	halfSpread := p.InitialSpreadCents / 2
	bestBid := p.InitialMidPriceCents - halfSpread
	bestAsk := p.InitialMidPriceCents + halfSpread

	for lvl := 0; lvl < p.MaxPriceLevels; lvl++ {
		bidPrice := bestBid - int64(lvl)*p.PriceTickCents
		askPrice := bestAsk + int64(lvl)*p.PriceTickCents
		for i := int64(0); i < p.DepthPerLevel; i++ {
			if id, ok := a.PlaceLimitOrder(n.symbol, n.randSize(), true, bidPrice); ok {
				n.restingIDs = append(n.restingIDs, id)
			}
			if id, ok := a.PlaceLimitOrder(n.symbol, n.randSize(), false, askPrice); ok {
				n.restingIDs = append(n.restingIDs, id)
			}
		}
	}
}
