// Package agent implements the trading agent base contract: the state
// machine mediating between the kernel, the exchange, and strategy logic.
// A TradingAgent owns the market-hours/holdings/at-risk machinery every
// strategy needs, and delegates the actual decision of what to do on each
// wake to a Strategy, so concrete behaviors compose rather than subclass.
package agent

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/market"
	"github.com/marketsim/marketsim/internal/message"
)

// ExchangeTag is the registry tag every ExchangeAgent registers itself
// under, so a TradingAgent can discover it without a runtime type
// assertion (spec.md §9's capability-interface + registry redesign).
const ExchangeTag = "exchange"

// Strategy is the decision logic a TradingAgent delegates to on each
// strategy wake. The base agent has already resolved the exchange,
// learned mkt_open/mkt_close, and scheduled the first strategy wake by
// the time OnWake fires.
type Strategy interface {
	// OnWake is called once market hours are known, at mkt_open plus the
	// strategy's own offset, and again at every wake the strategy
	// schedules for itself via a.ScheduleWake.
	OnWake(a *TradingAgent, t kernel.SimTime)
}

// TradingAgent is the base contract: startup market-hours discovery,
// holdings/at-risk bookkeeping, and order lifecycle handling. It
// implements kernel.Agent directly; a concrete strategy is supplied at
// construction rather than via subclassing.
type TradingAgent struct {
	id       kernel.AgentID
	k        *kernel.Kernel
	strategy Strategy
	log      *zap.Logger

	exchangeID kernel.AgentID
	haveExch   bool

	mktOpen     kernel.SimTime
	mktClose    kernel.SimTime
	haveOpen    bool
	haveClose   bool
	mktClosed   bool
	wakeOffset  int64
	strategyOn  bool // true once the first strategy wake has been scheduled

	startingCash int64
	holdings     market.Holdings
	orders       map[uint64]market.Order
	lastTrade    map[string]int64
	knownBids    map[string][]market.PriceLevelView
	knownAsks    map[string][]market.PriceLevelView

	firstWake   bool
	nextOrderID uint64
}

// New constructs a TradingAgent. wakeOffsetNs is the subclass offset
// added to mkt_open for the first strategy wake (spec.md §4.3).
func New(id kernel.AgentID, startingCashCents int64, wakeOffsetNs int64, strategy Strategy, log *zap.Logger) *TradingAgent {
	return &TradingAgent{
		id:           id,
		strategy:     strategy,
		log:          log.Named(agentName(id)),
		wakeOffset:   wakeOffsetNs,
		startingCash: startingCashCents,
		holdings:     market.NewHoldings(startingCashCents),
		orders:       make(map[uint64]market.Order),
		lastTrade:    make(map[string]int64),
		knownBids:    make(map[string][]market.PriceLevelView),
		knownAsks:    make(map[string][]market.PriceLevelView),
		firstWake:    true,
	}
}

func agentName(id kernel.AgentID) string {
	return "agent-" + strconv.FormatInt(int64(id), 10)
}

// ID returns the agent's kernel identity.
func (a *TradingAgent) ID() kernel.AgentID { return a.id }

// Holdings returns a read-only snapshot of current holdings.
func (a *TradingAgent) Holdings() market.Holdings { return a.holdings.Clone() }

// Orders returns a read-only snapshot of currently open orders.
func (a *TradingAgent) Orders() map[uint64]market.Order {
	cp := make(map[uint64]market.Order, len(a.orders))
	for id, o := range a.orders {
		cp[id] = o
	}
	return cp
}

// MktClosed reports whether this agent has observed MKT_CLOSED.
func (a *TradingAgent) MktClosed() bool { return a.mktClosed }

// LastTrade returns the agent's last known trade price for symbol.
func (a *TradingAgent) LastTrade(symbol string) (int64, bool) {
	p, ok := a.lastTrade[symbol]
	return p, ok
}

// KnownBook returns the agent's last-known top-of-book snapshot for symbol.
func (a *TradingAgent) KnownBook(symbol string) (bids, asks []market.PriceLevelView) {
	return a.knownBids[symbol], a.knownAsks[symbol]
}

// ScheduleWake lets a Strategy request its own next wake.
func (a *TradingAgent) ScheduleWake(t kernel.SimTime) error {
	return a.k.SetWakeup(a.id, t)
}

// KernelInitializing implements kernel.Agent.
func (a *TradingAgent) KernelInitializing(k *kernel.Kernel) {
	a.k = k
}

// KernelStarting implements kernel.Agent: schedules the discovery wake.
func (a *TradingAgent) KernelStarting(startTime kernel.SimTime) {
	if err := a.k.SetWakeup(a.id, startTime); err != nil {
		a.log.Warn("discovery wakeup rejected", zap.Error(err))
	}
}

// Wakeup implements kernel.Agent.
func (a *TradingAgent) Wakeup(t kernel.SimTime) {
	if a.firstWake {
		a.firstWake = false
		exchID, ok := a.k.Registry().First(ExchangeTag)
		if !ok {
			a.log.Error("no exchange registered; agent cannot trade")
			return
		}
		a.exchangeID = exchID
		a.haveExch = true
		a.k.SendMessage(a.id, a.exchangeID, &message.Message{Kind: message.WhenMktOpen, Sender: a.id}, 0)
		a.k.SendMessage(a.id, a.exchangeID, &message.Message{Kind: message.WhenMktClose, Sender: a.id}, 0)
		return
	}

	if !a.strategyOn {
		// Still waiting on WHEN_MKT_OPEN/CLOSE replies; nothing to do yet.
		return
	}

	a.strategy.OnWake(a, t)
}

// maybeStartStrategy schedules the first strategy wake once both
// mkt_open and mkt_close are known.
func (a *TradingAgent) maybeStartStrategy() {
	if a.strategyOn || !a.haveOpen || !a.haveClose {
		return
	}
	a.strategyOn = true
	if err := a.k.SetWakeup(a.id, a.mktOpen.Add(a.wakeOffset)); err != nil {
		a.log.Warn("strategy wakeup rejected", zap.Error(err))
	}
}

// ReceiveMessage implements kernel.Agent.
func (a *TradingAgent) ReceiveMessage(t kernel.SimTime, payload any) {
	msg, ok := payload.(*message.Message)
	if !ok {
		a.log.Error("unrecognized payload kind", zap.Any("payload", payload))
		return
	}

	switch msg.Kind {
	case message.WhenMktOpenReply:
		a.mktOpen = msg.Time
		a.haveOpen = true
		a.maybeStartStrategy()
	case message.WhenMktCloseReply:
		a.mktClose = msg.Time
		a.haveClose = true
		a.maybeStartStrategy()
	case message.OrderAccepted:
		a.orders[msg.Order.OrderID] = msg.Order
	case message.OrderExecuted:
		a.applyExecution(msg.Order)
	case message.OrderCancelled:
		delete(a.orders, msg.Order.OrderID)
	case message.MktClosed:
		a.mktClosed = true
	case message.QueryLastTradeReply:
		a.lastTrade[msg.Symbol] = msg.Price
	case message.QuerySpreadReply:
		a.lastTrade[msg.Symbol] = msg.Price
		a.knownBids[msg.Symbol] = msg.Bids
		a.knownAsks[msg.Symbol] = msg.Asks
	default:
		a.log.Warn("trading agent received unexpected message kind", zap.String("kind", msg.Kind.String()))
	}
}

// applyExecution is the must-call base logic for ORDER_EXECUTED: update
// holdings and cash, then shrink or remove the order bookkeeping entry.
// ReceiveMessage runs it on every fill; Strategy has no fill callback, so
// a strategy sees fills through Holdings and Orders on its next wake.
func (a *TradingAgent) applyExecution(filled market.Order) {
	signedQty := int64(filled.Side) * filled.Quantity
	a.holdings.Apply(filled.Symbol, signedQty)
	a.holdings.CashCents -= signedQty * filled.FillPrice
	a.lastTrade[filled.Symbol] = filled.FillPrice

	existing, ok := a.orders[filled.OrderID]
	if !ok {
		return
	}
	existing.Quantity -= filled.Quantity
	if existing.Quantity <= 0 {
		delete(a.orders, filled.OrderID)
	} else {
		a.orders[filled.OrderID] = existing
	}
}

// KernelStopping implements kernel.Agent.
func (a *TradingAgent) KernelStopping() {}

// KernelTerminating implements kernel.Agent.
func (a *TradingAgent) KernelTerminating() {}

// allocateOrderID hands out agent-local monotonic order IDs.
func (a *TradingAgent) allocateOrderID() uint64 {
	a.nextOrderID++
	return a.nextOrderID
}

// PlaceLimitOrder is the key invariant of the base contract: it admits
// an order only if accepting it would not increase at-risk capital
// beyond the greater of the current at-risk level or the starting cash
// (spec.md §4.3 — "the agent may always reduce risk; otherwise absolute
// risk may not exceed initial capital; no leverage"). Returns the order
// ID and true if admitted.
func (a *TradingAgent) PlaceLimitOrder(symbol string, qty int64, isBuy bool, price int64) (uint64, bool) {
	if !a.haveExch || a.mktClosed {
		return 0, false
	}

	side := market.Sell
	signedQty := -qty
	if isBuy {
		side = market.Buy
		signedQty = qty
	}

	hypothetical := a.holdings.Clone()
	hypothetical.Apply(symbol, signedQty)

	current := a.holdings.AtRisk(a.lastTrade)
	next := hypothetical.AtRisk(a.lastTrade)

	if !(next <= current || next <= a.startingCash) {
		return 0, false
	}

	order := market.Order{
		OrderID:    a.allocateOrderID(),
		AgentID:    uint64(a.id),
		Symbol:     symbol,
		Side:       side,
		Type:       market.LimitOrder,
		Quantity:   qty,
		LimitPrice: price,
	}
	a.orders[order.OrderID] = order
	a.k.SendMessage(a.id, a.exchangeID, &message.Message{Kind: message.LimitOrder, Sender: a.id, Order: order}, 0)
	return order.OrderID, true
}

// CancelOrder sends a CANCEL_ORDER for a still-open order. It is a no-op
// if the order is not currently tracked as open.
func (a *TradingAgent) CancelOrder(orderID uint64) {
	order, ok := a.orders[orderID]
	if !ok || !a.haveExch {
		return
	}
	a.k.SendMessage(a.id, a.exchangeID, &message.Message{Kind: message.CancelOrder, Sender: a.id, Order: order}, 0)
}

// QueryLastTrade requests the current last-traded price for symbol.
func (a *TradingAgent) QueryLastTrade(symbol string) {
	if !a.haveExch {
		return
	}
	a.k.SendMessage(a.id, a.exchangeID, &message.Message{Kind: message.QueryLastTrade, Sender: a.id, Symbol: symbol}, 0)
}

// QuerySpread requests top-of-book depth for symbol.
func (a *TradingAgent) QuerySpread(symbol string, depth int) {
	if !a.haveExch {
		return
	}
	a.k.SendMessage(a.id, a.exchangeID, &message.Message{Kind: message.QuerySpread, Sender: a.id, Symbol: symbol, Depth: depth}, 0)
}
