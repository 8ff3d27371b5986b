// Package market defines the core value types shared by the order book and
// the trading agent: sides, order types, orders, trades, and quote
// snapshots. All prices are integer cents; all quantities are integer
// shares. There is no floating-point monetary arithmetic anywhere in this
// package.
package market

import "fmt"

// Side is the direction of an order.
type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	return -s
}

// OrderType distinguishes resting limit orders from sweeping market orders
// and order cancellations.
type OrderType int8

const (
	LimitOrder OrderType = iota
	MarketOrder
	CancelOrder
)

func (t OrderType) String() string {
	switch t {
	case LimitOrder:
		return "LIMIT"
	case MarketOrder:
		return "MARKET"
	case CancelOrder:
		return "CANCEL"
	default:
		return "UNKNOWN"
	}
}

// Order is an immutable-after-creation limit, market, or cancel
// instruction. While an order rests in the book, the book decrements
// Quantity on fills and sets Filled once it is fully consumed; FillPrice
// is set only on the executed copies the exchange sends to each party.
type Order struct {
	OrderID      uint64 `json:"order_id"`
	AgentID      uint64 `json:"agent_id"`
	Symbol       string `json:"symbol"`
	Side         Side   `json:"side"`
	Type         OrderType `json:"type"`
	Quantity     int64  `json:"quantity"`
	LimitPrice   int64  `json:"limit_price"` // cents; 0 for market orders
	FillPrice    int64  `json:"fill_price,omitempty"`
	Filled       bool   `json:"filled,omitempty"`
	CancelTarget uint64 `json:"cancel_target,omitempty"` // for CancelOrder: target order ID
	SeqNo        uint64 `json:"seq_no"`                  // not set by the book; FIFO is the order within a price level
}

// Clone returns a value copy of the order, for handoff across agent/book
// boundaries so each side's copy evolves independently.
func (o Order) Clone() Order {
	return o
}

// Valid reports whether the order is well-formed per the book's admission
// rule: positive integer quantity, non-negative limit price.
func (o Order) Valid() bool {
	return o.Quantity > 0 && o.LimitPrice >= 0
}

func (o Order) String() string {
	return fmt.Sprintf("Order{id=%d agent=%d %s %s %d@%d sym=%s}",
		o.OrderID, o.AgentID, o.Type, o.Side, o.Quantity, o.LimitPrice, o.Symbol)
}

// Trade is a single matched execution between an aggressor and a resting
// (passive) order.
type Trade struct {
	TradeID          uint64 `json:"trade_id"`
	Symbol           string `json:"symbol"`
	BuyOrderID       uint64 `json:"buy_order_id"`
	SellOrderID      uint64 `json:"sell_order_id"`
	BuyAgentID       uint64 `json:"buy_agent_id"`
	SellAgentID      uint64 `json:"sell_agent_id"`
	Price            int64  `json:"price"` // resting order's price
	Quantity         int64  `json:"quantity"`
	TimestampNs      int64  `json:"timestamp_ns"`
	PassiveOrderID   uint64 `json:"passive_order_id"`
	AggressorOrderID uint64 `json:"aggressor_order_id"`
}

// BBO is a best-bid/best-offer snapshot for one symbol.
type BBO struct {
	Symbol   string `json:"symbol"`
	BidPrice int64  `json:"bid_price"`
	BidQty   int64  `json:"bid_qty"`
	AskPrice int64  `json:"ask_price"`
	AskQty   int64  `json:"ask_qty"`
}

// Crossed reports whether both sides are populated and non-crossing is
// violated (best_bid >= best_ask).
func (b BBO) Crossed() bool {
	return b.BidPrice > 0 && b.AskPrice > 0 && b.BidPrice >= b.AskPrice
}

// PriceLevelView is an aggregate (price, shares) pair returned by depth
// queries; it never exposes individual resting orders to non-exchange
// agents.
type PriceLevelView struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

// Holdings is one agent's portfolio: signed share positions per symbol and
// a distinguished cash balance in cents. Cash is modeled as its own field,
// not a reserved map key, so its different units can never be mixed with
// share counts by accident.
type Holdings struct {
	CashCents int64            `json:"cash_cents"`
	Positions map[string]int64 `json:"positions"`
}

// NewHoldings creates a Holdings with the given starting cash and no
// positions.
func NewHoldings(startingCashCents int64) Holdings {
	return Holdings{
		CashCents: startingCashCents,
		Positions: make(map[string]int64),
	}
}

// Clone returns a deep copy, used to compute hypothetical at-risk capital
// without mutating the agent's real holdings.
func (h Holdings) Clone() Holdings {
	cp := Holdings{CashCents: h.CashCents, Positions: make(map[string]int64, len(h.Positions))}
	for k, v := range h.Positions {
		cp.Positions[k] = v
	}
	return cp
}

// Apply adjusts a position by a signed share delta, removing the entry
// entirely if it returns to zero.
func (h *Holdings) Apply(symbol string, deltaShares int64) {
	h.Positions[symbol] += deltaShares
	if h.Positions[symbol] == 0 {
		delete(h.Positions, symbol)
	}
}

// MarkToMarket values every non-cash position at its last-trade price and
// returns the sum (cash excluded). Symbols with no last-trade entry are
// valued at zero: last_trade is always seeded before any agent can hold a
// position in that symbol.
func (h Holdings) MarkToMarket(lastTrade map[string]int64) int64 {
	var total int64
	for sym, qty := range h.Positions {
		total += qty * lastTrade[sym]
	}
	return total
}

// AtRisk is the agent's net long/short exposure: mark-to-market value of
// non-cash positions alone. Spec's definition is markToMarket(holdings)
// minus CASH, but markToMarket there includes CASH, so the cash term
// cancels — this is exactly that sum with the cancellation already done.
func (h Holdings) AtRisk(lastTrade map[string]int64) int64 {
	return h.MarkToMarket(lastTrade)
}
