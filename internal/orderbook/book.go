// Package orderbook implements a single-symbol, price-time-priority
// continuous double auction. The book never talks to the kernel itself:
// HandleLimitOrder, HandleMarketOrder and CancelOrder update the book in
// place and return the trades and the resulting BBO; the caller (the
// ExchangeAgent) turns those into ORDER_ACCEPTED/EXECUTED/CANCELLED
// messages. This is option (a) from spec.md §9 — it keeps the matching
// engine trivially testable without a kernel.
package orderbook

import (
	"sort"

	"github.com/marketsim/marketsim/internal/market"
)

// PriceLevel holds all resting orders at a single price, in FIFO order.
type PriceLevel struct {
	Price  int64
	Orders []*market.Order
}

// TotalQty sums the remaining quantity of every order resting at this
// level.
func (pl *PriceLevel) TotalQty() int64 {
	var total int64
	for _, o := range pl.Orders {
		total += o.Quantity
	}
	return total
}

// Book is a single-symbol limit order book.
type Book struct {
	Symbol string
	Bids   []*PriceLevel // descending by price, best bid first
	Asks   []*PriceLevel // ascending by price, best ask first

	orderIndex map[uint64]*market.Order
	orderSide  map[uint64]market.Side

	nextTradeID    uint64
	lastTradePrice int64
	hasLastTrade   bool
}

// New creates an empty book for a symbol.
func New(symbol string) *Book {
	return &Book{
		Symbol:     symbol,
		orderIndex: make(map[uint64]*market.Order),
		orderSide:  make(map[uint64]market.Side),
	}
}

// Result is the effect list HandleLimitOrder/HandleMarketOrder/CancelOrder
// return.
type Result struct {
	Accepted   bool // true if a LimitOrder was admitted (rested or fully filled)
	Trades     []market.Trade
	Cancelled  bool // true if a CancelOrder actually removed something
	BBO        market.BBO
	RoutingErr bool // symbol mismatch or malformed order: reject silently, log only
}

// HandleLimitOrder is the entry point for new limit orders: spec.md §4.2.
// The book rejects (RoutingErr) if the order targets a different symbol
// or has non-positive quantity.
func (b *Book) HandleLimitOrder(order market.Order) Result {
	if order.Symbol != b.Symbol || order.Quantity <= 0 {
		return Result{RoutingErr: true}
	}
	order.Type = market.LimitOrder

	trades := b.match(&order)

	if order.Quantity > 0 {
		b.insert(&order)
	}

	return Result{
		Accepted: true,
		Trades:   trades,
		BBO:      b.BBO(),
	}
}

// HandleMarketOrder sweeps the book without resting a residual.
// Supplemented from original_source per SPEC_FULL.md §4.2: the
// distilled spec's match loop applies unchanged to a market order, it
// simply never rests.
func (b *Book) HandleMarketOrder(order market.Order) Result {
	if order.Symbol != b.Symbol || order.Quantity <= 0 {
		return Result{RoutingErr: true}
	}
	order.Type = market.MarketOrder
	trades := b.match(&order)
	return Result{Trades: trades, BBO: b.BBO()}
}

// CancelOrder removes a resting order by ID. Per spec, a cancel of an
// order not found (already filled) silently succeeds — there is no
// negative acknowledgment (StaleCancel, §7).
func (b *Book) CancelOrder(orderID uint64) Result {
	target, exists := b.orderIndex[orderID]
	if !exists {
		return Result{Cancelled: false, BBO: b.BBO()}
	}
	b.removeOrder(target)
	delete(b.orderIndex, orderID)
	delete(b.orderSide, orderID)
	return Result{Cancelled: true, BBO: b.BBO()}
}

// match attempts to fill incoming against the opposite side. Match price
// rule: the resting order's limit_price, never the incoming order's
// price — even when the incoming order crosses deep into the book.
func (b *Book) match(incoming *market.Order) []market.Trade {
	var trades []market.Trade
	var oppositeSide *[]*PriceLevel
	if incoming.Side == market.Buy {
		oppositeSide = &b.Asks
	} else {
		oppositeSide = &b.Bids
	}

	for incoming.Quantity > 0 && len(*oppositeSide) > 0 {
		level := (*oppositeSide)[0]

		if incoming.Type == market.LimitOrder {
			if incoming.Side == market.Buy && incoming.LimitPrice < level.Price {
				break
			}
			if incoming.Side == market.Sell && incoming.LimitPrice > level.Price {
				break
			}
		}

		for i := 0; i < len(level.Orders) && incoming.Quantity > 0; {
			resting := level.Orders[i]
			fillQty := min64(incoming.Quantity, resting.Quantity)

			incoming.Quantity -= fillQty
			resting.Quantity -= fillQty

			b.nextTradeID++
			trade := market.Trade{
				TradeID:          b.nextTradeID,
				Symbol:           b.Symbol,
				Price:            resting.LimitPrice, // resting order's price, per spec
				Quantity:         fillQty,
				PassiveOrderID:   resting.OrderID,
				AggressorOrderID: incoming.OrderID,
			}
			if incoming.Side == market.Buy {
				trade.BuyOrderID, trade.SellOrderID = incoming.OrderID, resting.OrderID
				trade.BuyAgentID, trade.SellAgentID = incoming.AgentID, resting.AgentID
			} else {
				trade.SellOrderID, trade.BuyOrderID = incoming.OrderID, resting.OrderID
				trade.SellAgentID, trade.BuyAgentID = incoming.AgentID, resting.AgentID
			}
			trades = append(trades, trade)

			b.lastTradePrice = trade.Price
			b.hasLastTrade = true

			if resting.Quantity <= 0 {
				resting.Filled = true
				delete(b.orderIndex, resting.OrderID)
				delete(b.orderSide, resting.OrderID)
				level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			} else {
				i++
			}
		}

		if len(level.Orders) == 0 {
			*oppositeSide = (*oppositeSide)[1:]
		}
	}

	return trades
}

// insert places a resting order at its price-time-priority slot.
func (b *Book) insert(order *market.Order) {
	b.orderIndex[order.OrderID] = order
	b.orderSide[order.OrderID] = order.Side
	if order.Side == market.Buy {
		b.Bids = insertIntoLevels(b.Bids, order, true)
	} else {
		b.Asks = insertIntoLevels(b.Asks, order, false)
	}
}

func insertIntoLevels(levels []*PriceLevel, order *market.Order, descending bool) []*PriceLevel {
	idx := sort.Search(len(levels), func(i int) bool {
		if descending {
			return levels[i].Price <= order.LimitPrice
		}
		return levels[i].Price >= order.LimitPrice
	})

	if idx < len(levels) && levels[idx].Price == order.LimitPrice {
		levels[idx].Orders = append(levels[idx].Orders, order)
		return levels
	}

	newLevel := &PriceLevel{Price: order.LimitPrice, Orders: []*market.Order{order}}
	levels = append(levels, nil)
	copy(levels[idx+1:], levels[idx:])
	levels[idx] = newLevel
	return levels
}

func (b *Book) removeOrder(order *market.Order) {
	var levels *[]*PriceLevel
	if order.Side == market.Buy {
		levels = &b.Bids
	} else {
		levels = &b.Asks
	}
	for i, level := range *levels {
		if level.Price != order.LimitPrice {
			continue
		}
		for j, o := range level.Orders {
			if o.OrderID == order.OrderID {
				level.Orders = append(level.Orders[:j], level.Orders[j+1:]...)
				if len(level.Orders) == 0 {
					*levels = append((*levels)[:i], (*levels)[i+1:]...)
				}
				return
			}
		}
	}
}

// BBO returns the current best bid/offer snapshot.
func (b *Book) BBO() market.BBO {
	bbo := market.BBO{Symbol: b.Symbol}
	if len(b.Bids) > 0 {
		bbo.BidPrice = b.Bids[0].Price
		bbo.BidQty = b.Bids[0].TotalQty()
	}
	if len(b.Asks) > 0 {
		bbo.AskPrice = b.Asks[0].Price
		bbo.AskQty = b.Asks[0].TotalQty()
	}
	return bbo
}

// LastTrade returns the last executed price and whether any trade has
// happened yet.
func (b *Book) LastTrade() (int64, bool) {
	return b.lastTradePrice, b.hasLastTrade
}

// InsideBids returns up to depth (price, aggregate shares) pairs,
// best-first.
func (b *Book) InsideBids(depth int) []market.PriceLevelView {
	return levelsView(b.Bids, depth)
}

// InsideAsks returns up to depth (price, aggregate shares) pairs,
// best-first.
func (b *Book) InsideAsks(depth int) []market.PriceLevelView {
	return levelsView(b.Asks, depth)
}

func levelsView(levels []*PriceLevel, depth int) []market.PriceLevelView {
	if depth > len(levels) {
		depth = len(levels)
	}
	out := make([]market.PriceLevelView, depth)
	for i := 0; i < depth; i++ {
		out[i] = market.PriceLevelView{Price: levels[i].Price, Qty: levels[i].TotalQty()}
	}
	return out
}

// QueuePosition returns the 1-based FIFO position of an order at its
// price level, or 0 if it is not resting.
func (b *Book) QueuePosition(orderID uint64) int {
	order, exists := b.orderIndex[orderID]
	if !exists {
		return 0
	}
	var levels []*PriceLevel
	if order.Side == market.Buy {
		levels = b.Bids
	} else {
		levels = b.Asks
	}
	for _, level := range levels {
		if level.Price != order.LimitPrice {
			continue
		}
		for i, o := range level.Orders {
			if o.OrderID == orderID {
				return i + 1
			}
		}
	}
	return 0
}

// Depth returns the number of populated price levels on each side.
func (b *Book) Depth() (bidLevels, askLevels int) {
	return len(b.Bids), len(b.Asks)
}

// Violation describes a single order-book invariant breach.
type Violation struct {
	Reason string
}

// CheckInvariants walks the book and returns every invariant violation it
// finds, without panicking: per spec.md §7, a BookInvariant violation is
// logged loud and the run continues, it does not abort the kernel.
func (b *Book) CheckInvariants() []Violation {
	var violations []Violation

	for i := 1; i < len(b.Bids); i++ {
		if b.Bids[i].Price >= b.Bids[i-1].Price {
			violations = append(violations, Violation{Reason: "bid levels not sorted descending"})
		}
	}
	for i := 1; i < len(b.Asks); i++ {
		if b.Asks[i].Price <= b.Asks[i-1].Price {
			violations = append(violations, Violation{Reason: "ask levels not sorted ascending"})
		}
	}
	if len(b.Bids) > 0 && len(b.Asks) > 0 && b.Bids[0].Price >= b.Asks[0].Price {
		violations = append(violations, Violation{Reason: "crossed book: best bid >= best ask"})
	}
	allLevels := make([]*PriceLevel, 0, len(b.Bids)+len(b.Asks))
	allLevels = append(allLevels, b.Bids...)
	allLevels = append(allLevels, b.Asks...)
	for _, level := range allLevels {
		if len(level.Orders) == 0 {
			violations = append(violations, Violation{Reason: "empty price level left on book"})
		}
		for _, o := range level.Orders {
			if o.Quantity <= 0 {
				violations = append(violations, Violation{Reason: "non-positive remaining quantity resting on book"})
			}
		}
	}
	count := 0
	for _, level := range b.Bids {
		count += len(level.Orders)
	}
	for _, level := range b.Asks {
		count += len(level.Orders)
	}
	if count != len(b.orderIndex) {
		violations = append(violations, Violation{Reason: "orderIndex size mismatch"})
	}
	return violations
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
