// Package exchange implements the ExchangeAgent: the kernel-facing agent
// that owns one OrderBook per symbol and serves every message kind in
// spec.md §6 that targets the exchange.
package exchange

import (
	"go.uber.org/zap"

	"github.com/marketsim/marketsim/internal/agent"
	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/market"
	"github.com/marketsim/marketsim/internal/message"
	"github.com/marketsim/marketsim/internal/oracle"
	"github.com/marketsim/marketsim/internal/orderbook"
)

// BBOListener is notified of every BBO/last-trade change the exchange
// produces, regardless of which agent caused it. The Feed broadcaster
// (internal/feed) is the production implementation; tests may supply a
// recording stub.
type BBOListener interface {
	OnBBO(symbol string, bbo market.BBO, lastTrade int64, hasLastTrade bool)
}

type noopListener struct{}

func (noopListener) OnBBO(string, market.BBO, int64, bool) {}

// TradeListener is notified of every order submission, cancellation, and
// fill the exchange processes, tagged with the originating agent. The
// metrics collector (internal/metrics) is the production implementation.
type TradeListener interface {
	OnOrderSent(agentID kernel.AgentID, order market.Order, t kernel.SimTime, queuePos int)
	OnCancel(agentID kernel.AgentID, orderID uint64)
	OnFill(agentID kernel.AgentID, orderID uint64, side market.Side, price, qty int64, t kernel.SimTime, queuePos int)
}

type noopTradeListener struct{}

func (noopTradeListener) OnOrderSent(kernel.AgentID, market.Order, kernel.SimTime, int) {}
func (noopTradeListener) OnCancel(kernel.AgentID, uint64)                               {}
func (noopTradeListener) OnFill(kernel.AgentID, uint64, market.Side, int64, int64, kernel.SimTime, int) {
}

// TradeRecorder receives the full two-sided trade record. Unlike
// TradeListener, which reports one side at a time so the metrics
// collector can attribute fills per agent, a recorder needs both legs of
// a trade together (e.g. to persist one row with buy and sell agent
// IDs). The durable store (internal/persist) is the production
// implementation.
type TradeRecorder interface {
	OnTrade(t kernel.SimTime, trade market.Trade)
}

type noopTradeRecorder struct{}

func (noopTradeRecorder) OnTrade(kernel.SimTime, market.Trade) {}

// ExchangeAgent owns one order book per symbol and mediates every order
// and query against it.
type ExchangeAgent struct {
	id  kernel.AgentID
	k   *kernel.Kernel
	log *zap.Logger

	symbols map[string]*orderbook.Book
	oracle  oracle.Oracle

	mktOpen  kernel.SimTime
	mktClose kernel.SimTime

	listener BBOListener
	trades   TradeListener
	recorder TradeRecorder
}

// New constructs an ExchangeAgent for the given symbols. For a symbol
// with no trade history yet, each QUERY_LAST_TRADE or QUERY_SPREAD reply
// carries o's noiseless observation at mktOpen, asked at reply time
// (spec.md §4.4).
func New(id kernel.AgentID, symbols []string, mktOpen, mktClose kernel.SimTime, o oracle.Oracle, log *zap.Logger) *ExchangeAgent {
	books := make(map[string]*orderbook.Book, len(symbols))
	for _, s := range symbols {
		books[s] = orderbook.New(s)
	}
	return &ExchangeAgent{
		id:       id,
		log:      log.Named("exchange"),
		symbols:  books,
		oracle:   o,
		mktOpen:  mktOpen,
		mktClose: mktClose,
		listener: noopListener{},
		trades:   noopTradeListener{},
		recorder: noopTradeRecorder{},
	}
}

// SetListener wires a BBOListener (the feed broadcaster, typically) to
// receive every BBO change the exchange produces.
func (e *ExchangeAgent) SetListener(l BBOListener) {
	if l == nil {
		l = noopListener{}
	}
	e.listener = l
}

// SetTradeListener wires a TradeListener (the metrics collector,
// typically) to receive every order/cancel/fill the exchange processes.
func (e *ExchangeAgent) SetTradeListener(l TradeListener) {
	if l == nil {
		l = noopTradeListener{}
	}
	e.trades = l
}

// SetTradeRecorder wires a TradeRecorder (a durable store, typically) to
// receive every completed two-sided trade the exchange produces.
func (e *ExchangeAgent) SetTradeRecorder(r TradeRecorder) {
	if r == nil {
		r = noopTradeRecorder{}
	}
	e.recorder = r
}

// Book exposes a symbol's book for read-only inspection (reporting,
// metrics) without routing through the kernel.
func (e *ExchangeAgent) Book(symbol string) (*orderbook.Book, bool) {
	b, ok := e.symbols[symbol]
	return b, ok
}

// KernelInitializing implements kernel.Agent: registers under
// agent.ExchangeTag so trading agents can discover this exchange without
// a runtime type assertion.
func (e *ExchangeAgent) KernelInitializing(k *kernel.Kernel) {
	e.k = k
	k.Registry().Register(agent.ExchangeTag, e.id)
}

// KernelStarting implements kernel.Agent. The exchange has no autonomous
// behavior of its own; it only reacts to messages.
func (e *ExchangeAgent) KernelStarting(kernel.SimTime) {}

// Wakeup implements kernel.Agent. The exchange never schedules its own
// wakeups.
func (e *ExchangeAgent) Wakeup(kernel.SimTime) {}

// KernelStopping implements kernel.Agent.
func (e *ExchangeAgent) KernelStopping() {}

// KernelTerminating implements kernel.Agent.
func (e *ExchangeAgent) KernelTerminating() {}

// ReceiveMessage implements kernel.Agent: the message-kind switch named
// in spec.md §4.4/§6.
func (e *ExchangeAgent) ReceiveMessage(t kernel.SimTime, payload any) {
	msg, ok := payload.(*message.Message)
	if !ok {
		e.log.Error("unrecognized payload kind", zap.Any("payload", payload))
		return
	}

	switch msg.Kind {
	case message.WhenMktOpen:
		e.reply(msg.Sender, &message.Message{Kind: message.WhenMktOpenReply, Sender: e.id, Time: e.mktOpen})
	case message.WhenMktClose:
		e.reply(msg.Sender, &message.Message{Kind: message.WhenMktCloseReply, Sender: e.id, Time: e.mktClose})
	case message.LimitOrder:
		e.handleLimitOrder(t, msg)
	case message.CancelOrder:
		e.handleCancel(msg)
	case message.QueryLastTrade:
		e.handleQueryLastTrade(msg)
	case message.QuerySpread:
		e.handleQuerySpread(msg)
	default:
		e.log.Warn("exchange received unexpected message kind", zap.String("kind", msg.Kind.String()))
	}
}

func (e *ExchangeAgent) reply(to kernel.AgentID, m *message.Message) {
	e.k.SendMessage(e.id, to, m, 0)
}

// handleLimitOrder routes LIMIT_ORDER to the target book, replying
// MKT_CLOSED without mutating the book if the order arrives after close
// (spec.md's LateOrder rule), and ORDER_ACCEPTED/ORDER_EXECUTED to every
// party a resulting trade touches.
func (e *ExchangeAgent) handleLimitOrder(t kernel.SimTime, msg *message.Message) {
	order := msg.Order

	if t >= e.mktClose {
		e.reply(msg.Sender, &message.Message{Kind: message.MktClosed, Sender: e.id})
		return
	}

	book, ok := e.symbols[order.Symbol]
	if !ok {
		e.log.Warn("routing mismatch: unknown symbol", zap.String("symbol", order.Symbol))
		return
	}

	var res orderbook.Result
	if order.Type == market.MarketOrder {
		res = book.HandleMarketOrder(order)
	} else {
		res = book.HandleLimitOrder(order)
	}
	if res.RoutingErr {
		e.log.Warn("routing mismatch on limit order", zap.Uint64("order_id", order.OrderID))
		return
	}

	if res.Accepted {
		e.reply(msg.Sender, &message.Message{Kind: message.OrderAccepted, Sender: e.id, Order: order})
	}
	e.trades.OnOrderSent(msg.Sender, order, t, book.QueuePosition(order.OrderID))
	e.publishFills(t, res.Trades)

	if violations := book.CheckInvariants(); len(violations) > 0 {
		for _, v := range violations {
			e.log.Error("book invariant violation", zap.String("symbol", order.Symbol), zap.String("reason", v.Reason))
		}
	}

	e.publishBBO(order.Symbol, book)
}

func (e *ExchangeAgent) publishFills(t kernel.SimTime, trades []market.Trade) {
	for _, tr := range trades {
		buyAgent := kernel.AgentID(tr.BuyAgentID)
		sellAgent := kernel.AgentID(tr.SellAgentID)
		e.reply(buyAgent, &message.Message{Kind: message.OrderExecuted, Sender: e.id, Order: executedOrder(tr, tr.BuyOrderID, market.Buy)})
		e.reply(sellAgent, &message.Message{Kind: message.OrderExecuted, Sender: e.id, Order: executedOrder(tr, tr.SellOrderID, market.Sell)})
		e.trades.OnFill(buyAgent, tr.BuyOrderID, market.Buy, tr.Price, tr.Quantity, t, 0)
		e.trades.OnFill(sellAgent, tr.SellOrderID, market.Sell, tr.Price, tr.Quantity, t, 0)
		e.recorder.OnTrade(t, tr)
	}
}

func executedOrder(tr market.Trade, orderID uint64, side market.Side) market.Order {
	return market.Order{
		OrderID:    orderID,
		Symbol:     tr.Symbol,
		Side:       side,
		Type:       market.LimitOrder,
		Quantity:   tr.Quantity,
		LimitPrice: tr.Price,
		FillPrice:  tr.Price,
		Filled:     true,
	}
}

func (e *ExchangeAgent) handleCancel(msg *message.Message) {
	book, ok := e.symbols[msg.Order.Symbol]
	if !ok {
		return
	}
	res := book.CancelOrder(msg.Order.OrderID)
	if res.Cancelled {
		e.reply(msg.Sender, &message.Message{Kind: message.OrderCancelled, Sender: e.id, Order: msg.Order})
		e.trades.OnCancel(msg.Sender, msg.Order.OrderID)
	}
	e.publishBBO(msg.Order.Symbol, book)
}

func (e *ExchangeAgent) handleQueryLastTrade(msg *message.Message) {
	book, ok := e.symbols[msg.Symbol]
	if !ok {
		return
	}
	price, has := book.LastTrade()
	if !has {
		price = e.oracle.ObservePrice(msg.Symbol, e.mktOpen, 0)
	}
	e.reply(msg.Sender, &message.Message{Kind: message.QueryLastTradeReply, Sender: e.id, Symbol: msg.Symbol, Price: price})
}

func (e *ExchangeAgent) handleQuerySpread(msg *message.Message) {
	book, ok := e.symbols[msg.Symbol]
	if !ok {
		return
	}
	price, has := book.LastTrade()
	if !has {
		price = e.oracle.ObservePrice(msg.Symbol, e.mktOpen, 0)
	}
	e.reply(msg.Sender, &message.Message{
		Kind:   message.QuerySpreadReply,
		Sender: e.id,
		Symbol: msg.Symbol,
		Price:  price,
		Bids:   book.InsideBids(msg.Depth),
		Asks:   book.InsideAsks(msg.Depth),
	})
}

func (e *ExchangeAgent) publishBBO(symbol string, book *orderbook.Book) {
	last, has := book.LastTrade()
	e.listener.OnBBO(symbol, book.BBO(), last, has)
}
