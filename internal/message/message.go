// Package message defines the application-level payload kinds exchanged
// between trading agents, exchanges, and the oracle. The kernel carries
// these opaquely — it never inspects a Message's Kind or fields.
package message

import (
	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/market"
)

// Kind discriminates the application-level payload carried inside a
// kernel Deliver event.
type Kind int8

const (
	WhenMktOpen Kind = iota
	WhenMktOpenReply
	WhenMktClose
	WhenMktCloseReply
	LimitOrder
	CancelOrder
	OrderAccepted
	OrderExecuted
	OrderCancelled
	QueryLastTrade
	QueryLastTradeReply
	QuerySpread
	QuerySpreadReply
	MktClosed
)

func (k Kind) String() string {
	switch k {
	case WhenMktOpen:
		return "WHEN_MKT_OPEN"
	case WhenMktOpenReply:
		return "WHEN_MKT_OPEN_REPLY"
	case WhenMktClose:
		return "WHEN_MKT_CLOSE"
	case WhenMktCloseReply:
		return "WHEN_MKT_CLOSE_REPLY"
	case LimitOrder:
		return "LIMIT_ORDER"
	case CancelOrder:
		return "CANCEL_ORDER"
	case OrderAccepted:
		return "ORDER_ACCEPTED"
	case OrderExecuted:
		return "ORDER_EXECUTED"
	case OrderCancelled:
		return "ORDER_CANCELLED"
	case QueryLastTrade:
		return "QUERY_LAST_TRADE"
	case QueryLastTradeReply:
		return "QUERY_LAST_TRADE_REPLY"
	case QuerySpread:
		return "QUERY_SPREAD"
	case QuerySpreadReply:
		return "QUERY_SPREAD_REPLY"
	case MktClosed:
		return "MKT_CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Message is the tagged-union envelope carried as a kernel Deliver
// payload. Exactly one group of fields is populated depending on Kind,
// mirroring spec.md §6's field table.
type Message struct {
	Kind   Kind
	Sender kernel.AgentID

	// WHEN_MKT_OPEN / WHEN_MKT_CLOSE reply
	Time kernel.SimTime

	// LIMIT_ORDER / CANCEL_ORDER / ORDER_ACCEPTED / ORDER_EXECUTED /
	// ORDER_CANCELLED
	Order market.Order

	// QUERY_LAST_TRADE / QUERY_SPREAD / their replies
	Symbol     string
	Price      int64
	MktClosed  bool
	Depth      int
	Bids       []market.PriceLevelView
	Asks       []market.PriceLevelView
}
