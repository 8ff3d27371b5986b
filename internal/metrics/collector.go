// Package metrics collects per-agent execution-quality statistics from
// the stream of order/fill/cancel events an ExchangeAgent produces:
// orders sent, fill rate, slippage, time-to-fill, queue position, and
// adverse selection, for any number of kernel.AgentID participants, fed
// live during a run instead of re-parsed from a JSONL log afterward.
package metrics

import (
	"sort"

	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/market"
)

// TraderMetrics holds computed metrics for a single agent.
type TraderMetrics struct {
	AgentID kernel.AgentID `json:"agent_id"`

	OrdersSent   int `json:"orders_sent"`
	LimitOrders  int `json:"limit_orders"`
	MarketOrders int `json:"market_orders"`
	CancelsSent  int `json:"cancels_sent"`

	TotalFills     int   `json:"total_fills"`
	TotalQtyFilled int64 `json:"total_qty_filled"`
	FillRate       float64 `json:"fill_rate"`

	AvgExecPriceCents float64 `json:"avg_exec_price_cents"`
	AvgSlippageCents  float64 `json:"avg_slippage_cents"`
	SlippageBps       float64 `json:"slippage_bps"`

	AvgTimeToFillNs float64 `json:"avg_time_to_fill_ns"`

	AvgQueuePosPlace float64 `json:"avg_queue_pos_place"`
	AvgQueuePosFill  float64 `json:"avg_queue_pos_fill"`

	AvgPriceMoveAfterFillCents float64 `json:"avg_price_move_after_fill_cents"`
	AdverseSelectionBps        float64 `json:"adverse_selection_bps"`

	CanceledBeforeFill int `json:"canceled_before_fill"`

	SlippageValues []float64 `json:"-"`
	TimeToFillDist []float64 `json:"-"`
}

// Collector accumulates per-agent metrics across a run.
type Collector struct {
	accum      map[kernel.AgentID]*traderAccum
	bboHistory []bboSnapshot
}

type traderAccum struct {
	ordersSent, limitOrders, marketOrders, cancelsSent int
	orderInfo                                          map[uint64]orderInfo
	filled                                              map[uint64]bool
	canceled                                            map[uint64]bool
	fills                                               []fillInfo
}

type orderInfo struct {
	side          market.Side
	midAtDecision int64
	decisionTime  kernel.SimTime
	queuePosPlace int
}

type fillInfo struct {
	price, qty    int64
	side          market.Side
	midAtDecision int64
	decisionTime  kernel.SimTime
	fillTime      kernel.SimTime
	queuePosFill  int
}

type bboSnapshot struct {
	t   kernel.SimTime
	bbo market.BBO
}

func mid(b market.BBO) int64 {
	if b.BidPrice == 0 || b.AskPrice == 0 {
		return 0
	}
	return (b.BidPrice + b.AskPrice) / 2
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{accum: make(map[kernel.AgentID]*traderAccum)}
}

func (c *Collector) get(id kernel.AgentID) *traderAccum {
	a, ok := c.accum[id]
	if !ok {
		a = &traderAccum{
			orderInfo: make(map[uint64]orderInfo),
			filled:    make(map[uint64]bool),
			canceled:  make(map[uint64]bool),
		}
		c.accum[id] = a
	}
	return a
}

// ObserveBBO records a BBO snapshot used to compute mid-price-at-decision
// and adverse-selection drift.
func (c *Collector) ObserveBBO(t kernel.SimTime, bbo market.BBO) {
	c.bboHistory = append(c.bboHistory, bboSnapshot{t: t, bbo: bbo})
}

func (c *Collector) midAt(t kernel.SimTime) int64 {
	if len(c.bboHistory) == 0 {
		return 0
	}
	idx := sort.Search(len(c.bboHistory), func(i int) bool { return c.bboHistory[i].t > t })
	if idx == 0 {
		return mid(c.bboHistory[0].bbo)
	}
	return mid(c.bboHistory[idx-1].bbo)
}

// OnOrderSent implements exchange.TradeListener: records a
// LIMIT_ORDER/MARKET_ORDER submission.
func (c *Collector) OnOrderSent(agentID kernel.AgentID, order market.Order, t kernel.SimTime, queuePosPlace int) {
	a := c.get(agentID)
	a.ordersSent++
	switch order.Type {
	case market.LimitOrder:
		a.limitOrders++
	case market.MarketOrder:
		a.marketOrders++
	}
	a.orderInfo[order.OrderID] = orderInfo{
		side:          order.Side,
		midAtDecision: c.midAt(t),
		decisionTime:  t,
		queuePosPlace: queuePosPlace,
	}
}

// OnCancel implements exchange.TradeListener: records a CANCEL_ORDER
// that removed orderID from the book. The exchange does not report
// cancels of orders that were no longer resting, so CancelsSent counts
// only successful cancels.
func (c *Collector) OnCancel(agentID kernel.AgentID, orderID uint64) {
	a := c.get(agentID)
	a.cancelsSent++
	a.canceled[orderID] = true
}

// OnFill implements exchange.TradeListener: records one side of a trade.
func (c *Collector) OnFill(agentID kernel.AgentID, orderID uint64, side market.Side, price, qty int64, t kernel.SimTime, queuePosFill int) {
	a := c.get(agentID)
	a.filled[orderID] = true
	info := a.orderInfo[orderID]
	a.fills = append(a.fills, fillInfo{
		price: price, qty: qty, side: side,
		midAtDecision: info.midAtDecision,
		decisionTime:  info.decisionTime,
		fillTime:      t,
		queuePosFill:  queuePosFill,
	})
}

// Compute finalizes metrics for every observed agent.
func (c *Collector) Compute() map[kernel.AgentID]*TraderMetrics {
	result := make(map[kernel.AgentID]*TraderMetrics, len(c.accum))
	for agentID, a := range c.accum {
		m := &TraderMetrics{
			AgentID:      agentID,
			OrdersSent:   a.ordersSent,
			LimitOrders:  a.limitOrders,
			MarketOrders: a.marketOrders,
			CancelsSent:  a.cancelsSent,
			TotalFills:   len(a.fills),
		}

		if len(a.orderInfo) > 0 {
			filled := 0
			for id := range a.orderInfo {
				if a.filled[id] {
					filled++
				}
				if a.canceled[id] && !a.filled[id] {
					m.CanceledBeforeFill++
				}
			}
			m.FillRate = float64(filled) / float64(len(a.orderInfo))
		}

		var totalPrice, totalSlippage, totalTTF, totalQueuePlace, totalQueueFill, totalPostMove float64
		var qtyWeight int64
		var queuePlaceCount, queueFillCount, slippageCount, ttfCount, postMoveCount int

		for _, info := range a.orderInfo {
			if info.queuePosPlace > 0 {
				totalQueuePlace += float64(info.queuePosPlace)
				queuePlaceCount++
			}
		}

		for _, f := range a.fills {
			m.TotalQtyFilled += f.qty
			totalPrice += float64(f.price) * float64(f.qty)
			qtyWeight += f.qty

			if f.midAtDecision > 0 {
				slip := float64(f.price - f.midAtDecision)
				if f.side == market.Sell {
					slip = -slip
				}
				totalSlippage += slip
				slippageCount++
				m.SlippageValues = append(m.SlippageValues, slip)
			}
			if f.fillTime >= f.decisionTime {
				ttf := float64(f.fillTime - f.decisionTime)
				totalTTF += ttf
				ttfCount++
				m.TimeToFillDist = append(m.TimeToFillDist, ttf)
			}
			if f.queuePosFill > 0 {
				totalQueueFill += float64(f.queuePosFill)
				queueFillCount++
			}

			postMid := c.midAt(f.fillTime)
			if postMid > 0 {
				move := float64(postMid - f.price)
				if f.side == market.Sell {
					move = -move
				}
				totalPostMove += move
				postMoveCount++
			}
		}

		if qtyWeight > 0 {
			m.AvgExecPriceCents = totalPrice / float64(qtyWeight)
		}
		if slippageCount > 0 {
			m.AvgSlippageCents = totalSlippage / float64(slippageCount)
			if m.AvgExecPriceCents > 0 {
				m.SlippageBps = (m.AvgSlippageCents / m.AvgExecPriceCents) * 10000
			}
		}
		if ttfCount > 0 {
			m.AvgTimeToFillNs = totalTTF / float64(ttfCount)
		}
		if queuePlaceCount > 0 {
			m.AvgQueuePosPlace = totalQueuePlace / float64(queuePlaceCount)
		}
		if queueFillCount > 0 {
			m.AvgQueuePosFill = totalQueueFill / float64(queueFillCount)
		}
		if postMoveCount > 0 {
			m.AvgPriceMoveAfterFillCents = totalPostMove / float64(postMoveCount)
			if m.AvgExecPriceCents > 0 {
				m.AdverseSelectionBps = (m.AvgPriceMoveAfterFillCents / m.AvgExecPriceCents) * 10000
			}
		}

		sort.Float64s(m.TimeToFillDist)
		result[agentID] = m
	}
	return result
}
