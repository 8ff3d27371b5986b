package sim

import (
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/marketsim/marketsim/internal/eventlog"
	"github.com/marketsim/marketsim/internal/exchange"
	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/market"
	"github.com/marketsim/marketsim/internal/metrics"
)

// auditLog writes one JSON-lines event file per agent, satisfying the
// persisted per-agent event log every agent (including the exchange
// itself) is expected to leave behind for a run. It implements both
// exchange.TradeListener and exchange.BBOListener so it can sit
// alongside the metrics collector and feed broadcaster in the same
// fan-out chain.
type auditLog struct {
	k          *kernel.Kernel
	log        *zap.Logger
	exchangeID kernel.AgentID
	writers    map[kernel.AgentID]*eventlog.Writer
	order      []kernel.AgentID
}

// newAuditLog opens one writer per agent ID up front, under dir, named
// agent-<id>.jsonl.
func newAuditLog(dir string, ids []kernel.AgentID, exchangeID kernel.AgentID, log *zap.Logger) (*auditLog, error) {
	writers := make(map[kernel.AgentID]*eventlog.Writer, len(ids))
	order := make([]kernel.AgentID, 0, len(ids))
	for _, id := range ids {
		path := filepath.Join(dir, fmt.Sprintf("agent-%d.jsonl", id))
		w, err := eventlog.NewWriter(path)
		if err != nil {
			return nil, fmt.Errorf("open audit log for agent %d: %w", id, err)
		}
		writers[id] = w
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return &auditLog{exchangeID: exchangeID, writers: writers, order: order, log: log}, nil
}

func (a *auditLog) setKernel(k *kernel.Kernel) { a.k = k }

func (a *auditLog) write(id kernel.AgentID, t kernel.SimTime, name string, payload any) {
	w, ok := a.writers[id]
	if !ok {
		return
	}
	if err := w.Write(eventlog.NewEvent(id, t, name, payload)); err != nil {
		a.log.Warn("audit log write failed", zap.Uint64("agent_id", uint64(id)), zap.Error(err))
	}
}

// OnOrderSent implements exchange.TradeListener.
func (a *auditLog) OnOrderSent(agentID kernel.AgentID, order market.Order, t kernel.SimTime, queuePos int) {
	a.write(agentID, t, "order_sent", order)
}

// OnCancel implements exchange.TradeListener.
func (a *auditLog) OnCancel(agentID kernel.AgentID, orderID uint64) {
	a.write(agentID, a.k.CurrentTime(), "order_cancelled", orderID)
}

// OnFill implements exchange.TradeListener.
func (a *auditLog) OnFill(agentID kernel.AgentID, orderID uint64, side market.Side, price, qty int64, t kernel.SimTime, queuePos int) {
	a.write(agentID, t, "order_filled", map[string]any{
		"order_id": orderID, "side": side.String(), "price_cents": price, "qty": qty,
	})
}

// OnTrade implements exchange.TradeRecorder: the exchange's own log gets
// the two-sided record.
func (a *auditLog) OnTrade(t kernel.SimTime, trade market.Trade) {
	a.write(a.exchangeID, t, "trade", trade)
}

// OnBBO implements exchange.BBOListener: the exchange's own log gets
// every BBO change it produces.
func (a *auditLog) OnBBO(symbol string, bbo market.BBO, lastTrade int64, hasLastTrade bool) {
	a.write(a.exchangeID, a.k.CurrentTime(), "bbo", map[string]any{
		"symbol": symbol, "bbo": bbo, "last_trade_cents": lastTrade, "has_last_trade": hasLastTrade,
	})
}

// close flushes and closes every per-agent writer, returning the total
// event count across all of them.
func (a *auditLog) close() (int, error) {
	total := 0
	for _, id := range a.order {
		w := a.writers[id]
		total += int(w.Count())
		if err := w.Close(); err != nil {
			return total, fmt.Errorf("close audit log for agent %d: %w", id, err)
		}
	}
	return total, nil
}

// paths returns the per-agent log file paths in agent-ID order, used to
// derive a deterministic whole-run content hash.
func (a *auditLog) paths(dir string) []string {
	paths := make([]string, 0, len(a.order))
	for _, id := range a.order {
		paths = append(paths, filepath.Join(dir, fmt.Sprintf("agent-%d.jsonl", id)))
	}
	return paths
}

// bboRecorder adapts metrics.Collector's ObserveBBO (which needs a
// kernel timestamp the exchange.BBOListener contract doesn't carry) into
// exchange.BBOListener by reading the current time off the kernel at the
// moment the exchange calls OnBBO synchronously from its own event
// handling.
type bboRecorder struct {
	k         *kernel.Kernel
	collector *metrics.Collector
}

func (r *bboRecorder) OnBBO(symbol string, bbo market.BBO, lastTrade int64, hasLastTrade bool) {
	r.collector.ObserveBBO(r.k.CurrentTime(), bbo)
}

// multiTradeListener fans every TradeListener callout out to a fixed set
// of listeners, since ExchangeAgent.SetTradeListener only holds one.
type multiTradeListener struct {
	listeners []exchange.TradeListener
}

func (m multiTradeListener) OnOrderSent(agentID kernel.AgentID, order market.Order, t kernel.SimTime, queuePos int) {
	for _, l := range m.listeners {
		l.OnOrderSent(agentID, order, t, queuePos)
	}
}

func (m multiTradeListener) OnCancel(agentID kernel.AgentID, orderID uint64) {
	for _, l := range m.listeners {
		l.OnCancel(agentID, orderID)
	}
}

func (m multiTradeListener) OnFill(agentID kernel.AgentID, orderID uint64, side market.Side, price, qty int64, t kernel.SimTime, queuePos int) {
	for _, l := range m.listeners {
		l.OnFill(agentID, orderID, side, price, qty, t, queuePos)
	}
}

// multiBBOListener fans every OnBBO callout out to a fixed set of
// listeners, since ExchangeAgent.SetListener only holds one.
type multiBBOListener struct {
	listeners []exchange.BBOListener
}

func (m multiBBOListener) OnBBO(symbol string, bbo market.BBO, lastTrade int64, hasLastTrade bool) {
	for _, l := range m.listeners {
		l.OnBBO(symbol, bbo, lastTrade, hasLastTrade)
	}
}
