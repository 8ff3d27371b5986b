package agent

import (
	"testing"

	"go.uber.org/zap"

	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/market"
	"github.com/marketsim/marketsim/internal/message"
)

// fakeExchange is a minimal stand-in for exchange.ExchangeAgent, kept in
// this package to avoid an agent<->exchange import cycle in tests:
// exchange already imports agent for agent.ExchangeTag.
type fakeExchange struct {
	id        kernel.AgentID
	k         *kernel.Kernel
	mktOpen   kernel.SimTime
	mktClose  kernel.SimTime
	lastFill  market.Order
	fireAFill bool
}

func (f *fakeExchange) KernelInitializing(k *kernel.Kernel) {
	f.k = k
	k.Registry().Register(ExchangeTag, f.id)
}
func (f *fakeExchange) KernelStarting(kernel.SimTime) {}
func (f *fakeExchange) Wakeup(kernel.SimTime)         {}
func (f *fakeExchange) ReceiveMessage(t kernel.SimTime, payload any) {
	msg := payload.(*message.Message)
	switch msg.Kind {
	case message.WhenMktOpen:
		f.k.SendMessage(f.id, msg.Sender, &message.Message{Kind: message.WhenMktOpenReply, Sender: f.id, Time: f.mktOpen}, 0)
	case message.WhenMktClose:
		f.k.SendMessage(f.id, msg.Sender, &message.Message{Kind: message.WhenMktCloseReply, Sender: f.id, Time: f.mktClose}, 0)
	case message.LimitOrder:
		f.k.SendMessage(f.id, msg.Sender, &message.Message{Kind: message.OrderAccepted, Sender: f.id, Order: msg.Order}, 0)
		if f.fireAFill {
			filled := msg.Order
			filled.FillPrice = msg.Order.LimitPrice
			filled.Quantity = msg.Order.Quantity
			f.k.SendMessage(f.id, msg.Sender, &message.Message{Kind: message.OrderExecuted, Sender: f.id, Order: filled}, 0)
		}
	case message.CancelOrder:
		f.k.SendMessage(f.id, msg.Sender, &message.Message{Kind: message.OrderCancelled, Sender: f.id, Order: msg.Order}, 0)
	}
}
func (f *fakeExchange) KernelStopping()    {}
func (f *fakeExchange) KernelTerminating() {}

type recordingStrategy struct {
	wakes []kernel.SimTime
	do    func(a *TradingAgent, t kernel.SimTime)
}

func (s *recordingStrategy) OnWake(a *TradingAgent, t kernel.SimTime) {
	s.wakes = append(s.wakes, t)
	if s.do != nil {
		s.do(a, t)
	}
}

func TestTradingAgentDiscoversMarketHours(t *testing.T) {
	ex := &fakeExchange{id: 1, mktOpen: 1000, mktClose: 50000}
	strat := &recordingStrategy{}
	ta := New(0, 100_000, 0, strat, zap.NewNop())

	k := kernel.New(kernel.Config{StartTime: 0, StopTime: 100_000, Logger: zap.NewNop()}, []kernel.Agent{ta, ex})
	k.Run()

	if len(strat.wakes) != 1 || strat.wakes[0] != 1000 {
		t.Fatalf("expected exactly one strategy wake at mkt_open=1000, got %v", strat.wakes)
	}
}

func TestApplyExecutionUpdatesHoldingsAndCash(t *testing.T) {
	ex := &fakeExchange{id: 1, mktOpen: 0, mktClose: 1_000_000, fireAFill: true}
	var placed uint64
	strat := &recordingStrategy{do: func(a *TradingAgent, _ kernel.SimTime) {
		id, ok := a.PlaceLimitOrder("XYZ", 10, true, 5000)
		if !ok {
			t.Fatal("expected order to be admitted")
		}
		placed = id
	}}
	ta := New(0, 1_000_000, 0, strat, zap.NewNop())

	k := kernel.New(kernel.Config{StartTime: 0, StopTime: 1_000_000, Logger: zap.NewNop()}, []kernel.Agent{ta, ex})
	k.Run()

	h := ta.Holdings()
	if h.Positions["XYZ"] != 10 {
		t.Errorf("expected 10 shares of XYZ, got %d", h.Positions["XYZ"])
	}
	if h.CashCents != 1_000_000-10*5000 {
		t.Errorf("expected cash debited by fill notional, got %d", h.CashCents)
	}
	if _, stillOpen := ta.Orders()[placed]; stillOpen {
		t.Error("expected order removed from open orders once fully filled")
	}
}

func TestPlaceLimitOrderRejectsWhenMarketClosed(t *testing.T) {
	ex := &fakeExchange{id: 1, mktOpen: 0, mktClose: 0}
	strat := &recordingStrategy{}
	ta := New(0, 100_000, 0, strat, zap.NewNop())

	k := kernel.New(kernel.Config{StartTime: 0, StopTime: 1000}, []kernel.Agent{ta, ex})
	k.Run()
	ta.ReceiveMessage(0, &message.Message{Kind: message.MktClosed, Sender: 1})

	if _, ok := ta.PlaceLimitOrder("XYZ", 1, true, 100); ok {
		t.Error("expected rejection of orders placed after MKT_CLOSED")
	}
}
