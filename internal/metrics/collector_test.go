package metrics

import (
	"testing"

	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/market"
)

func TestComputeFillRateAndSlippage(t *testing.T) {
	c := NewCollector()
	c.ObserveBBO(0, market.BBO{BidPrice: 990, AskPrice: 1010})

	buyOrder := market.Order{OrderID: 1, Side: market.Buy, Type: market.LimitOrder}
	c.OnOrderSent(kernel.AgentID(1), buyOrder, 0, 3)
	c.OnFill(kernel.AgentID(1), 1, market.Buy, 1005, 10, 100, 1)

	unfilled := market.Order{OrderID: 2, Side: market.Sell, Type: market.LimitOrder}
	c.OnOrderSent(kernel.AgentID(1), unfilled, 0, 1)

	got := c.Compute()
	m, ok := got[kernel.AgentID(1)]
	if !ok {
		t.Fatalf("expected metrics for agent 1")
	}
	if m.OrdersSent != 2 {
		t.Errorf("OrdersSent = %d, want 2", m.OrdersSent)
	}
	if m.TotalFills != 1 {
		t.Errorf("TotalFills = %d, want 1", m.TotalFills)
	}
	if m.FillRate != 0.5 {
		t.Errorf("FillRate = %v, want 0.5", m.FillRate)
	}
	if m.AvgExecPriceCents != 1005 {
		t.Errorf("AvgExecPriceCents = %v, want 1005", m.AvgExecPriceCents)
	}
	wantSlip := float64(1005 - 1000)
	if m.AvgSlippageCents != wantSlip {
		t.Errorf("AvgSlippageCents = %v, want %v", m.AvgSlippageCents, wantSlip)
	}
	if m.AvgTimeToFillNs != 100 {
		t.Errorf("AvgTimeToFillNs = %v, want 100", m.AvgTimeToFillNs)
	}
}

func TestComputeOnEmptyCollector(t *testing.T) {
	c := NewCollector()
	if got := c.Compute(); len(got) != 0 {
		t.Fatalf("expected empty Compute on empty collector, got %v", got)
	}
}

func TestCancelsCounted(t *testing.T) {
	c := NewCollector()
	order := market.Order{OrderID: 5, Side: market.Buy, Type: market.LimitOrder}
	c.OnOrderSent(kernel.AgentID(9), order, 0, 1)
	c.OnCancel(kernel.AgentID(9), 5)
	m := c.Compute()[kernel.AgentID(9)]
	if m.CancelsSent != 1 {
		t.Errorf("CancelsSent = %d, want 1", m.CancelsSent)
	}
	if m.CanceledBeforeFill != 1 {
		t.Errorf("CanceledBeforeFill = %d, want 1", m.CanceledBeforeFill)
	}
}

func TestFillRateNeverExceedsOneWithMultipleOrders(t *testing.T) {
	c := NewCollector()
	buy := market.Order{OrderID: 1, Side: market.Buy, Type: market.LimitOrder}
	sell := market.Order{OrderID: 2, Side: market.Sell, Type: market.LimitOrder}
	c.OnOrderSent(kernel.AgentID(1), buy, 0, 1)
	c.OnOrderSent(kernel.AgentID(1), sell, 0, 1)
	c.OnFill(kernel.AgentID(1), 1, market.Buy, 10000, 4, 110, 1)
	c.OnFill(kernel.AgentID(1), 1, market.Buy, 10001, 6, 120, 1)

	m := c.Compute()[kernel.AgentID(1)]
	if m.FillRate > 1.0 {
		t.Fatalf("fill rate exceeded 1.0: %v", m.FillRate)
	}
	if m.FillRate != 0.5 {
		t.Fatalf("expected fill rate 0.5 (1 of 2 orders touched), got %v", m.FillRate)
	}
	if m.TotalQtyFilled != 10 {
		t.Errorf("TotalQtyFilled = %d, want 10", m.TotalQtyFilled)
	}
}
