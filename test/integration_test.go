package test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/marketsim/marketsim/internal/config"
	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/scenario"
	"github.com/marketsim/marketsim/internal/sim"
)

func testConfig(seed int64) *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	cfg.Seed = seed
	return cfg
}

// TestIntegrationAllScenarios runs all scenarios end-to-end through the
// real wiring (kernel + exchange + trading agents + oracle) and checks
// that the simulation produces meaningful, persisted results.
func TestIntegrationAllScenarios(t *testing.T) {
	for _, name := range []string{"calm", "thin", "spike"} {
		t.Run(name, func(t *testing.T) {
			scenarioCfg := scenario.GetConfig(name, 42)
			cfg := testConfig(42)
			dir := t.TempDir()

			runner := sim.NewRunner(cfg, scenarioCfg, zap.NewNop(), nil, nil)
			result, err := runner.Run(context.Background(), dir)
			if err != nil {
				t.Fatal(err)
			}

			if result.EventCount == 0 {
				t.Error("no events logged")
			}

			agent1, ok := result.Metrics[1]
			if !ok {
				t.Fatal("no metrics for agent 1 (the noise trader)")
			}
			if agent1.OrdersSent == 0 {
				t.Error("noise trader sent no orders")
			}
			if agent1.TotalFills == 0 {
				t.Error("noise trader recorded no fills")
			}

			t.Logf("  Events: %d, wall: %v", result.EventCount, result.Duration)
			t.Logf("  Orders: %d, fills: %d (rate %.1f%%)", agent1.OrdersSent, agent1.TotalFills, agent1.FillRate*100)
		})
	}
}

// TestMultiSymbolRun exercises more than one trading agent at once (one
// noise trader per configured symbol) sharing a single exchange and
// kernel.
func TestMultiSymbolRun(t *testing.T) {
	scenarioCfg := scenario.GetConfig("calm", 7)
	cfg := testConfig(7)
	cfg.Market.Symbols = []string{"XYZ", "ABC"}
	dir := t.TempDir()

	runner := sim.NewRunner(cfg, scenarioCfg, zap.NewNop(), nil, nil)
	result, err := runner.Run(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []kernel.AgentID{1, 2} {
		m, ok := result.Metrics[id]
		if !ok {
			t.Fatalf("no metrics for agent %d", id)
		}
		if m.OrdersSent == 0 {
			t.Errorf("agent %d sent no orders", id)
		}
	}
}
