package scenario

import (
	"testing"

	"go.uber.org/zap"

	"github.com/marketsim/marketsim/internal/agent"
	"github.com/marketsim/marketsim/internal/exchange"
	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/oracle"
)

func runScenario(t *testing.T, cfg *Config, stop kernel.SimTime) *exchange.ExchangeAgent {
	t.Helper()
	o := oracle.NewMeanReverting(cfg.Seed, float64(cfg.Scenario.InitialMidPriceCents), 0, 1000, 0)
	ex := exchange.New(1, []string{"XYZ"}, 0, stop, o, zap.NewNop())
	nt := NewNoiseTrader("XYZ", cfg)
	ta := agent.New(0, 10_000_000, 0, nt, zap.NewNop())

	k := kernel.New(kernel.Config{StartTime: 0, StopTime: stop, Logger: zap.NewNop()}, []kernel.Agent{ta, ex})
	k.Run()
	return ex
}

func TestNoiseTraderProducesBookActivity(t *testing.T) {
	for _, name := range []string{"calm", "thin", "spike"} {
		cfg := GetConfig(name, 7)
		ex := runScenario(t, cfg, kernel.SimTime(200*1_000_000))
		book, ok := ex.Book("XYZ")
		if !ok {
			t.Fatalf("%s: expected XYZ book to exist", name)
		}
		bidL, askL := book.Depth()
		if bidL == 0 && askL == 0 {
			t.Errorf("%s: expected some resting liquidity after scenario run", name)
		}
		if violations := book.CheckInvariants(); len(violations) != 0 {
			t.Errorf("%s: unexpected invariant violations: %v", name, violations)
		}
	}
}

func TestNoiseTraderDeterministicGivenSeed(t *testing.T) {
	cfg1 := GetConfig("calm", 99)
	cfg2 := GetConfig("calm", 99)

	ex1 := runScenario(t, cfg1, kernel.SimTime(100*1_000_000))
	ex2 := runScenario(t, cfg2, kernel.SimTime(100*1_000_000))

	b1, _ := ex1.Book("XYZ")
	b2, _ := ex2.Book("XYZ")
	bbo1, bbo2 := b1.BBO(), b2.BBO()
	if bbo1 != bbo2 {
		t.Fatalf("same seed produced different BBO: %+v vs %+v", bbo1, bbo2)
	}
}
