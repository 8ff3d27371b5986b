package test

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/marketsim/marketsim/internal/report"
	"github.com/marketsim/marketsim/internal/scenario"
	"github.com/marketsim/marketsim/internal/sim"
)

// TestDeterminism verifies that the same seed and configuration produce
// byte-identical event logs and identical metrics across two independent
// runs, the core contract the kernel's RNG discipline exists to uphold.
func TestDeterminism(t *testing.T) {
	for _, name := range []string{"calm", "thin", "spike"} {
		t.Run(name, func(t *testing.T) {
			seed := int64(12345)

			scenarioCfg1 := scenario.GetConfig(name, seed)
			cfg1 := testConfig(seed)
			dir1 := t.TempDir()
			runner1 := sim.NewRunner(cfg1, scenarioCfg1, zap.NewNop(), nil, nil)
			result1, err := runner1.Run(context.Background(), dir1)
			if err != nil {
				t.Fatal(err)
			}
			rpt1 := report.NewReport(scenarioCfg1, result1.Metrics, result1.OutputDir)
			if err := rpt1.Generate(); err != nil {
				t.Fatalf("report gen run1: %v", err)
			}

			scenarioCfg2 := scenario.GetConfig(name, seed)
			cfg2 := testConfig(seed)
			dir2 := t.TempDir()
			runner2 := sim.NewRunner(cfg2, scenarioCfg2, zap.NewNop(), nil, nil)
			result2, err := runner2.Run(context.Background(), dir2)
			if err != nil {
				t.Fatal(err)
			}
			rpt2 := report.NewReport(scenarioCfg2, result2.Metrics, result2.OutputDir)
			if err := rpt2.Generate(); err != nil {
				t.Fatalf("report gen run2: %v", err)
			}

			if result1.EventCount != result2.EventCount {
				t.Errorf("event count mismatch: %d vs %d", result1.EventCount, result2.EventCount)
			}

			if result1.LogHash != result2.LogHash {
				t.Errorf("log hash mismatch:\n  run1: %s\n  run2: %s", result1.LogHash, result2.LogHash)
			}

			reportHash1 := hashFileT(t, filepath.Join(result1.OutputDir, "report.md"))
			reportHash2 := hashFileT(t, filepath.Join(result2.OutputDir, "report.md"))
			if reportHash1 != reportHash2 {
				t.Errorf("report.md hash mismatch:\n  run1: %s\n  run2: %s", reportHash1, reportHash2)
			}

			metricsHash1 := hashFileT(t, filepath.Join(result1.OutputDir, "metrics.json"))
			metricsHash2 := hashFileT(t, filepath.Join(result2.OutputDir, "metrics.json"))
			if metricsHash1 != metricsHash2 {
				t.Errorf("metrics.json hash mismatch:\n  run1: %s\n  run2: %s", metricsHash1, metricsHash2)
			}

			for agentID, m1 := range result1.Metrics {
				m2, ok := result2.Metrics[agentID]
				if !ok {
					t.Errorf("agent %d: missing from run2", agentID)
					continue
				}
				if m1.TotalFills != m2.TotalFills {
					t.Errorf("agent %d fills: %d vs %d", agentID, m1.TotalFills, m2.TotalFills)
				}
				if m1.TotalQtyFilled != m2.TotalQtyFilled {
					t.Errorf("agent %d qty: %d vs %d", agentID, m1.TotalQtyFilled, m2.TotalQtyFilled)
				}
				if m1.AvgExecPriceCents != m2.AvgExecPriceCents {
					t.Errorf("agent %d avg price: %f vs %f", agentID, m1.AvgExecPriceCents, m2.AvgExecPriceCents)
				}
				if m1.AvgSlippageCents != m2.AvgSlippageCents {
					t.Errorf("agent %d slippage: %f vs %f", agentID, m1.AvgSlippageCents, m2.AvgSlippageCents)
				}
				if m1.AvgQueuePosPlace != m2.AvgQueuePosPlace {
					t.Errorf("agent %d queue pos place: %f vs %f", agentID, m1.AvgQueuePosPlace, m2.AvgQueuePosPlace)
				}
				if m1.AvgQueuePosFill != m2.AvgQueuePosFill {
					t.Errorf("agent %d queue pos fill: %f vs %f", agentID, m1.AvgQueuePosFill, m2.AvgQueuePosFill)
				}
			}
		})
	}
}

// TestDifferentSeedsDiverge is the complement of TestDeterminism: two
// runs with different seeds should not coincidentally produce the same
// event trace.
func TestDifferentSeedsDiverge(t *testing.T) {
	scenarioCfg1 := scenario.GetConfig("calm", 1)
	cfg1 := testConfig(1)
	result1, err := sim.NewRunner(cfg1, scenarioCfg1, zap.NewNop(), nil, nil).Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	scenarioCfg2 := scenario.GetConfig("calm", 2)
	cfg2 := testConfig(2)
	result2, err := sim.NewRunner(cfg2, scenarioCfg2, zap.NewNop(), nil, nil).Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if result1.LogHash == result2.LogHash {
		t.Error("different seeds produced identical event logs")
	}
}

func hashFileT(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h)
}
