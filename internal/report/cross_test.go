package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/metrics"
	"github.com/marketsim/marketsim/internal/scenario"
)

func TestCrossReportGenerateWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	results := []ScenarioResult{
		{Config: scenario.GetConfig("calm", 1), Metrics: sampleMetrics()},
		{Config: scenario.GetConfig("thin", 2), Metrics: sampleMetrics()},
	}
	cr := NewCrossReport(results, dir)
	if err := cr.Generate(); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, name := range []string{"cross-scenario-report.md", "cross-scenario-metrics.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected artifact %s: %v", name, err)
		}
	}
}

func TestAggFillRateAveragesAcrossAgents(t *testing.T) {
	m := map[kernel.AgentID]*metrics.TraderMetrics{
		1: {FillRate: 1.0},
		2: {FillRate: 0.0},
	}
	if got := aggFillRate(m); got != 0.5 {
		t.Errorf("aggFillRate = %v, want 0.5", got)
	}
}

func TestGenerateCrossAnalysisHandlesEmpty(t *testing.T) {
	cr := NewCrossReport(nil, t.TempDir())
	out := cr.generateCrossAnalysis()
	if out == "" {
		t.Fatal("expected non-empty fallback text for no scenarios")
	}
}
