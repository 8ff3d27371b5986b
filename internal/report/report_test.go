package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/metrics"
	"github.com/marketsim/marketsim/internal/scenario"
)

func sampleMetrics() map[kernel.AgentID]*metrics.TraderMetrics {
	return map[kernel.AgentID]*metrics.TraderMetrics{
		1: {
			AgentID: 1, OrdersSent: 10, TotalFills: 8, FillRate: 0.8,
			AvgExecPriceCents: 10005, SlippageBps: 2.5, AvgTimeToFillNs: 1500,
			TimeToFillDist: []float64{1000, 1200, 1500, 1800, 2000},
		},
		2: {
			AgentID: 2, OrdersSent: 10, TotalFills: 4, FillRate: 0.4,
			AvgExecPriceCents: 10020, SlippageBps: 8.1, AvgTimeToFillNs: 4200,
			TimeToFillDist: []float64{3000, 3500, 4200, 5000, 6000},
		},
	}
}

func TestReportGenerateWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := scenario.GetConfig("calm", 1)
	r := NewReport(cfg, sampleMetrics(), dir)

	if err := r.Generate(); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, name := range []string{"metrics.json", "report.md", "plots.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected artifact %s: %v", name, err)
		}
	}

	content, err := os.ReadFile(filepath.Join(dir, "report.md"))
	if err != nil {
		t.Fatalf("read report.md: %v", err)
	}
	if !strings.Contains(string(content), "agent-1") || !strings.Contains(string(content), "agent-2") {
		t.Errorf("expected report to mention both agents:\n%s", content)
	}
}

func TestReportHandlesEmptyMetrics(t *testing.T) {
	dir := t.TempDir()
	cfg := scenario.GetConfig("calm", 1)
	r := NewReport(cfg, map[kernel.AgentID]*metrics.TraderMetrics{}, dir)
	if err := r.Generate(); err != nil {
		t.Fatalf("Generate with no agents: %v", err)
	}
}
