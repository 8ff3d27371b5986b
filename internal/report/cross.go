// Package report — cross-scenario consolidated comparison.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/metrics"
	"github.com/marketsim/marketsim/internal/scenario"
)

// ScenarioResult bundles a scenario config with its computed metrics.
type ScenarioResult struct {
	Config  *scenario.Config
	Metrics map[kernel.AgentID]*metrics.TraderMetrics
	RunDir  string
}

// CrossReport generates a consolidated report comparing metrics across
// scenario runs, for an arbitrary set of agents per scenario rather than
// a fixed pairing.
type CrossReport struct {
	results []ScenarioResult
	outDir  string
}

// NewCrossReport creates a cross-scenario report.
func NewCrossReport(results []ScenarioResult, outDir string) *CrossReport {
	return &CrossReport{results: results, outDir: outDir}
}

// Generate writes the consolidated report.
func (cr *CrossReport) Generate() error {
	if err := os.MkdirAll(cr.outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	content := cr.renderMarkdown()
	reportPath := filepath.Join(cr.outDir, "cross-scenario-report.md")
	if err := os.WriteFile(reportPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write cross report: %w", err)
	}

	dataPath := filepath.Join(cr.outDir, "cross-scenario-metrics.json")
	data, err := json.MarshalIndent(cr.buildSummary(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cross summary: %w", err)
	}
	return os.WriteFile(dataPath, data, 0644)
}

type scenarioSummary struct {
	Scenario string                                   `json:"scenario"`
	Agents   map[kernel.AgentID]*metrics.TraderMetrics `json:"agents"`
}

func (cr *CrossReport) buildSummary() []scenarioSummary {
	summaries := make([]scenarioSummary, 0, len(cr.results))
	for _, r := range cr.results {
		summaries = append(summaries, scenarioSummary{Scenario: r.Config.Name, Agents: r.Metrics})
	}
	return summaries
}

func aggFillRate(m map[kernel.AgentID]*metrics.TraderMetrics) float64 {
	if len(m) == 0 {
		return 0
	}
	var total float64
	for _, v := range m {
		total += v.FillRate
	}
	return total / float64(len(m))
}

func aggSlippageBps(m map[kernel.AgentID]*metrics.TraderMetrics) float64 {
	if len(m) == 0 {
		return 0
	}
	var total float64
	for _, v := range m {
		total += v.SlippageBps
	}
	return total / float64(len(m))
}

func aggTTF(m map[kernel.AgentID]*metrics.TraderMetrics) float64 {
	if len(m) == 0 {
		return 0
	}
	var total float64
	for _, v := range m {
		total += v.AvgTimeToFillNs
	}
	return total / float64(len(m))
}

func aggAdverseSelection(m map[kernel.AgentID]*metrics.TraderMetrics) float64 {
	if len(m) == 0 {
		return 0
	}
	var total float64
	for _, v := range m {
		total += v.AdverseSelectionBps
	}
	return total / float64(len(m))
}

type crossRow struct {
	label string
	get   func(m map[kernel.AgentID]*metrics.TraderMetrics) float64
	fmt   string
}

var crossRows = []crossRow{
	{"Mean Fill Rate (%)", func(m map[kernel.AgentID]*metrics.TraderMetrics) float64 { return aggFillRate(m) * 100 }, "%.1f"},
	{"Mean Slippage (bps)", aggSlippageBps, "%.2f"},
	{"Mean Avg TTF (ns)", aggTTF, "%.0f"},
	{"Mean Adverse Selection (bps)", aggAdverseSelection, "%.2f"},
}

func (cr *CrossReport) renderMarkdown() string {
	var sb strings.Builder

	sb.WriteString("# Cross-Scenario Comparison\n\n")
	sb.WriteString("This report consolidates per-agent execution metrics across multiple market scenarios to show how market regime affects execution quality.\n\n")

	sb.WriteString("## Summary Table (cross-agent mean per scenario)\n\n")
	sb.WriteString("| Metric |")
	for _, r := range cr.results {
		sb.WriteString(fmt.Sprintf(" %s |", r.Config.Name))
	}
	sb.WriteString("\n|--------|")
	for range cr.results {
		sb.WriteString("--------|")
	}
	sb.WriteString("\n")

	for _, row := range crossRows {
		sb.WriteString(fmt.Sprintf("| %s |", row.label))
		for _, r := range cr.results {
			sb.WriteString(fmt.Sprintf(" "+row.fmt+" |", row.get(r.Metrics)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Per-Agent Detail\n\n")
	for _, r := range cr.results {
		sb.WriteString(fmt.Sprintf("### %s (seed %d)\n\n", r.Config.Name, r.Config.Seed))
		ids := make([]kernel.AgentID, 0, len(r.Metrics))
		for id := range r.Metrics {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		sb.WriteString("| Agent | Fill Rate | Slippage (bps) | Avg TTF (ns) | Adv. Selection (bps) |\n")
		sb.WriteString("|-------|-----------|-----------------|--------------|------------------------|\n")
		for _, id := range ids {
			m := r.Metrics[id]
			sb.WriteString(fmt.Sprintf("| agent-%d | %.1f%% | %.2f | %.0f | %.2f |\n",
				id, m.FillRate*100, m.SlippageBps, m.AvgTimeToFillNs, m.AdverseSelectionBps))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Cross-Scenario Analysis\n\n")
	sb.WriteString(cr.generateCrossAnalysis())

	return sb.String()
}

func (cr *CrossReport) generateCrossAnalysis() string {
	var sb strings.Builder

	if len(cr.results) == 0 {
		sb.WriteString("No scenario data available for comparison.\n")
		return sb.String()
	}

	best := cr.results[0]
	worst := cr.results[0]
	for _, r := range cr.results[1:] {
		if aggFillRate(r.Metrics) > aggFillRate(best.Metrics) {
			best = r
		}
		if aggFillRate(r.Metrics) < aggFillRate(worst.Metrics) {
			worst = r
		}
	}
	sb.WriteString(fmt.Sprintf("- **Fill rate**: %s produced the highest mean fill rate (%.1f%%), %s the lowest (%.1f%%).\n",
		best.Config.Name, aggFillRate(best.Metrics)*100, worst.Config.Name, aggFillRate(worst.Metrics)*100))

	worstSlip := cr.results[0]
	for _, r := range cr.results[1:] {
		if abs(aggSlippageBps(r.Metrics)) > abs(aggSlippageBps(worstSlip.Metrics)) {
			worstSlip = r
		}
	}
	sb.WriteString(fmt.Sprintf("- **Slippage**: %s shows the widest mean slippage (%.2f bps), consistent with thinner resting depth or more aggressive order flow.\n",
		worstSlip.Config.Name, aggSlippageBps(worstSlip.Metrics)))

	sb.WriteString("\n### Key Takeaways\n\n")
	sb.WriteString("1. Thin or bursty regimes widen slippage and adverse selection because replenishing liquidity lags incoming order flow.\n")
	sb.WriteString("2. Calm, deep books buffer execution quality across all participants, narrowing the spread between best and worst performers.\n")

	return sb.String()
}

// PrintCrossSummary prints a condensed cross-scenario summary to stdout.
func PrintCrossSummary(results []ScenarioResult) {
	fmt.Println("\n=== Cross-Scenario Comparison ===")
	fmt.Println()
	fmt.Printf("  %-22s", "Metric")
	for _, r := range results {
		fmt.Printf(" %14s", r.Config.Name)
	}
	fmt.Println()

	for _, row := range crossRows {
		fmt.Printf("  %-22s", row.label)
		for _, r := range results {
			fmt.Printf(" %14.2f", row.get(r.Metrics))
		}
		fmt.Println()
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
