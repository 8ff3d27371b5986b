// Package report renders a market-quality report from a scenario run's
// collected metrics: the same markdown/plots/JSON artifact shape as a
// fixed two-trader comparison report, generalized to an arbitrary set of
// kernel.AgentID participants.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/metrics"
	"github.com/marketsim/marketsim/internal/scenario"
)

// Report generates and writes a single scenario run's report.
type Report struct {
	config   *scenario.Config
	byAgent  map[kernel.AgentID]*metrics.TraderMetrics
	agentIDs []kernel.AgentID
	outDir   string
}

// NewReport creates a report generator over an arbitrary set of agents.
func NewReport(cfg *scenario.Config, metricsMap map[kernel.AgentID]*metrics.TraderMetrics, outDir string) *Report {
	ids := make([]kernel.AgentID, 0, len(metricsMap))
	for id := range metricsMap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &Report{config: cfg, byAgent: metricsMap, agentIDs: ids, outDir: outDir}
}

// Generate produces the full report: metrics.json, report.md, plots.txt.
func (r *Report) Generate() error {
	metricsPath := filepath.Join(r.outDir, "metrics.json")
	metricsData, err := json.MarshalIndent(r.byAgent, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if err := os.WriteFile(metricsPath, metricsData, 0644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	reportPath := filepath.Join(r.outDir, "report.md")
	if err := os.WriteFile(reportPath, []byte(r.renderMarkdown()), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	plotPath := filepath.Join(r.outDir, "plots.txt")
	if err := os.WriteFile(plotPath, []byte(r.renderPlots()), 0644); err != nil {
		return fmt.Errorf("write plots: %w", err)
	}

	return nil
}

func (r *Report) renderMarkdown() string {
	var sb strings.Builder

	sb.WriteString("# Market Simulation Report\n\n")
	sb.WriteString(fmt.Sprintf("**Scenario:** %s | **Seed:** %d\n\n", r.config.Name, r.config.Seed))

	sb.WriteString("## Execution Metrics\n\n")
	sb.WriteString("| Metric |")
	for _, id := range r.agentIDs {
		sb.WriteString(fmt.Sprintf(" agent-%d |", id))
	}
	sb.WriteString("\n|--------|")
	for range r.agentIDs {
		sb.WriteString("--------|")
	}
	sb.WriteString("\n")

	for _, row := range metricRows {
		sb.WriteString(fmt.Sprintf("| %s |", row.label))
		for _, id := range r.agentIDs {
			m := r.byAgent[id]
			sb.WriteString(fmt.Sprintf(" "+row.fmt+" |", row.get(m)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Time-to-Fill Distribution (ns)\n\n")
	sb.WriteString("| Percentile |")
	for _, id := range r.agentIDs {
		sb.WriteString(fmt.Sprintf(" agent-%d |", id))
	}
	sb.WriteString("\n|------------|")
	for range r.agentIDs {
		sb.WriteString("--------|")
	}
	sb.WriteString("\n")
	for _, p := range []float64{0.25, 0.50, 0.75, 0.90, 0.99} {
		sb.WriteString(fmt.Sprintf("| P%.0f |", p*100))
		for _, id := range r.agentIDs {
			v := percentile(r.byAgent[id].TimeToFillDist, p)
			sb.WriteString(fmt.Sprintf(" %.0f |", v))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Analysis\n\n")
	sb.WriteString(r.generateAnalysis())

	return sb.String()
}

type metricRow struct {
	label string
	get   func(m *metrics.TraderMetrics) float64
	fmt   string
}

var metricRows = []metricRow{
	{"Orders Sent", func(m *metrics.TraderMetrics) float64 { return float64(m.OrdersSent) }, "%.0f"},
	{"Limit Orders", func(m *metrics.TraderMetrics) float64 { return float64(m.LimitOrders) }, "%.0f"},
	{"Market Orders", func(m *metrics.TraderMetrics) float64 { return float64(m.MarketOrders) }, "%.0f"},
	{"Total Fills", func(m *metrics.TraderMetrics) float64 { return float64(m.TotalFills) }, "%.0f"},
	{"Total Qty Filled", func(m *metrics.TraderMetrics) float64 { return float64(m.TotalQtyFilled) }, "%.0f"},
	{"Fill Rate (%)", func(m *metrics.TraderMetrics) float64 { return m.FillRate * 100 }, "%.1f"},
	{"Avg Exec Price (cents)", func(m *metrics.TraderMetrics) float64 { return m.AvgExecPriceCents }, "%.2f"},
	{"Avg Slippage (cents)", func(m *metrics.TraderMetrics) float64 { return m.AvgSlippageCents }, "%.2f"},
	{"Slippage (bps)", func(m *metrics.TraderMetrics) float64 { return m.SlippageBps }, "%.2f"},
	{"Avg Time-to-Fill (ns)", func(m *metrics.TraderMetrics) float64 { return m.AvgTimeToFillNs }, "%.0f"},
	{"Avg Queue Pos (place)", func(m *metrics.TraderMetrics) float64 { return m.AvgQueuePosPlace }, "%.2f"},
	{"Avg Queue Pos (fill)", func(m *metrics.TraderMetrics) float64 { return m.AvgQueuePosFill }, "%.2f"},
	{"Adverse Selection (bps)", func(m *metrics.TraderMetrics) float64 { return m.AdverseSelectionBps }, "%.2f"},
	{"Canceled Before Fill", func(m *metrics.TraderMetrics) float64 { return float64(m.CanceledBeforeFill) }, "%.0f"},
}

func (r *Report) generateAnalysis() string {
	var sb strings.Builder

	if len(r.agentIDs) == 0 {
		sb.WriteString("No agent activity recorded.\n")
		return sb.String()
	}

	best := r.agentIDs[0]
	worst := r.agentIDs[0]
	for _, id := range r.agentIDs {
		if r.byAgent[id].FillRate > r.byAgent[best].FillRate {
			best = id
		}
		if r.byAgent[id].FillRate < r.byAgent[worst].FillRate {
			worst = id
		}
	}
	sb.WriteString(fmt.Sprintf("**Fill rate spread**: agent-%d achieved the highest fill rate (%.1f%%), agent-%d the lowest (%.1f%%).\n\n",
		best, r.byAgent[best].FillRate*100, worst, r.byAgent[worst].FillRate*100))

	bestSlip := r.agentIDs[0]
	worstSlip := r.agentIDs[0]
	for _, id := range r.agentIDs {
		if math.Abs(r.byAgent[id].SlippageBps) < math.Abs(r.byAgent[bestSlip].SlippageBps) {
			bestSlip = id
		}
		if math.Abs(r.byAgent[id].SlippageBps) > math.Abs(r.byAgent[worstSlip].SlippageBps) {
			worstSlip = id
		}
	}
	sb.WriteString(fmt.Sprintf("**Slippage spread**: agent-%d executed closest to the decision-time mid (%.2f bps), agent-%d furthest (%.2f bps).\n\n",
		bestSlip, r.byAgent[bestSlip].SlippageBps, worstSlip, r.byAgent[worstSlip].SlippageBps))

	sb.WriteString(fmt.Sprintf("### Scenario Context: %s\n\n", r.config.Name))
	switch r.config.Name {
	case "calm":
		sb.WriteString("A calm book with stable mid and tight spread; most resting liquidity gets absorbed evenly across participants.\n")
	case "thin":
		sb.WriteString("A thin book with sparse depth; the few orders that arrive first at a price level capture a disproportionate share of fills.\n")
	case "spike":
		sb.WriteString("Periodic burst windows drive cancel and market-order rates up sharply, producing short-lived volatility and wider slippage for orders resting through a burst.\n")
	}

	return sb.String()
}

func (r *Report) renderPlots() string {
	var sb strings.Builder

	sb.WriteString("=== Slippage Distribution (ASCII Histogram) ===\n\n")
	for _, id := range r.agentIDs {
		m := r.byAgent[id]
		if len(m.SlippageValues) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("agent-%d:\n", id))
		sb.WriteString(asciiHistogram(m.SlippageValues, 20))
		sb.WriteString("\n")
	}

	sb.WriteString("=== Time-to-Fill CDF (ASCII) ===\n\n")
	for _, id := range r.agentIDs {
		m := r.byAgent[id]
		if len(m.TimeToFillDist) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("agent-%d:\n", id))
		sb.WriteString(asciiCDF(m.TimeToFillDist))
		sb.WriteString("\n")
	}

	return sb.String()
}

// asciiHistogram draws a simple text histogram.
func asciiHistogram(values []float64, bins int) string {
	if len(values) == 0 {
		return "  (no data)\n"
	}

	minV, maxV := values[0], values[0]
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	if minV == maxV {
		return fmt.Sprintf("  all values = %.4f\n", minV)
	}

	binWidth := (maxV - minV) / float64(bins)
	counts := make([]int, bins)
	maxCount := 0

	for _, v := range values {
		idx := int((v - minV) / binWidth)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
		if counts[idx] > maxCount {
			maxCount = counts[idx]
		}
	}

	var sb strings.Builder
	barMax := 40
	for i, c := range counts {
		lo := minV + float64(i)*binWidth
		hi := lo + binWidth
		barLen := 0
		if maxCount > 0 {
			barLen = c * barMax / maxCount
		}
		bar := strings.Repeat("█", barLen)
		sb.WriteString(fmt.Sprintf("  %+8.4f to %+8.4f | %s (%d)\n", lo, hi, bar, c))
	}
	return sb.String()
}

// asciiCDF draws a simple text CDF over an already-sorted slice.
func asciiCDF(sorted []float64) string {
	if len(sorted) == 0 {
		return "  (no data)\n"
	}

	var sb strings.Builder
	steps := 10
	for i := 1; i <= steps; i++ {
		p := float64(i) / float64(steps)
		val := percentile(sorted, p)
		barLen := int(p * 40)
		bar := strings.Repeat("▓", barLen)
		sb.WriteString(fmt.Sprintf("  P%3.0f: %10.2f | %s\n", p*100, val, bar))
	}
	return sb.String()
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// PrintSummary writes a brief per-agent summary to stdout.
func PrintSummary(cfg *scenario.Config, m map[kernel.AgentID]*metrics.TraderMetrics) {
	if len(m) == 0 {
		fmt.Println("  No agent metrics available.")
		return
	}

	ids := make([]kernel.AgentID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fmt.Printf("  %-22s", "Metric")
	for _, id := range ids {
		fmt.Printf(" %12s", fmt.Sprintf("agent-%d", id))
	}
	fmt.Println()

	for _, row := range metricRows {
		fmt.Printf("  %-22s", row.label)
		for _, id := range ids {
			fmt.Printf(" %12.2f", row.get(m[id]))
		}
		fmt.Println()
	}
}
