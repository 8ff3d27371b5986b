// Package sim wires the kernel, exchange, trading agents, oracle, event
// log, metrics collector, and optional feed/persistence sinks into a
// complete, runnable simulation, built around the discrete-event kernel
// rather than a flat pre-scheduled event queue.
package sim

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketsim/marketsim/internal/agent"
	"github.com/marketsim/marketsim/internal/config"
	"github.com/marketsim/marketsim/internal/exchange"
	"github.com/marketsim/marketsim/internal/feed"
	"github.com/marketsim/marketsim/internal/kernel"
	"github.com/marketsim/marketsim/internal/latency"
	"github.com/marketsim/marketsim/internal/market"
	"github.com/marketsim/marketsim/internal/metrics"
	"github.com/marketsim/marketsim/internal/oracle"
	"github.com/marketsim/marketsim/internal/persist"
	"github.com/marketsim/marketsim/internal/scenario"
)

// RunResult holds the output of one simulation run.
type RunResult struct {
	RunID      string                                   `json:"run_id"`
	Scenario   *scenario.Config                          `json:"scenario"`
	OutputDir  string                                    `json:"output_dir"`
	EventCount int                                       `json:"event_count"`
	Duration   time.Duration                             `json:"wall_duration"`
	LogHash    string                                    `json:"log_hash"`
	Metrics    map[kernel.AgentID]*metrics.TraderMetrics  `json:"-"`
}

// exchangeAgentID is fixed: the exchange always registers first so its
// kernel.AgentID is predictable across runs with the same agent count,
// which same-seed determinism depends on.
const exchangeAgentID kernel.AgentID = 0

// Runner wires one scenario config against one simulator config into a
// runnable kernel and executes it to completion.
type Runner struct {
	cfg      *config.Config
	scenario *scenario.Config
	log      *zap.Logger

	feedMgr *feed.Manager
	store   *persist.Store
}

// NewRunner constructs a Runner. feedMgr and store are optional (nil
// disables the corresponding sink); the caller owns their lifecycle
// (feedMgr's HTTP server, store's Mongo connection) since both can
// outlive a single run.
func NewRunner(cfg *config.Config, scenarioCfg *scenario.Config, log *zap.Logger, feedMgr *feed.Manager, store *persist.Store) *Runner {
	return &Runner{cfg: cfg, scenario: scenarioCfg, log: log, feedMgr: feedMgr, store: store}
}

// Run executes the configured scenario to completion and writes the
// per-agent event logs and config.json under baseOutputDir/<run-id>/.
// metrics.json, report.md and plots.txt are not written here; the caller
// writes them from RunResult.Metrics with report.Report.Generate.
func (r *Runner) Run(ctx context.Context, baseOutputDir string) (*RunResult, error) {
	runID := fmt.Sprintf("%s-%s", r.scenario.Name, uuid.NewString())
	outDir := filepath.Join(baseOutputDir, runID)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	o := oracle.NewMeanReverting(r.cfg.Seed, r.cfg.Market.OracleMean, r.cfg.Market.OracleKappa, 1_000_000, 0)
	o.SetMarketClose(kernel.SimTime(r.cfg.Market.MktCloseNs))

	ex := exchange.New(exchangeAgentID, r.cfg.Market.Symbols, kernel.SimTime(r.cfg.Market.MktOpenNs), kernel.SimTime(r.cfg.Market.MktCloseNs), o, r.log)

	agents := make([]kernel.Agent, 0, 1+len(r.cfg.Market.Symbols))
	agents = append(agents, ex)

	agentIDs := []kernel.AgentID{exchangeAgentID}
	for i, symbol := range r.cfg.Market.Symbols {
		id := kernel.AgentID(i + 1)
		nt := scenario.NewNoiseTrader(symbol, r.scenario)
		ta := agent.New(id, r.cfg.Market.StartingCashCents, 0, nt, r.log)
		agents = append(agents, ta)
		agentIDs = append(agentIDs, id)
	}

	audit, err := newAuditLog(outDir, agentIDs, exchangeAgentID, r.log)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	bboRec := &bboRecorder{collector: collector}

	tradeListeners := []exchange.TradeListener{collector, audit}
	bboListeners := []exchange.BBOListener{bboRec, audit}
	if r.feedMgr != nil {
		bboListeners = append(bboListeners, r.feedMgr)
	}
	var recorder exchange.TradeRecorder = audit
	if r.store != nil {
		recorder = &storeRecorder{store: r.store, runID: runID, next: recorder, log: r.log}
	}

	ex.SetTradeListener(multiTradeListener{listeners: tradeListeners})
	ex.SetListener(multiBBOListener{listeners: bboListeners})
	ex.SetTradeRecorder(recorder)

	noiseDist := kernel.NoiseDistribution(kernel.ZeroNoise{})
	if r.cfg.Kernel.MaxLatencyJitter > 0 {
		switch r.cfg.Kernel.NoiseModel {
		case "uniform":
			noiseDist = latency.UniformJitter{MaxNs: r.cfg.Kernel.MaxLatencyJitter}
		default:
			noiseDist = kernel.NewWeightedNoise(
				[]int64{0, r.cfg.Kernel.MaxLatencyJitter / 2, r.cfg.Kernel.MaxLatencyJitter},
				[]float64{0.5, 0.3, 0.2},
			)
		}
	}

	stopNs := r.scenario.Duration
	if stopNs <= 0 {
		stopNs = r.cfg.Kernel.StopTimeNs
	}

	kcfg := kernel.Config{
		StartTime:               kernel.SimTime(r.cfg.Market.MktOpenNs),
		StopTime:                kernel.SimTime(r.cfg.Market.MktOpenNs + stopNs),
		DefaultComputationDelay:  r.cfg.Kernel.DefaultComputationDelayNs,
		DefaultLatency:           r.cfg.Kernel.DefaultLatencyNs,
		Noise:                    noiseDist,
		RNG:                      rand.New(rand.NewSource(r.cfg.Seed)),
		Logger:                   r.log,
	}

	k := kernel.New(kcfg, agents)
	audit.setKernel(k)
	bboRec.k = k

	start := time.Now()
	k.Run()
	wallDuration := time.Since(start)

	eventCount, err := audit.close()
	if err != nil {
		return nil, err
	}

	computed := collector.Compute()

	if r.store != nil {
		if err := r.store.InsertRun(ctx, persist.RunDocument{
			RunID: runID, Scenario: r.scenario.Name, Seed: r.cfg.Seed, Duration: int64(wallDuration),
		}); err != nil {
			r.log.Warn("persist run document failed", zap.Error(err))
		}
	}

	if err := writeRunConfig(outDir, r.cfg, r.scenario); err != nil {
		return nil, err
	}

	hash, err := hashLogs(audit.paths(outDir))
	if err != nil {
		return nil, err
	}

	return &RunResult{
		RunID:      runID,
		Scenario:   r.scenario,
		OutputDir:  outDir,
		EventCount: eventCount,
		Duration:   wallDuration,
		LogHash:    hash,
		Metrics:    computed,
	}, nil
}

// storeRecorder persists every completed trade to MongoDB, then forwards
// to next (the audit log, which also wants the two-sided record). Uses
// context.Background for inserts: the exchange calls this synchronously
// from inside kernel.Run, which has no per-event context of its own.
type storeRecorder struct {
	store *persist.Store
	runID string
	next  exchange.TradeRecorder
	log   *zap.Logger
}

func (s *storeRecorder) OnTrade(t kernel.SimTime, trade market.Trade) {
	doc := persist.TradeDocument{
		RunID:       s.runID,
		TimestampNs: t.Nanos(),
		Symbol:      trade.Symbol,
		Price:       trade.Price,
		Quantity:    trade.Quantity,
		BuyAgentID:  int(trade.BuyAgentID),
		SellAgentID: int(trade.SellAgentID),
	}
	if err := s.store.InsertTrade(context.Background(), doc); err != nil {
		s.log.Warn("persist trade failed", zap.Error(err))
	}
	s.next.OnTrade(t, trade)
}

func writeRunConfig(outDir string, cfg *config.Config, scenarioCfg *scenario.Config) error {
	payload := struct {
		Config   *config.Config   `json:"config"`
		Scenario *scenario.Config `json:"scenario"`
	}{Config: cfg, Scenario: scenarioCfg}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}
	return os.WriteFile(filepath.Join(outDir, "config.json"), data, 0644)
}

// hashLogs returns the sha256 hash of every path's contents concatenated
// in order, used to verify two runs with the same seed produced a
// byte-identical event trace.
func hashLogs(paths []string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return "", fmt.Errorf("open %s for hashing: %w", p, err)
		}
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", fmt.Errorf("hash %s: %w", p, err)
		}
		f.Close()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
