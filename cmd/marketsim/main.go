// Command marketsim runs the discrete-event market simulator: one
// scenario at a time (run), all three named scenarios back-to-back with
// a consolidated comparison (demo), a saved run's report on demand
// (report), or a determinism check against a prior run (replay).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/marketsim/marketsim/internal/config"
	"github.com/marketsim/marketsim/internal/feed"
	"github.com/marketsim/marketsim/internal/logging"
	"github.com/marketsim/marketsim/internal/persist"
	"github.com/marketsim/marketsim/internal/report"
	"github.com/marketsim/marketsim/internal/scenario"
	"github.com/marketsim/marketsim/internal/sim"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "marketsim",
		Short: "Discrete-event multi-agent market simulator",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file (defaults to built-in defaults + MARKETSIM_* env vars)")

	root.AddCommand(newRunCmd(), newReportCmd(), newDemoCmd(), newReplayCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	if cfg.Logging.LogFile != "" {
		return logging.NewWithFile(cfg.Logging.LogFile, level)
	}
	return logging.New(level)
}

// startFeed starts the optional websocket BBO broadcaster if enabled,
// returning a no-op stop func when it isn't. Kept running for the
// lifetime of the command process: subscribers connected while the
// kernel drains its event queue see live snapshots as they're produced.
func startFeed(cfg *config.Config, log *zap.Logger) (*feed.Manager, func()) {
	if !cfg.Feed.Enabled {
		return nil, func() {}
	}
	mgr := feed.NewManager(64)
	srv := &http.Server{Addr: cfg.Feed.Addr, Handler: feed.Handler(mgr)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("feed server stopped", zap.Error(err))
		}
	}()
	return mgr, func() { _ = srv.Close() }
}

func openStore(ctx context.Context, cfg *config.Config) (*persist.Store, error) {
	if !cfg.Persist.Enabled {
		return nil, nil
	}
	store, err := persist.NewStore(ctx, cfg.Persist.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("connect persistence store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate persistence store: %w", err)
	}
	return store, nil
}

func writeLastRun(baseDir, outDir string) {
	_ = os.WriteFile(filepath.Join(baseDir, "last-run"), []byte(outDir), 0644)
}

func newRunCmd() *cobra.Command {
	var scenarioName string
	var seed int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			scenarioCfg := scenario.GetConfig(scenarioName, seed)
			if scenarioCfg == nil {
				return fmt.Errorf("unknown scenario %q (calm, thin, spike)", scenarioName)
			}
			cfg.Seed = seed

			log, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := context.Background()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close(ctx)
			}
			feedMgr, stopFeed := startFeed(cfg, log)
			defer stopFeed()

			fmt.Printf("Running scenario: %s (seed=%d)\n", scenarioName, seed)
			runner := sim.NewRunner(cfg, scenarioCfg, log, feedMgr, store)
			result, err := runner.Run(ctx, cfg.Output.BaseDir)
			if err != nil {
				return fmt.Errorf("run simulation: %w", err)
			}

			fmt.Printf("Simulation complete.\n")
			fmt.Printf("  Events logged:  %d\n", result.EventCount)
			fmt.Printf("  Wall time:      %v\n", result.Duration)
			fmt.Printf("  Log hash:       %s...\n", result.LogHash[:16])
			fmt.Printf("  Output:         %s\n", result.OutputDir)

			fmt.Println("\nMetrics Summary:")
			report.PrintSummary(scenarioCfg, result.Metrics)

			reportGen := report.NewReport(scenarioCfg, result.Metrics, result.OutputDir)
			if err := reportGen.Generate(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not generate report: %v\n", err)
			} else {
				fmt.Printf("\nReport written to: %s/report.md\n", result.OutputDir)
			}

			writeLastRun(cfg.Output.BaseDir, result.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&scenarioName, "scenario", "", "scenario: calm, thin, spike (required)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	cmd.MarkFlagRequired("scenario")
	return cmd
}

func newReportCmd() *cobra.Command {
	var runDir, runID string
	var lastRun bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a previously generated run's report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if lastRun {
				data, err := os.ReadFile(filepath.Join(cfg.Output.BaseDir, "last-run"))
				if err != nil {
					return fmt.Errorf("no last run found, run a simulation first: %w", err)
				}
				runDir = string(data)
			}
			if runID != "" && runDir == "" {
				runDir = filepath.Join(cfg.Output.BaseDir, runID)
			}
			if runDir == "" {
				return fmt.Errorf("--last-run, --run-dir, or --run-id required")
			}

			data, err := os.ReadFile(filepath.Join(runDir, "report.md"))
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}
			fmt.Println(string(data))

			if plots, err := os.ReadFile(filepath.Join(runDir, "plots.txt")); err == nil {
				fmt.Println(string(plots))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&lastRun, "last-run", false, "use the most recent run")
	cmd.Flags().StringVar(&runDir, "run-dir", "", "path to a specific run directory")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id under the configured output directory")
	return cmd
}

func newDemoCmd() *cobra.Command {
	var seed int64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run calm, thin, and spike scenarios and generate a consolidated comparison",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := context.Background()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close(ctx)
			}
			feedMgr, stopFeed := startFeed(cfg, log)
			defer stopFeed()

			var results []report.ScenarioResult
			for _, name := range []string{"calm", "thin", "spike"} {
				scenarioCfg := scenario.GetConfig(name, seed)
				cfg.Seed = seed
				fmt.Printf("Running scenario: %s (seed=%d)...\n", name, seed)

				runner := sim.NewRunner(cfg, scenarioCfg, log, feedMgr, store)
				result, err := runner.Run(ctx, cfg.Output.BaseDir)
				if err != nil {
					return fmt.Errorf("run %s: %w", name, err)
				}
				fmt.Printf("  %s: %d events, %v\n", name, result.EventCount, result.Duration)

				reportGen := report.NewReport(scenarioCfg, result.Metrics, result.OutputDir)
				if err := reportGen.Generate(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: report generation failed for %s: %v\n", name, err)
				}

				results = append(results, report.ScenarioResult{
					Config: scenarioCfg, Metrics: result.Metrics, RunDir: result.OutputDir,
				})
			}

			report.PrintCrossSummary(results)

			crossReport := report.NewCrossReport(results, cfg.Output.BaseDir)
			if err := crossReport.Generate(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: cross-scenario report failed: %v\n", err)
			} else {
				fmt.Printf("\nCross-scenario report: %s/cross-scenario-report.md\n", cfg.Output.BaseDir)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	return cmd
}

func newReplayCmd() *cobra.Command {
	var runDir, runID string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a prior scenario with the same seed and verify the event log is byte-identical",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if runID != "" && runDir == "" {
				runDir = filepath.Join(cfg.Output.BaseDir, runID)
			}
			if runDir == "" {
				return fmt.Errorf("--run-dir or --run-id required")
			}

			saved, err := loadRunConfig(runDir)
			if err != nil {
				return fmt.Errorf("load saved run config: %w", err)
			}

			targetHash, err := hashRunLogs(runDir)
			if err != nil {
				return fmt.Errorf("hash target run logs: %w", err)
			}

			log, err := buildLogger(saved.Config)
			if err != nil {
				return err
			}
			defer log.Sync()

			tmpDir, err := os.MkdirTemp("", "marketsim-replay-*")
			if err != nil {
				return fmt.Errorf("create replay temp dir: %w", err)
			}
			defer os.RemoveAll(tmpDir)

			runner := sim.NewRunner(saved.Config, saved.Scenario, log, nil, nil)
			result, err := runner.Run(context.Background(), tmpDir)
			if err != nil {
				return fmt.Errorf("re-run scenario: %w", err)
			}

			fmt.Printf("Original run:   %s\n", runDir)
			fmt.Printf("Replay run:     %s\n", result.OutputDir)
			fmt.Printf("Target hash:    %s...\n", targetHash[:16])
			fmt.Printf("Replay hash:    %s...\n", result.LogHash[:16])
			if targetHash == result.LogHash {
				fmt.Println("Event logs match: replay is deterministic.")
			} else {
				fmt.Println("MISMATCH: replay did not reproduce the original event log.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runDir, "run-dir", "", "path to a specific run directory")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id under the configured output directory")
	return cmd
}
