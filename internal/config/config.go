// Package config defines simulator configuration, loaded from a YAML
// file with MARKETSIM_* environment variable overrides. Grounded on the
// example market maker's config.Load/Config pair: a mapstructure-tagged
// struct unmarshaled by viper, with a Validate pass before use.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level simulator configuration.
type Config struct {
	Seed     int64          `mapstructure:"seed"`
	Kernel   KernelConfig   `mapstructure:"kernel"`
	Market   MarketConfig   `mapstructure:"market"`
	Scenario string         `mapstructure:"scenario"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Persist  PersistConfig  `mapstructure:"persist"`
	Output   OutputConfig   `mapstructure:"output"`
}

// KernelConfig tunes the discrete-event kernel.
type KernelConfig struct {
	StopTimeNs                int64  `mapstructure:"stop_time_ns"`
	MaxLatencyJitter          int64  `mapstructure:"max_latency_jitter_ns"`
	DefaultComputationDelayNs int64  `mapstructure:"default_computation_delay_ns"`
	DefaultLatencyNs          int64  `mapstructure:"default_latency_ns"`
	// NoiseModel selects the kernel's latency-noise distribution:
	// "weighted" (a discrete distribution skewed toward low jitter) or
	// "uniform" (uniform over [0, max_latency_jitter_ns)).
	NoiseModel string `mapstructure:"noise_model"`
}

// MarketConfig names the symbols simulated, the market-hours window, and
// the starting capital every trading agent is seeded with.
type MarketConfig struct {
	Symbols           []string `mapstructure:"symbols"`
	MktOpenNs         int64    `mapstructure:"mkt_open_ns"`
	MktCloseNs        int64    `mapstructure:"mkt_close_ns"`
	OracleMean        float64  `mapstructure:"oracle_mean_cents"`
	OracleKappa       float64  `mapstructure:"oracle_kappa"`
	StartingCashCents int64    `mapstructure:"starting_cash_cents"`
}

// LoggingConfig sets the zap logger's verbosity and destination.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	LogFile string `mapstructure:"log_file"`
}

// FeedConfig controls the optional websocket BBO broadcaster.
type FeedConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// PersistConfig controls the optional MongoDB sink.
type PersistConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	MongoURI string `mapstructure:"mongo_uri"`
}

// OutputConfig controls where run artifacts are written.
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// Load reads config from a YAML file with MARKETSIM_* env var overrides
// (e.g. MARKETSIM_PERSIST_MONGO_URI overrides persist.mongo_uri). An
// empty path skips the file entirely and runs on defaults plus env vars,
// so the CLI works without a config file present.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKETSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("seed", 1)
	v.SetDefault("scenario", "calm")
	v.SetDefault("kernel.stop_time_ns", int64(6*60*60)*1_000_000_000)
	v.SetDefault("kernel.max_latency_jitter_ns", int64(5_000_000))
	v.SetDefault("kernel.default_computation_delay_ns", int64(1_000_000))
	v.SetDefault("kernel.default_latency_ns", int64(2_000_000))
	v.SetDefault("kernel.noise_model", "weighted")
	v.SetDefault("market.symbols", []string{"XYZ"})
	v.SetDefault("market.mkt_open_ns", int64(0))
	v.SetDefault("market.mkt_close_ns", int64(6*60*60)*1_000_000_000)
	v.SetDefault("market.oracle_mean_cents", 10000.0)
	v.SetDefault("market.oracle_kappa", 0.01)
	v.SetDefault("market.starting_cash_cents", int64(100_000_000))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_file", "")
	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.addr", ":8089")
	v.SetDefault("persist.enabled", false)
	v.SetDefault("persist.mongo_uri", "")
	v.SetDefault("output.base_dir", "runs")
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("market.symbols must list at least one symbol")
	}
	if c.Market.MktCloseNs <= c.Market.MktOpenNs {
		return fmt.Errorf("market.mkt_close_ns must be after market.mkt_open_ns")
	}
	if c.Kernel.StopTimeNs <= 0 {
		return fmt.Errorf("kernel.stop_time_ns must be > 0")
	}
	if c.Persist.Enabled && c.Persist.MongoURI == "" {
		return fmt.Errorf("persist.mongo_uri is required when persist.enabled is true")
	}
	return nil
}
