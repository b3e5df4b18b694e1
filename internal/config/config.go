package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/procurement-sim/internal/benchmark"
)

// Config holds the full application configuration.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation" mapstructure:"simulation"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Scorer     ScorerConfig     `yaml:"scorer" mapstructure:"scorer"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SimulationConfig holds the policy parameters shared by every engine.
type SimulationConfig struct {
	RiskThreshold    float64        `yaml:"risk_threshold" mapstructure:"risk_threshold"`
	DefaultBenchmark string         `yaml:"default_benchmark" mapstructure:"default_benchmark"`
	SavingsRule      string         `yaml:"savings_rule" mapstructure:"savings_rule"`
	Scenario         ScenarioConfig `yaml:"scenario" mapstructure:"scenario"`
}

// ScenarioConfig configures the what-if engine.
type ScenarioConfig struct {
	BaselineCost        float64 `yaml:"baseline_cost" mapstructure:"baseline_cost"`
	BasePrice           float64 `yaml:"base_price" mapstructure:"base_price"`
	SafeEfficiencyFloor float64 `yaml:"safe_efficiency_floor" mapstructure:"safe_efficiency_floor"`
}

// LedgerConfig locates the contract table and, optionally, the per-contract
// variable contributions exported alongside the risk model.
type LedgerConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	Sheet         string `yaml:"sheet" mapstructure:"sheet"`
	Contributions string `yaml:"contributions" mapstructure:"contributions"`
}

// ScorerConfig selects and configures the risk scorer.
type ScorerConfig struct {
	Kind        string  `yaml:"kind" mapstructure:"kind"`
	ModelPath   string  `yaml:"model_path" mapstructure:"model_path"`
	URL         string  `yaml:"url" mapstructure:"url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	BatchSize   int     `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig bounds the in-process result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROCSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("simulation.risk_threshold", 0.065)
	v.SetDefault("simulation.default_benchmark", "p75")
	v.SetDefault("simulation.savings_rule", "below_threshold")
	v.SetDefault("simulation.scenario.baseline_cost", 50000)
	v.SetDefault("simulation.scenario.base_price", 50000)
	v.SetDefault("simulation.scenario.safe_efficiency_floor", 0.6)
	v.SetDefault("ledger.path", "data/contracts.csv")
	v.SetDefault("ledger.sheet", "")
	v.SetDefault("ledger.contributions", "")
	v.SetDefault("scorer.kind", "logistic")
	v.SetDefault("scorer.model_path", "models/risk_model.yaml")
	v.SetDefault("scorer.url", "")
	v.SetDefault("scorer.timeout_secs", 30)
	v.SetDefault("scorer.rate_per_sec", 5)
	v.SetDefault("scorer.batch_size", 500)
	v.SetDefault("scorer.max_attempts", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "procurement-sim.db")
	v.SetDefault("cache.max_entries", 64)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate rejects settings the given mode cannot run with. Mode "serve"
// additionally checks the server port. All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string
	s := c.Simulation
	if s.RiskThreshold < 0 || s.RiskThreshold > 1 {
		errs = append(errs, fmt.Sprintf("simulation.risk_threshold %g outside [0,1]", s.RiskThreshold))
	}
	if _, err := benchmark.ParseQuantile(s.DefaultBenchmark); err != nil {
		errs = append(errs, fmt.Sprintf("simulation.default_benchmark %q is not a benchmark label", s.DefaultBenchmark))
	}
	switch strings.ToLower(s.SavingsRule) {
	case "always", "below_threshold", "below":
	default:
		errs = append(errs, fmt.Sprintf("unknown simulation.savings_rule %q", s.SavingsRule))
	}
	if s.Scenario.BaselineCost <= 0 {
		errs = append(errs, "simulation.scenario.baseline_cost must be > 0")
	}
	if s.Scenario.BasePrice <= 0 {
		errs = append(errs, "simulation.scenario.base_price must be > 0")
	}
	if s.Scenario.SafeEfficiencyFloor < 0 || s.Scenario.SafeEfficiencyFloor > 1 {
		errs = append(errs, fmt.Sprintf("simulation.scenario.safe_efficiency_floor %g outside [0,1]", s.Scenario.SafeEfficiencyFloor))
	}
	switch c.Scorer.Kind {
	case "logistic", "http", "none":
	default:
		errs = append(errs, fmt.Sprintf("unknown scorer.kind %q", c.Scorer.Kind))
	}
	if c.Scorer.Kind == "http" && c.Scorer.URL == "" {
		errs = append(errs, "scorer.url is required when scorer.kind is http")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, "cache.max_entries must be >= 0")
	}

	switch mode {
	case "", "cli":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
