package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.065, cfg.Simulation.RiskThreshold, 1e-12)
	assert.Equal(t, "p75", cfg.Simulation.DefaultBenchmark)
	assert.Equal(t, "below_threshold", cfg.Simulation.SavingsRule)
	assert.InDelta(t, 50000, cfg.Simulation.Scenario.BaselineCost, 1e-9)
	assert.InDelta(t, 50000, cfg.Simulation.Scenario.BasePrice, 1e-9)
	assert.InDelta(t, 0.6, cfg.Simulation.Scenario.SafeEfficiencyFloor, 1e-12)
	assert.Equal(t, "data/contracts.csv", cfg.Ledger.Path)
	assert.Empty(t, cfg.Ledger.Contributions)
	assert.Equal(t, "logistic", cfg.Scorer.Kind)
	assert.Equal(t, "models/risk_model.yaml", cfg.Scorer.ModelPath)
	assert.Equal(t, 30, cfg.Scorer.TimeoutSecs)
	assert.Equal(t, 500, cfg.Scorer.BatchSize)
	assert.Equal(t, 3, cfg.Scorer.MaxAttempts)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "procurement-sim.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 64, cfg.Cache.MaxEntries)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
simulation:
  risk_threshold: 0.1
  scenario:
    baseline_cost: 75000
ledger:
  path: contracts.xlsx
  sheet: Contracts
  contributions: shap_values.csv
store:
  driver: postgres
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.1, cfg.Simulation.RiskThreshold, 1e-12)
	assert.InDelta(t, 75000, cfg.Simulation.Scenario.BaselineCost, 1e-9)
	assert.Equal(t, "contracts.xlsx", cfg.Ledger.Path)
	assert.Equal(t, "Contracts", cfg.Ledger.Sheet)
	assert.Equal(t, "shap_values.csv", cfg.Ledger.Contributions)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.6, cfg.Simulation.Scenario.SafeEfficiencyFloor, 1e-12)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
simulation:
  risk_threshold: 0.2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("PROCSIM_STORE_DRIVER", "postgres")
	t.Setenv("PROCSIM_SIMULATION_RISK_THRESHOLD", "0.05")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.InDelta(t, 0.05, cfg.Simulation.RiskThreshold, 1e-12)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("simulation: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.Simulation.RiskThreshold = 0.065
	cfg.Simulation.DefaultBenchmark = "p75"
	cfg.Simulation.SavingsRule = "below_threshold"
	cfg.Simulation.Scenario = ScenarioConfig{BaselineCost: 50000, BasePrice: 50000, SafeEfficiencyFloor: 0.6}
	cfg.Scorer.Kind = "logistic"
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		mode    string
		wantErr string
	}{
		{"valid", func(*Config) {}, "", ""},
		{"threshold above one", func(c *Config) { c.Simulation.RiskThreshold = 1.5 }, "", "risk_threshold"},
		{"unknown benchmark", func(c *Config) { c.Simulation.DefaultBenchmark = "p100" }, "", "default_benchmark"},
		{"unknown rule", func(c *Config) { c.Simulation.SavingsRule = "never" }, "", "savings_rule"},
		{"zero baseline", func(c *Config) { c.Simulation.Scenario.BaselineCost = 0 }, "", "baseline_cost"},
		{"negative base price", func(c *Config) { c.Simulation.Scenario.BasePrice = -1 }, "", "base_price"},
		{"floor above one", func(c *Config) { c.Simulation.Scenario.SafeEfficiencyFloor = 2 }, "", "safe_efficiency_floor"},
		{"unknown scorer", func(c *Config) { c.Scorer.Kind = "forest" }, "", "scorer.kind"},
		{"http scorer without url", func(c *Config) { c.Scorer.Kind = "http" }, "", "scorer.url"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "", "store.driver"},
		{"bad port when serving", func(c *Config) { c.Server.Port = 0 }, "serve", "server.port"},
		{"bad port ignored by cli", func(c *Config) { c.Server.Port = 0 }, "cli", ""},
		{"unknown mode", func(*Config) {}, "batch", "unknown mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Simulation.RiskThreshold = -1
	cfg.Store.Driver = ""
	err := cfg.Validate("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk_threshold")
	assert.Contains(t, err.Error(), "store.driver")
}
