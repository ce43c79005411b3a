// Package config provides the user-level settings of the titan CLI: where
// runs are written, how many run in parallel and how verbose logging is.
// It supports loading from a YAML file and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// TitanConfig contains all titan CLI settings. Simulation parameters are not
// part of it; they come from params files.
type TitanConfig struct {
	// Output contains settings for run output.
	Output OutputConfig `json:"output" yaml:"output"`

	// Runner contains settings for executing runs.
	Runner RunnerConfig `json:"runner" yaml:"runner"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig configures titan's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the event log at <run dir>/events.jsonl.
	// "trace" additionally logs per-agent detail.
	Level string `json:"level" yaml:"level"`
}

// OutputConfig configures where runs are written.
type OutputConfig struct {
	// Dir is the default output directory when --outdir is not given.
	Dir string `json:"dir" yaml:"dir"`

	// CompressPopulations writes saved populations as tar.gz archives.
	CompressPopulations bool `json:"compress_populations" yaml:"compress_populations"`
}

// RunnerConfig configures run execution.
type RunnerConfig struct {
	// Parallel is the maximum number of runs executed at once.
	Parallel int `json:"parallel" yaml:"parallel"`
}

// Default returns a TitanConfig with sensible defaults.
func Default() *TitanConfig {
	return &TitanConfig{
		Output: OutputConfig{
			Dir:                 "results",
			CompressPopulations: true,
		},
		Runner: RunnerConfig{
			Parallel: runtime.NumCPU(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.titan/config.yaml -> environment variables
func Load() (*TitanConfig, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".titan", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*TitanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.Output.Dir = os.ExpandEnv(config.Output.Dir)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *TitanConfig) Validate() error {
	if c.Runner.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Runner.Parallel)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *TitanConfig) {
	if v := os.Getenv("TITAN_OUTDIR"); v != "" {
		config.Output.Dir = v
	}

	if v := os.Getenv("TITAN_COMPRESS_POPULATIONS"); v != "" {
		config.Output.CompressPopulations = v == "true" || v == "1"
	}

	if v := os.Getenv("TITAN_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Runner.Parallel = n
		}
	}

	if v := os.Getenv("TITAN_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
