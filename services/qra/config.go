// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EngineConfig contains all engine tuning knobs.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after the
// engine is constructed.
type EngineConfig struct {
	// Workers is the number of goroutines sharding the trial loop.
	// 0 means runtime.NumCPU(). Results are identical for any value.
	Workers int `json:"workers" yaml:"workers"`

	// TrialBatchSize is how many trials a worker runs between cooperative
	// cancellation checks. Checking per trial would dominate runtime.
	TrialBatchSize int `json:"trial_batch_size" yaml:"trial_batch_size"`

	// MaxIterations rejects runaway requests before any allocation.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// HistogramBuckets is the target bucket count for the result
	// distribution; the effective count shifts slightly so bucket width
	// lands on a rounded number relative to the data range.
	HistogramBuckets int `json:"histogram_buckets" yaml:"histogram_buckets"`

	// PercentileTable is the fixed percentile set reported on every result.
	PercentileTable []float64 `json:"percentile_table" yaml:"percentile_table"`

	// Observability contains tracing/metrics settings.
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// ObservabilityConfig contains observability settings.
type ObservabilityConfig struct {
	TracingEnabled bool   `json:"tracing_enabled" yaml:"tracing_enabled"`
	MetricsEnabled bool   `json:"metrics_enabled" yaml:"metrics_enabled"`
	ServiceName    string `json:"service_name" yaml:"service_name"`
}

// DefaultEngineConfig returns the default configuration.
//
// # Outputs
//
//   - EngineConfig: Defaults sized for interactive platform requests
//     (tens of thousands of trials over registers of a few hundred risks).
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:          0, // NumCPU
		TrialBatchSize:   4096,
		MaxIterations:    1_000_000,
		HistogramBuckets: 30,
		PercentileTable:  []float64{5, 10, 25, 50, 75, 90, 95},
		Observability: ObservabilityConfig{
			TracingEnabled: true,
			MetricsEnabled: true,
			ServiceName:    "cornerline-qra",
		},
	}
}

// LoadEngineConfig loads configuration with priority: env > file > defaults.
//
// # Inputs
//
//   - configPath: Path to a YAML or JSON config file (optional, can be
//     empty; a missing file is not an error).
//
// # Outputs
//
//   - EngineConfig: Merged configuration.
//   - error: Non-nil if the file exists but is invalid, or the merged
//     configuration fails validation.
func LoadEngineConfig(configPath string) (EngineConfig, error) {
	config := DefaultEngineConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	loadConfigFromEnv(&config)

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func loadConfigFile(path string, config *EngineConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadConfigFromEnv(config *EngineConfig) {
	if v := os.Getenv("QRA_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Workers = i
		}
	}
	if v := os.Getenv("QRA_TRIAL_BATCH_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.TrialBatchSize = i
		}
	}
	if v := os.Getenv("QRA_MAX_ITERATIONS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.MaxIterations = i
		}
	}
	if v := os.Getenv("QRA_HISTOGRAM_BUCKETS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.HistogramBuckets = i
		}
	}
	if v := os.Getenv("QRA_TRACING_ENABLED"); v != "" {
		config.Observability.TracingEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("QRA_METRICS_ENABLED"); v != "" {
		config.Observability.MetricsEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("QRA_SERVICE_NAME"); v != "" {
		config.Observability.ServiceName = v
	}
}

// Validate checks that the configuration is valid.
//
// # Outputs
//
//   - error: Non-nil if configuration is invalid.
func (c EngineConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if c.TrialBatchSize < 1 {
		return fmt.Errorf("trial_batch_size must be >= 1")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1")
	}
	if c.HistogramBuckets < 1 {
		return fmt.Errorf("histogram_buckets must be >= 1")
	}
	if len(c.PercentileTable) == 0 {
		return fmt.Errorf("percentile_table must not be empty")
	}
	if !slices.IsSorted(c.PercentileTable) {
		return fmt.Errorf("percentile_table must be sorted ascending")
	}
	for _, p := range c.PercentileTable {
		if p < 0 || p > 100 {
			return fmt.Errorf("percentile_table entries must be between 0 and 100, got %g", p)
		}
	}
	return nil
}

// effectiveWorkers resolves the 0 = NumCPU convention.
func (c EngineConfig) effectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// withDefaults fills zero-valued fields from DefaultEngineConfig so a
// partially specified config is safe to run. Workers keeps its 0 = NumCPU
// convention and is resolved by effectiveWorkers instead.
func (c EngineConfig) withDefaults() EngineConfig {
	def := DefaultEngineConfig()
	if c.TrialBatchSize == 0 {
		c.TrialBatchSize = def.TrialBatchSize
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.HistogramBuckets == 0 {
		c.HistogramBuckets = def.HistogramBuckets
	}
	if len(c.PercentileTable) == 0 {
		c.PercentileTable = def.PercentileTable
	}
	return c
}
