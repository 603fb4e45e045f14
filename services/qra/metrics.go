// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "cornerline"

const qraSubsystem = "qra"

// Metrics holds all Prometheus metrics for simulation runs.
//
// # Fields
//
//   - RunsTotal: Counter of simulation runs by status
//   - RunDurationSeconds: Histogram of run duration by status
//   - TrialsTotal: Counter of completed trials
//   - ActiveRuns: Gauge of currently executing runs
//
// # Thread Safety
//
// All operations are thread-safe via Prometheus's internal locking.
type Metrics struct {
	// RunsTotal counts simulation runs.
	// Labels: status (success, rejected, cancelled, failed)
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds measures end-to-end run duration.
	// Labels: status (success, rejected, cancelled, failed)
	RunDurationSeconds *prometheus.HistogramVec

	// TrialsTotal counts Monte Carlo trials across all runs.
	TrialsTotal prometheus.Counter

	// ActiveRuns tracks currently executing runs.
	ActiveRuns prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// EngineMetrics returns the process-wide metrics instance, registering the
// instruments on the default Prometheus registry on first call.
//
// # Outputs
//
//   - *Metrics: The shared metrics instance.
func EngineMetrics() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: qraSubsystem,
					Name:      "runs_total",
					Help:      "Total number of simulation runs by status",
				},
				[]string{"status"},
			),
			RunDurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: qraSubsystem,
					Name:      "run_duration_seconds",
					Help:      "End-to-end simulation run duration in seconds",
					Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
				},
				[]string{"status"},
			),
			TrialsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: qraSubsystem,
					Name:      "trials_total",
					Help:      "Total number of Monte Carlo trials executed",
				},
			),
			ActiveRuns: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: qraSubsystem,
					Name:      "active_runs",
					Help:      "Number of currently executing simulation runs",
				},
			),
		}
	})
	return defaultMetrics
}
