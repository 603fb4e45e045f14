// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc receives trial progress between batches. It is called from
// worker goroutines and must be safe for concurrent use; done is the total
// completed across all workers.
type ProgressFunc func(done, total int)

// Engine orchestrates Monte Carlo simulation runs: normalization, the
// sharded trial loop, aggregation and sensitivity ranking.
//
// The trial loop is embarrassingly parallel and is sharded across a worker
// pool; because every draw comes from a counter-based stream (see rng.go),
// results are bit-identical for any worker count. Cancellation is checked
// cooperatively between trial batches.
//
// Thread Safety: Safe for concurrent use after construction.
type Engine struct {
	config     EngineConfig
	normalizer *Normalizer
	logger     *slog.Logger
	tracer     *SimulationTracer
	metrics    *Metrics
	progress   ProgressFunc
}

// NewEngine creates an engine with the given configuration.
//
// # Inputs
//
//   - config: Engine configuration. Zero-valued fields fall back to the
//     DefaultEngineConfig values, so EngineConfig{} is safe to run with.
//
// # Outputs
//
//   - *Engine: Ready to use. Attach a logger or progress callback with the
//     With* builders.
func NewEngine(config EngineConfig) *Engine {
	config = config.withDefaults()
	e := &Engine{
		config:     config,
		normalizer: NewNormalizer(),
		logger:     slog.Default(),
		tracer:     NewSimulationTracer(nil, config.Observability),
	}
	if config.Observability.MetricsEnabled {
		e.metrics = EngineMetrics()
	}
	return e
}

// WithLogger sets the structured logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	if logger != nil {
		e.logger = logger
		e.tracer = NewSimulationTracer(logger, e.config.Observability)
	}
	return e
}

// WithProgress sets a progress callback invoked between trial batches.
// Progress never flows through process-global state.
func (e *Engine) WithProgress(fn ProgressFunc) *Engine {
	e.progress = fn
	return e
}

// Run executes one simulation request end to end.
//
// # Description
//
// Validates and canonicalizes the register (whole-request rejection),
// resolves the seed, runs the trial loop, and aggregates totals into the
// SimulationResult. Given an explicit seed, two runs with identical inputs
// produce identical results; without one, a fresh seed is drawn and
// recorded in the result metadata.
//
// # Inputs
//
//   - ctx: Cancellation is honored between trial batches; a cancelled run
//     returns ctx's error and no partial result.
//   - req: The simulation request.
//
// # Outputs
//
//   - *SimulationResult: Nil on any error; there is no partial-result mode.
//   - error: ValidationErrors, UnsupportedDistributionError,
//     NumericInstabilityError, or the context error.
func (e *Engine) Run(ctx context.Context, req SimulationRequest) (*SimulationResult, error) {
	started := time.Now()

	if err := e.validateRequest(&req); err != nil {
		e.observeRun("rejected", started, 0)
		return nil, err
	}

	risks, err := e.normalizer.Normalize(req.Risks)
	if err != nil {
		e.observeRun("rejected", started, 0)
		return nil, err
	}

	seed := freshSeed()
	seedGenerated := true
	if req.Seed != nil {
		seed = *req.Seed
		seedGenerated = false
	}

	ctx, span := e.tracer.StartRun(ctx, &req, seed)
	defer span.End()

	if e.metrics != nil {
		e.metrics.ActiveRuns.Inc()
		defer e.metrics.ActiveRuns.Dec()
	}

	data, err := e.RunTrials(ctx, risks, req.Iterations, seed)
	if err != nil {
		e.tracer.EndRunError(span, err)
		status := "failed"
		if errors.Is(err, ErrRunCancelled) {
			status = "cancelled"
		}
		e.observeRun(status, started, 0)
		return nil, err
	}

	stats := summarize(data.Totals, req.TargetPercentile, e.config.PercentileTable, e.config.HistogramBuckets)

	riskIDs := make([]string, len(risks))
	var base float64
	for i := range risks {
		riskIDs[i] = risks[i].ID
		base += risks[i].P50
	}

	result := &SimulationResult{
		Base:             base,
		P10:              stats.P10,
		P50:              stats.P50,
		P90:              stats.P90,
		Mean:             stats.Mean,
		StdDev:           stats.StdDev,
		TargetPercentile: req.TargetPercentile,
		TargetValue:      stats.TargetValue,
		Spread:           stats.P90 - stats.P10,
		MeanVsBase:       stats.Mean - base,
		PercentileTable:  stats.PercentileTable,
		Distribution:     stats.Distribution,
		Sensitivity:      rankContributions(data, riskIDs),
		Metadata: RunMetadata{
			RunID:         uuid.NewString(),
			Seed:          seed,
			SeedGenerated: seedGenerated,
			Iterations:    req.Iterations,
			Risks:         len(risks),
			Workers:       e.config.effectiveWorkers(),
			StartedAt:     started,
			Duration:      time.Since(started),
		},
	}

	e.tracer.EndRunOK(span, result)
	e.observeRun("success", started, req.Iterations)
	e.logger.Info("simulation complete",
		slog.String("run_id", result.Metadata.RunID),
		slog.Int("iterations", req.Iterations),
		slog.Int("risks", len(risks)),
		slog.Int64("seed", seed),
		slog.Float64("p50", result.P50),
		slog.Float64("target_value", result.TargetValue),
		slog.Duration("duration", result.Metadata.Duration))

	return result, nil
}

// RunTrials executes the raw trial loop over canonical risks.
//
// For each of iterations trials, each risk is independently gated by its
// occurrence probability; when it occurs its magnitude is sampled and
// recorded in Contributions[trial][riskIndex], otherwise zero. Risks are
// independent across trials and across each other; no correlation model is
// applied. Trials are sharded across the configured worker count and
// results are invariant to shard count and ordering.
//
// Exported for callers that need the raw arrays (e.g. custom aggregation);
// most callers want Run. iterations must be positive; anything else is
// rejected with a ValidationError before any work starts.
func (e *Engine) RunTrials(ctx context.Context, risks []RiskSpec, iterations int, seed int64) (*TrialData, error) {
	if iterations < 1 {
		return nil, &ValidationError{Field: "iterations", Reason: "must be a positive integer"}
	}
	mseed := uint64(seed)

	keys := make([]uint64, len(risks))
	for i := range risks {
		keys[i] = riskStreamKey(risks[i].ID)
	}

	data := &TrialData{
		Totals:        make([]float64, iterations),
		Contributions: make([][]float64, iterations),
	}
	cells := make([]float64, iterations*len(risks))
	for t := 0; t < iterations; t++ {
		data.Contributions[t] = cells[t*len(risks) : (t+1)*len(risks)]
	}

	workers := e.config.effectiveWorkers()
	if workers > iterations {
		workers = iterations
	}
	batch := e.config.TrialBatchSize

	var done atomic.Int64
	g, ctx := errgroup.WithContext(ctx)

	// Static sharding: worker w owns the contiguous trial range
	// [bounds[w], bounds[w+1]). Each cell derives its own streams, so the
	// partition has no effect on the drawn values.
	bounds := shardBounds(iterations, workers)
	for w := 0; w < workers; w++ {
		lo, hi := bounds[w], bounds[w+1]
		g.Go(func() error {
			for start := lo; start < hi; start += batch {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("%w: %w", ErrRunCancelled, err)
				}
				end := start + batch
				if end > hi {
					end = hi
				}
				for t := start; t < end; t++ {
					if err := e.runTrial(data, risks, keys, mseed, t); err != nil {
						return err
					}
				}
				if e.progress != nil {
					e.progress(int(done.Add(int64(end-start))), iterations)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

// runTrial fills one row of the contribution matrix and its total.
func (e *Engine) runTrial(data *TrialData, risks []RiskSpec, keys []uint64, seed uint64, trial int) error {
	row := data.Contributions[trial]
	var total float64
	for j := range risks {
		spec := &risks[j]
		if !occurs(spec.Probability, occurrenceStream(seed, trial, keys[j])) {
			continue
		}
		v, err := sampleMagnitude(spec, magnitudeStream(seed, trial, keys[j]))
		if err != nil {
			return err
		}
		row[j] = v
		total += v
	}
	data.Totals[trial] = total
	return nil
}

// validateRequest applies the request-level checks that precede register
// normalization.
func (e *Engine) validateRequest(req *SimulationRequest) error {
	var errs ValidationErrors
	if len(req.Risks) == 0 {
		errs = append(errs, &ValidationError{Field: "risks", Reason: ErrEmptyRegister.Error()})
	}
	if req.Iterations <= 0 {
		errs = append(errs, &ValidationError{Field: "iterations", Reason: "must be a positive integer"})
	} else if req.Iterations > e.config.MaxIterations {
		errs = append(errs, &ValidationError{
			Field:  "iterations",
			Reason: fmt.Sprintf("exceeds configured maximum of %d", e.config.MaxIterations),
		})
	}
	if req.TargetPercentile < 0 || req.TargetPercentile > 100 {
		errs = append(errs, &ValidationError{Field: "target_percentile", Reason: "must be between 0 and 100"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// observeRun records run metrics when metrics are enabled.
func (e *Engine) observeRun(status string, started time.Time, iterations int) {
	if e.metrics == nil {
		return
	}
	e.metrics.RunsTotal.WithLabelValues(status).Inc()
	e.metrics.RunDurationSeconds.WithLabelValues(status).Observe(time.Since(started).Seconds())
	if iterations > 0 {
		e.metrics.TrialsTotal.Add(float64(iterations))
	}
}

// shardBounds splits n trials into worker contiguous ranges. The extra
// trials from an uneven division go to the leading shards.
func shardBounds(n, workers int) []int {
	bounds := make([]int, workers+1)
	base := n / workers
	rem := n % workers
	for w := 0; w < workers; w++ {
		size := base
		if w < rem {
			size++
		}
		bounds[w+1] = bounds[w] + size
	}
	return bounds
}
