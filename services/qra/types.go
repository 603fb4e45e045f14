// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package qra implements the quantitative risk analysis engine for the
// Cornerline platform.
//
// # Description
//
// Given a project's risk/opportunity register (each item characterized by a
// three-point cost or schedule estimate and an occurrence probability), the
// engine computes a probabilistic exposure distribution via Monte Carlo
// simulation, derives percentile bands (P10/P50/P90), and ranks which
// individual risks drive the tail outcome.
//
// The engine is a pure function of (risks, iterations, seed): no entity is
// mutated after construction, nothing is persisted, and no network calls are
// made. Persistence of results belongs to the SnapshotWriter collaborator;
// the distribution model assigned to each risk arrives already resolved by
// an external advisory process.
//
// # Thread Safety
//
// An Engine is safe for concurrent use. Each Run operates on its own inputs
// and derived RNG state; multiple simulations may run concurrently with no
// locking.
package qra

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Register Entry Types
// =============================================================================

// RiskKind distinguishes threats (cost exposure) from opportunities (credit).
type RiskKind string

const (
	// KindThreat is a risk that adds exposure when it occurs.
	KindThreat RiskKind = "threat"

	// KindOpportunity is a potential credit. Opportunities contribute
	// negative amounts so downstream arithmetic is uniform addition.
	KindOpportunity RiskKind = "opportunity"
)

// DistributionModel identifies the parametric shape used to sample a risk's
// magnitude when it occurs. The model is assigned per risk by an external
// selector before the register reaches the engine; an unknown value is
// rejected, never silently defaulted.
type DistributionModel string

const (
	ModelTriangular DistributionModel = "triangular"
	ModelPERT       DistributionModel = "pert"
	ModelNormal     DistributionModel = "normal"
	ModelUniform    DistributionModel = "uniform"
)

// KnownModels lists every distribution model the sampler implements.
var KnownModels = []DistributionModel{ModelTriangular, ModelPERT, ModelNormal, ModelUniform}

// known reports whether m names an implemented distribution model.
func (m DistributionModel) known() bool {
	switch m {
	case ModelTriangular, ModelPERT, ModelNormal, ModelUniform:
		return true
	}
	return false
}

// RiskSpec is one canonicalized register entry.
//
// # Fields
//
//   - ID: Register identifier, unique within a request. Used for error
//     reporting and sensitivity ranking.
//   - Kind: "threat" or "opportunity".
//   - P10/P50/P90: The three-point estimate. After normalization these are
//     signed anchors in ascending order: threats carry positive values,
//     opportunities negative ones (see Normalizer).
//   - Probability: Likelihood (0-1) that the risk materializes at all in a
//     given trial (Bernoulli-gated).
//   - Model: Distribution shape for the magnitude, already resolved.
//
// # Validation
//
// Uses go-playground/validator tags for the structural checks; ordering,
// finiteness and model membership are enforced by the Normalizer because
// they cannot be expressed as tags.
type RiskSpec struct {
	ID          string            `json:"id" yaml:"id" validate:"required"`
	Kind        RiskKind          `json:"kind" yaml:"kind" validate:"required,oneof=threat opportunity"`
	P10         float64           `json:"p10" yaml:"p10"`
	P50         float64           `json:"p50" yaml:"p50"`
	P90         float64           `json:"p90" yaml:"p90"`
	Probability float64           `json:"probability" yaml:"probability" validate:"gte=0,lte=1"`
	Model       DistributionModel `json:"distribution_model" yaml:"distribution_model" validate:"required"`
}

// degenerate reports whether the three anchors collapse to a single point.
// Every model must return that constant deterministically in this case.
func (r *RiskSpec) degenerate() bool {
	return r.P10 == r.P50 && r.P50 == r.P90
}

// =============================================================================
// Request / Result Types
// =============================================================================

// SimulationRequest describes one simulation run.
//
// # Fields
//
//   - Risks: Non-empty canonical register. The whole request is rejected if
//     any entry fails validation; a silently dropped risk would understate
//     exposure without visible signal.
//   - Iterations: Trial count, positive. Typical production range is
//     1,000-100,000.
//   - TargetPercentile: Percentile (0-100) reported as TargetValue, e.g. 80
//     for a P80 contingency figure.
//   - Seed: Optional explicit seed. Two runs with identical inputs and the
//     same seed produce identical results. When nil, a fresh seed is drawn
//     and recorded in the result metadata so the run can be replayed.
type SimulationRequest struct {
	Risks            []RiskSpec `json:"risks" validate:"required,min=1,dive"`
	Iterations       int        `json:"iterations" validate:"required,gt=0"`
	TargetPercentile float64    `json:"target_percentile" validate:"gte=0,lte=100"`
	Seed             *int64     `json:"seed,omitempty"`
}

// requestValidate is the shared validator instance for request structs.
// validator.Validate is safe for concurrent use.
var requestValidate = validator.New()

// Validate runs the tag-level checks on the request. The Normalizer layers
// the domain checks (finiteness, ordering, model membership) on top and
// translates failures into structured ValidationError values.
func (r *SimulationRequest) Validate() error {
	return requestValidate.Struct(r)
}

// PercentileEntry is one row of the result's percentile table.
type PercentileEntry struct {
	Percentile float64 `json:"percentile"`
	Value      float64 `json:"value"`
}

// HistogramBucket is one bar of the exposure distribution. Buckets are
// contiguous, ordered ascending, and cover [min(totals), max(totals)].
type HistogramBucket struct {
	BucketStart float64 `json:"bucket_start"`
	BucketEnd   float64 `json:"bucket_end"`
	Count       int     `json:"count"`
}

// RiskContribution is one row of the sensitivity ranking: the variance the
// risk removes from the total distribution when excluded (leave-one-out).
type RiskContribution struct {
	RiskID       string  `json:"risk_id"`
	Contribution float64 `json:"contribution"`
}

// RunMetadata records how a result was produced, for audit reproducibility.
//
// # Fields
//
//   - RunID: Server-generated UUID v4 identifying this run.
//   - Seed: The seed actually used. When SeedGenerated is true the caller
//     supplied none and this value was drawn fresh; replaying with it
//     reproduces the run exactly.
//   - Iterations/Risks/Workers: Effective run parameters.
//   - StartedAt/Duration: Wall-clock accounting.
type RunMetadata struct {
	RunID         string        `json:"run_id"`
	Seed          int64         `json:"seed"`
	SeedGenerated bool          `json:"seed_generated"`
	Iterations    int           `json:"iterations"`
	Risks         int           `json:"risks"`
	Workers       int           `json:"workers"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}

// SimulationResult is the full output of one run. It is the only entity
// that crosses the core boundary; the external SnapshotWriter persists it
// together with project/revision identifiers.
//
// # Fields
//
//   - Base: Deterministic baseline, the signed sum of canonical p50 values.
//   - P10/P50/P90: Percentiles of the simulated total distribution.
//   - Mean/StdDev: Sample mean and Bessel-corrected standard deviation.
//   - TargetPercentile/TargetValue: The requested percentile and its value.
//   - Spread: P90 - P10 of the simulated totals, the band a risk dashboard
//     displays as the exposure range.
//   - MeanVsBase: Mean - Base, positive when simulated exposure exceeds the
//     deterministic estimate.
//   - PercentileTable: Fixed percentile set, monotonically non-decreasing.
//   - Distribution: Histogram of the totals.
//   - Sensitivity: Leave-one-out ranking, descending by contribution.
type SimulationResult struct {
	Base             float64            `json:"base"`
	P10              float64            `json:"p10"`
	P50              float64            `json:"p50"`
	P90              float64            `json:"p90"`
	Mean             float64            `json:"mean"`
	StdDev           float64            `json:"std_dev"`
	TargetPercentile float64            `json:"target_percentile"`
	TargetValue      float64            `json:"target_value"`
	Spread           float64            `json:"spread"`
	MeanVsBase       float64            `json:"mean_vs_base"`
	PercentileTable  []PercentileEntry  `json:"percentile_table"`
	Distribution     []HistogramBucket  `json:"distribution"`
	Sensitivity      []RiskContribution `json:"sensitivity_analysis"`
	Metadata         RunMetadata        `json:"metadata"`
}

// TrialData is the raw output of the trial loop: the per-trial totals and
// the per-risk contribution matrix the aggregator and sensitivity analyzer
// consume. Contributions[trial][riskIndex] is zero when the risk did not
// occur in that trial.
type TrialData struct {
	Totals        []float64
	Contributions [][]float64
}
