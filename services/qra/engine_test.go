// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngineConfig() EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.Observability.TracingEnabled = false
	cfg.Observability.MetricsEnabled = false
	return cfg
}

func abRegister() []RiskSpec {
	return []RiskSpec{
		{
			ID: "A", Kind: KindThreat,
			P10: 10000, P50: 20000, P90: 60000,
			Probability: 0.5, Model: ModelPERT,
		},
		{
			ID: "B", Kind: KindThreat,
			P10: 1000, P50: 5000, P90: 9000,
			Probability: 0.5, Model: ModelTriangular,
		},
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestEngineRun_EndToEnd(t *testing.T) {
	engine := NewEngine(testEngineConfig())

	result, err := engine.Run(context.Background(), SimulationRequest{
		Risks:            abRegister(),
		Iterations:       50000,
		TargetPercentile: 80,
		Seed:             int64Ptr(1),
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 25000.0, result.Base, "base is the sum of p50s")
	assert.Equal(t, int64(1), result.Metadata.Seed)
	assert.False(t, result.Metadata.SeedGenerated)
	assert.Equal(t, 50000, result.Metadata.Iterations)
	assert.Equal(t, 2, result.Metadata.Risks)
	assert.NotEmpty(t, result.Metadata.RunID)

	// Expected mean: 0.5*25000 (PERT mean of A) + 0.5*5000 (triangular
	// mean of B) = 15000, within Monte Carlo noise at 50k trials.
	assert.InDelta(t, 15000, result.Mean, 500)

	assert.LessOrEqual(t, result.P10, result.P50)
	assert.LessOrEqual(t, result.P50, result.P90)
	assert.LessOrEqual(t, result.P50, result.TargetValue, "P80 cannot be below P50")
	assert.Equal(t, result.P90-result.P10, result.Spread)
	assert.Equal(t, result.Mean-result.Base, result.MeanVsBase)

	require.Len(t, result.Sensitivity, 2)
	assert.Equal(t, "A", result.Sensitivity[0].RiskID, "the wide risk drives the variance")
	assert.Greater(t, result.Sensitivity[0].Contribution, result.Sensitivity[1].Contribution)

	total := 0
	for _, bucket := range result.Distribution {
		total += bucket.Count
	}
	assert.Equal(t, 50000, total, "histogram must count every trial")
}

func TestEngineRun_TriangularNormalScenario(t *testing.T) {
	engine := NewEngine(testEngineConfig())

	result, err := engine.Run(context.Background(), SimulationRequest{
		Risks: []RiskSpec{
			{
				ID: "A", Kind: KindThreat,
				P10: 10000, P50: 20000, P90: 50000,
				Probability: 0.5, Model: ModelTriangular,
			},
			{
				ID: "B", Kind: KindThreat,
				P10: 0, P50: 5000, P90: 15000,
				Probability: 0.9, Model: ModelNormal,
			},
		},
		Iterations:       50000,
		TargetPercentile: 80,
		Seed:             int64Ptr(1),
	})
	require.NoError(t, err)

	assert.Equal(t, 25000.0, result.Base)

	// The simulated median sits well below base (A occurs only half the
	// time) but above the probability-weighted p50 sum of ~14,500, and far
	// below the combined p90 of 65,000.
	assert.Greater(t, result.P50, 0.0)
	assert.Less(t, result.P50, 65000.0)

	require.Len(t, result.Sensitivity, 2)
	assert.Equal(t, "A", result.Sensitivity[0].RiskID,
		"the wide triangular risk dominates the spread")
}

func TestEngineRun_DeterministicWithSeed(t *testing.T) {
	engine := NewEngine(testEngineConfig())
	req := SimulationRequest{
		Risks:            abRegister(),
		Iterations:       20000,
		TargetPercentile: 80,
		Seed:             int64Ptr(42),
	}

	first, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.P10, second.P10)
	assert.Equal(t, first.P50, second.P50)
	assert.Equal(t, first.P90, second.P90)
	assert.Equal(t, first.Mean, second.Mean)
	assert.Equal(t, first.StdDev, second.StdDev)
	assert.Equal(t, first.TargetValue, second.TargetValue)
	assert.Equal(t, first.PercentileTable, second.PercentileTable)
	assert.Equal(t, first.Distribution, second.Distribution)
	assert.Equal(t, first.Sensitivity, second.Sensitivity)
}

func TestEngineRun_WorkerCountInvariant(t *testing.T) {
	req := SimulationRequest{
		Risks:            abRegister(),
		Iterations:       20000,
		TargetPercentile: 80,
		Seed:             int64Ptr(7),
	}

	serialCfg := testEngineConfig()
	serialCfg.Workers = 1
	parallelCfg := testEngineConfig()
	parallelCfg.Workers = 4

	serial, err := NewEngine(serialCfg).Run(context.Background(), req)
	require.NoError(t, err)
	parallel, err := NewEngine(parallelCfg).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, serial.Mean, parallel.Mean, "worker count must not change results")
	assert.Equal(t, serial.StdDev, parallel.StdDev)
	assert.Equal(t, serial.PercentileTable, parallel.PercentileTable)
	assert.Equal(t, serial.Sensitivity, parallel.Sensitivity)
}

func TestRunTrials_BitIdenticalAcrossWorkers(t *testing.T) {
	risks, err := NewNormalizer().Normalize(abRegister())
	require.NoError(t, err)

	serialCfg := testEngineConfig()
	serialCfg.Workers = 1
	parallelCfg := testEngineConfig()
	parallelCfg.Workers = 8

	serial, err := NewEngine(serialCfg).RunTrials(context.Background(), risks, 5000, 99)
	require.NoError(t, err)
	parallel, err := NewEngine(parallelCfg).RunTrials(context.Background(), risks, 5000, 99)
	require.NoError(t, err)

	assert.Equal(t, serial.Totals, parallel.Totals)
}

func TestEngineRun_ZeroProbabilityRiskIsInert(t *testing.T) {
	// A never-occurring risk draws from its own streams only, so removing
	// it leaves every other risk's draws untouched.
	withInert := append(abRegister(), RiskSpec{
		ID: "Z", Kind: KindThreat,
		P10: 1e6, P50: 2e6, P90: 3e6,
		Probability: 0, Model: ModelNormal,
	})

	engine := NewEngine(testEngineConfig())
	seed := int64Ptr(11)

	full, err := engine.Run(context.Background(), SimulationRequest{
		Risks: withInert, Iterations: 10000, TargetPercentile: 80, Seed: seed,
	})
	require.NoError(t, err)

	trimmed, err := engine.Run(context.Background(), SimulationRequest{
		Risks: abRegister(), Iterations: 10000, TargetPercentile: 80, Seed: seed,
	})
	require.NoError(t, err)

	assert.Equal(t, trimmed.Mean, full.Mean)
	assert.Equal(t, trimmed.StdDev, full.StdDev)
	assert.Equal(t, trimmed.PercentileTable, full.PercentileTable)

	// The inert risk still appears in the ranking, contributing nothing.
	require.Len(t, full.Sensitivity, 3)
	var inert *RiskContribution
	for i := range full.Sensitivity {
		if full.Sensitivity[i].RiskID == "Z" {
			inert = &full.Sensitivity[i]
		}
	}
	require.NotNil(t, inert)
	assert.Zero(t, inert.Contribution)
}

func TestEngineRun_DegenerateCertainRisk(t *testing.T) {
	engine := NewEngine(testEngineConfig())

	result, err := engine.Run(context.Background(), SimulationRequest{
		Risks: []RiskSpec{{
			ID: "FIXED", Kind: KindThreat,
			P10: 1000, P50: 1000, P90: 1000,
			Probability: 1, Model: ModelPERT,
		}},
		Iterations:       1000,
		TargetPercentile: 80,
		Seed:             int64Ptr(5),
	})
	require.NoError(t, err)

	assert.Equal(t, 1000.0, result.Mean)
	assert.Equal(t, 0.0, result.StdDev)
	assert.Equal(t, 1000.0, result.P10)
	assert.Equal(t, 1000.0, result.P90)
	assert.Equal(t, 1000.0, result.TargetValue)
}

func TestEngineRun_ValidationFailures(t *testing.T) {
	engine := NewEngine(testEngineConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		req  SimulationRequest
	}{
		{"empty register", SimulationRequest{Iterations: 100, TargetPercentile: 80}},
		{"zero iterations", SimulationRequest{Risks: abRegister(), Iterations: 0, TargetPercentile: 80}},
		{"negative iterations", SimulationRequest{Risks: abRegister(), Iterations: -5, TargetPercentile: 80}},
		{"percentile above 100", SimulationRequest{Risks: abRegister(), Iterations: 100, TargetPercentile: 101}},
		{"percentile below 0", SimulationRequest{Risks: abRegister(), Iterations: 100, TargetPercentile: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Run(ctx, tt.req)
			require.Error(t, err)
			assert.Nil(t, result, "no partial results on rejection")

			var verrs ValidationErrors
			assert.ErrorAs(t, err, &verrs)
		})
	}
}

func TestNewEngine_ZeroConfigIsRunnable(t *testing.T) {
	// A zero-valued config must not leave the trial loop with a zero batch
	// size (workers would never advance) or a zero iteration cap.
	engine := NewEngine(EngineConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := engine.Run(ctx, SimulationRequest{
		Risks: abRegister(), Iterations: 10, TargetPercentile: 80, Seed: int64Ptr(1),
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 10, result.Metadata.Iterations)
	assert.NotEmpty(t, result.PercentileTable)
	assert.NotEmpty(t, result.Distribution)
}

func TestRunTrials_RejectsNonPositiveIterations(t *testing.T) {
	risks, err := NewNormalizer().Normalize(abRegister())
	require.NoError(t, err)
	engine := NewEngine(testEngineConfig())

	for _, n := range []int{0, -1} {
		data, err := engine.RunTrials(context.Background(), risks, n, 1)
		require.Error(t, err, "iterations=%d", n)
		assert.Nil(t, data)

		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestEngineRun_SensitivityVarianceBounds(t *testing.T) {
	engine := NewEngine(testEngineConfig())

	result, err := engine.Run(context.Background(), SimulationRequest{
		Risks: abRegister(), Iterations: 20000, TargetPercentile: 80, Seed: int64Ptr(9),
	})
	require.NoError(t, err)

	variance := result.StdDev * result.StdDev
	var sum float64
	for _, rc := range result.Sensitivity {
		assert.LessOrEqual(t, rc.Contribution, variance,
			"risk %s cannot explain more than the total variance", rc.RiskID)
		sum += rc.Contribution
	}
	assert.GreaterOrEqual(t, sum, 0.0)
}

func TestEngineRun_EstimateConvergence(t *testing.T) {
	// The spread of the mean estimate across seeds must shrink as the
	// iteration count grows (standard error ~ 1/sqrt(n)).
	engine := NewEngine(testEngineConfig())

	meansAt := func(iterations int) []float64 {
		means := make([]float64, 0, 10)
		for seed := int64(1); seed <= 10; seed++ {
			result, err := engine.Run(context.Background(), SimulationRequest{
				Risks: abRegister(), Iterations: iterations, TargetPercentile: 80, Seed: &seed,
			})
			require.NoError(t, err)
			means = append(means, result.Mean)
		}
		return means
	}

	coarse := sampleVariance(meansAt(1000))
	fine := sampleVariance(meansAt(25000))
	assert.Less(t, fine, coarse, "estimate variance must shrink with more iterations")
}

func TestEngineRun_IterationCap(t *testing.T) {
	cfg := testEngineConfig()
	cfg.MaxIterations = 1000
	engine := NewEngine(cfg)

	_, err := engine.Run(context.Background(), SimulationRequest{
		Risks: abRegister(), Iterations: 1001, TargetPercentile: 80,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum")
}

func TestEngineRun_Cancellation(t *testing.T) {
	engine := NewEngine(testEngineConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.Run(ctx, SimulationRequest{
		Risks: abRegister(), Iterations: 500000, TargetPercentile: 80, Seed: int64Ptr(1),
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrRunCancelled)
}

func TestEngineRun_GeneratedSeedIsReplayable(t *testing.T) {
	engine := NewEngine(testEngineConfig())
	req := SimulationRequest{
		Risks: abRegister(), Iterations: 5000, TargetPercentile: 80,
	}

	first, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, first.Metadata.SeedGenerated)

	replaySeed := first.Metadata.Seed
	req.Seed = &replaySeed
	replay, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, replay.Metadata.SeedGenerated)
	assert.Equal(t, first.Mean, replay.Mean)
	assert.Equal(t, first.PercentileTable, replay.PercentileTable)
}

func TestEngineRun_ProgressCallback(t *testing.T) {
	var maxDone atomic.Int64
	var calls atomic.Int64

	engine := NewEngine(testEngineConfig()).WithProgress(func(done, total int) {
		calls.Add(1)
		for {
			prev := maxDone.Load()
			if int64(done) <= prev || maxDone.CompareAndSwap(prev, int64(done)) {
				break
			}
		}
		if total != 20000 {
			t.Errorf("total = %d, want 20000", total)
		}
	})

	_, err := engine.Run(context.Background(), SimulationRequest{
		Risks: abRegister(), Iterations: 20000, TargetPercentile: 80, Seed: int64Ptr(3),
	})
	require.NoError(t, err)

	assert.Positive(t, calls.Load())
	assert.Equal(t, int64(20000), maxDone.Load(), "final progress must report every trial done")
}

func TestEngineRun_ProbabilityChangeKeepsMagnitudes(t *testing.T) {
	// Raising an occurrence probability must not perturb magnitude draws:
	// with p=1 every trial includes the risk, and each trial's sampled
	// magnitude equals the one drawn in the p=0.5 run whenever that trial
	// occurred there.
	spec := RiskSpec{
		ID: "A", Kind: KindThreat,
		P10: 100, P50: 200, P90: 400,
		Probability: 0.5, Model: ModelTriangular,
	}
	risksHalf, err := NewNormalizer().Normalize([]RiskSpec{spec})
	require.NoError(t, err)
	spec.Probability = 1
	risksAlways, err := NewNormalizer().Normalize([]RiskSpec{spec})
	require.NoError(t, err)

	engine := NewEngine(testEngineConfig())
	const seed, n = 21, 2000

	half, err := engine.RunTrials(context.Background(), risksHalf, n, seed)
	require.NoError(t, err)
	always, err := engine.RunTrials(context.Background(), risksAlways, n, seed)
	require.NoError(t, err)

	occurred := 0
	for trial := 0; trial < n; trial++ {
		if v := half.Contributions[trial][0]; v != 0 {
			occurred++
			assert.Equal(t, always.Contributions[trial][0], v,
				"trial %d: magnitude changed when only probability changed", trial)
		}
	}
	assert.Greater(t, occurred, 0)
}

func BenchmarkEngineRun(b *testing.B) {
	risks := make([]RiskSpec, 50)
	for i := range risks {
		base := float64(1000 * (i + 1))
		risks[i] = RiskSpec{
			ID:          fmt.Sprintf("R-%03d", i),
			Kind:        KindThreat,
			P10:         base,
			P50:         base * 2,
			P90:         base * 5,
			Probability: 0.3,
			Model:       ModelPERT,
		}
	}
	engine := NewEngine(testEngineConfig())
	req := SimulationRequest{
		Risks: risks, Iterations: 10000, TargetPercentile: 80, Seed: int64Ptr(1),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Run(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}
