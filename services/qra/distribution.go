// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Three-point estimate -> distribution parameters.
//
// The register's P10/P50/P90 values are treated as exact shape anchors
// (min/mode/max, or mean +- z*sigma), not as percentiles to be inverted
// numerically. This is the conventional simplification in construction
// quantitative risk tools; a stricter percentile-calibrated fit is a
// legitimate alternative that was deliberately not taken (see DESIGN.md).
//
//	uniform:    min=p10, max=p90 (p50 ignored)
//	triangular: min=p10, mode=p50, max=p90, inverse-CDF sampling
//	pert:       Beta-PERT over [p10, p90] with mode p50,
//	            alpha = 1 + 4*(mode-min)/(max-min)
//	            beta  = 1 + 4*(max-mode)/(max-min)
//	normal:     mean=p50, sigma=(p90-p10)/2.5631 (80% CI, z = +-1.2816)

// normalCIWidth is the width of the central 80% interval of the standard
// normal distribution in sigma units (2 * 1.28155).
const normalCIWidth = 2.5631

// sampleMagnitude draws one magnitude for spec from rng.
//
// The degenerate case p10 == p50 == p90 returns that constant for every
// model without touching the stream. Anchors are assumed canonical
// (ascending on the signed axis, see Normalizer).
//
// # Outputs
//
//   - float64: The sampled magnitude, signed.
//   - error: UnsupportedDistributionError for an unrecognized model, or
//     NumericInstabilityError if the draw is not finite.
func sampleMagnitude(spec *RiskSpec, rng *rand.Rand) (float64, error) {
	if spec.degenerate() {
		return spec.P50, nil
	}

	var v float64
	switch spec.Model {
	case ModelUniform:
		v = spec.P10 + rng.Float64()*(spec.P90-spec.P10)
	case ModelTriangular:
		v = sampleTriangular(spec.P10, spec.P50, spec.P90, rng)
	case ModelPERT:
		v = samplePERT(spec.P10, spec.P50, spec.P90, rng)
	case ModelNormal:
		sigma := (spec.P90 - spec.P10) / normalCIWidth
		v = spec.P50 + rng.NormFloat64()*sigma
	default:
		return 0, &UnsupportedDistributionError{RiskID: spec.ID, Model: string(spec.Model)}
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &NumericInstabilityError{
			RiskID: spec.ID,
			Model:  spec.Model,
			Detail: fmt.Sprintf("sample is %v for anchors (%g, %g, %g)", v, spec.P10, spec.P50, spec.P90),
		}
	}
	return v, nil
}

// sampleTriangular draws from Triangular(min, mode, max) by inverting the
// piecewise CDF. The split point is F(mode) = (mode-min)/(max-min).
func sampleTriangular(min, mode, max float64, rng *rand.Rand) float64 {
	u := rng.Float64()
	fc := (mode - min) / (max - min)
	if u < fc {
		return min + math.Sqrt(u*(max-min)*(mode-min))
	}
	return max - math.Sqrt((1-u)*(max-min)*(max-mode))
}

// samplePERT draws from the Beta-PERT distribution over [min, max] with the
// given mode: sample Beta(alpha, beta), then scale into the range.
//
// Both shape parameters are >= 1 by construction (1 + 4*fraction), which
// keeps the Marsaglia-Tsang gamma sampler in its valid regime with no
// boosting step.
func samplePERT(min, mode, max float64, rng *rand.Rand) float64 {
	span := max - min
	alpha := 1 + 4*(mode-min)/span
	beta := 1 + 4*(max-mode)/span
	return min + sampleBeta(alpha, beta, rng)*span
}

// sampleBeta draws from Beta(alpha, beta) as X/(X+Y) with X~Gamma(alpha),
// Y~Gamma(beta).
func sampleBeta(alpha, beta float64, rng *rand.Rand) float64 {
	x := sampleGamma(alpha, rng)
	y := sampleGamma(beta, rng)
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) using the Marsaglia-Tsang
// squeeze method. Valid for shape >= 1, which is all this package needs
// (PERT shape parameters never drop below 1).
func sampleGamma(shape float64, rng *rand.Rand) float64 {
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1.0-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}

// occurs performs the single Bernoulli trial gating whether a risk
// contributes in one iteration.
//
// probability = 0 never occurs and probability = 1 always occurs; both
// short-circuit without consuming a draw, keeping the occurrence stream
// stable for testing. The gate draws only from its own stream, never from
// the one the magnitude sampler uses, so changing probability alone does
// not perturb the magnitude sequence used when the risk does occur.
func occurs(probability float64, rng *rand.Rand) bool {
	if probability <= 0 {
		return false
	}
	if probability >= 1 {
		return true
	}
	return rng.Float64() < probability
}
