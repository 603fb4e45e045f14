// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validThreat(id string) RiskSpec {
	return RiskSpec{
		ID:          id,
		Kind:        KindThreat,
		P10:         10000,
		P50:         25000,
		P90:         80000,
		Probability: 0.4,
		Model:       ModelPERT,
	}
}

func TestNormalize_ValidThreat(t *testing.T) {
	n := NewNormalizer()

	out, err := n.Normalize([]RiskSpec{validThreat("R-001")})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "R-001", out[0].ID)
	assert.Equal(t, 10000.0, out[0].P10)
	assert.Equal(t, 25000.0, out[0].P50)
	assert.Equal(t, 80000.0, out[0].P90)
}

func TestNormalize_OpportunitySignConvention(t *testing.T) {
	n := NewNormalizer()

	// Caller supplied positive magnitudes; canonical form is negated and
	// reversed so anchors ascend on the signed axis.
	opp := RiskSpec{
		ID:          "O-001",
		Kind:        KindOpportunity,
		P10:         5000,
		P50:         12000,
		P90:         30000,
		Probability: 0.25,
		Model:       ModelTriangular,
	}

	out, err := n.Normalize([]RiskSpec{opp})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, -30000.0, out[0].P10)
	assert.Equal(t, -12000.0, out[0].P50)
	assert.Equal(t, -5000.0, out[0].P90)
	assert.True(t, out[0].P10 <= out[0].P50 && out[0].P50 <= out[0].P90)
}

func TestNormalize_OpportunityNegativeInput(t *testing.T) {
	n := NewNormalizer()

	// Signs on the input are ignored; only magnitudes matter.
	opp := RiskSpec{
		ID:          "O-002",
		Kind:        KindOpportunity,
		P10:         -5000,
		P50:         -12000,
		P90:         -30000,
		Probability: 1,
		Model:       ModelUniform,
	}

	out, err := n.Normalize([]RiskSpec{opp})
	require.NoError(t, err)
	assert.Equal(t, -30000.0, out[0].P10)
	assert.Equal(t, -5000.0, out[0].P90)
}

func TestNormalize_EmptyRegister(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestNormalize_WholeRequestRejection(t *testing.T) {
	n := NewNormalizer()

	bad := validThreat("R-BAD")
	bad.Probability = 1.5

	_, err := n.Normalize([]RiskSpec{validThreat("R-OK"), bad})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "R-BAD", verrs[0].RiskID)
	assert.Equal(t, "probability", verrs[0].Field)
}

func TestNormalize_CollectsAllErrors(t *testing.T) {
	n := NewNormalizer()

	noKind := validThreat("R-1")
	noKind.Kind = ""
	badOrder := validThreat("R-2")
	badOrder.P10 = 90000 // |p10| > |p50|
	badModel := validThreat("R-3")
	badModel.Model = "lognormal"

	_, err := n.Normalize([]RiskSpec{noKind, badOrder, badModel})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 3)

	ids := map[string]bool{}
	for _, verr := range verrs {
		ids[verr.RiskID] = true
	}
	assert.True(t, ids["R-1"] && ids["R-2"] && ids["R-3"])
}

func TestNormalize_DuplicateID(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize([]RiskSpec{validThreat("R-001"), validThreat("R-001")})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "id", verrs[0].Field)
}

func TestNormalize_NonFiniteValues(t *testing.T) {
	tests := []struct {
		name  string
		field string
		mod   func(*RiskSpec)
	}{
		{"nan p50", "p50", func(r *RiskSpec) { r.P50 = math.NaN() }},
		{"inf p90", "p90", func(r *RiskSpec) { r.P90 = math.Inf(1) }},
		{"nan probability", "probability", func(r *RiskSpec) { r.Probability = math.NaN() }},
	}

	n := NewNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			risk := validThreat("R-X")
			tt.mod(&risk)

			_, err := n.Normalize([]RiskSpec{risk})
			require.Error(t, err)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			found := false
			for _, verr := range verrs {
				if verr.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected an error on field %s, got %v", tt.field, verrs)
		})
	}
}

func TestNormalize_OrderingViolation(t *testing.T) {
	n := NewNormalizer()

	risk := validThreat("R-ORD")
	risk.P50 = 90001 // |p50| > |p90|

	_, err := n.Normalize([]RiskSpec{risk})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magnitude ordering")
}

func TestNormalize_UnknownModel(t *testing.T) {
	n := NewNormalizer()

	risk := validThreat("R-M")
	risk.Model = "cauchy"

	_, err := n.Normalize([]RiskSpec{risk})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "distribution_model", verrs[0].Field)
}

func TestValidationErrors_Unwrap(t *testing.T) {
	errs := ValidationErrors{
		{RiskID: "A", Field: "p10", Reason: "x"},
		{RiskID: "B", Field: "p50", Reason: "y"},
	}

	var single *ValidationError
	if !errors.As(error(errs), &single) {
		t.Fatal("expected errors.As to find a ValidationError inside ValidationErrors")
	}
}
