// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// Normalizer validates and canonicalizes register entries before the trial
// loop sees them. A request with any invalid entry is rejected whole: a
// silently dropped risk would understate exposure without visible signal.
//
// # Canonical form
//
// The three-point estimate is re-expressed as signed anchors in ascending
// order, regardless of input sign:
//
//   - threat:      (|p10|, |p50|, |p90|)   positive, ascending
//   - opportunity: (-|p90|, -|p50|, -|p10|) negative, ascending
//
// After canonicalization every sampler can assume p10 <= p50 <= p90 on the
// signed axis and downstream arithmetic is uniform addition.
//
// # Thread Safety
//
// Normalizer is safe for concurrent use.
type Normalizer struct {
	validate *validator.Validate
}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{validate: validator.New()}
}

// Normalize validates rawRisks and returns their canonical forms.
//
// # Inputs
//
//   - rawRisks: Register entries as supplied by the caller.
//
// # Outputs
//
//   - []RiskSpec: Canonicalized copies, same order as the input.
//   - error: ValidationErrors listing every offending item, including
//     entries naming an unknown distribution model. Nil input or an empty
//     slice fails with a single entry carrying the ErrEmptyRegister reason.
func (n *Normalizer) Normalize(rawRisks []RiskSpec) ([]RiskSpec, error) {
	if len(rawRisks) == 0 {
		return nil, &ValidationError{Field: "risks", Reason: ErrEmptyRegister.Error()}
	}

	var errs ValidationErrors
	seen := make(map[string]struct{}, len(rawRisks))
	out := make([]RiskSpec, 0, len(rawRisks))

	for i := range rawRisks {
		raw := rawRisks[i]

		// Tag-level checks first (required fields, kind membership,
		// probability bounds).
		if err := n.validate.Struct(&raw); err != nil {
			errs = append(errs, translateFieldErrors(raw.ID, err)...)
			continue
		}

		if !raw.Model.known() {
			errs = append(errs, &ValidationError{
				RiskID: raw.ID,
				Field:  "distribution_model",
				Reason: fmt.Sprintf("unknown model %q", raw.Model),
			})
			continue
		}

		if _, dup := seen[raw.ID]; dup {
			errs = append(errs, &ValidationError{
				RiskID: raw.ID,
				Field:  "id",
				Reason: "duplicate risk id",
			})
			continue
		}
		seen[raw.ID] = struct{}{}

		spec, itemErrs := canonicalize(raw)
		if len(itemErrs) > 0 {
			errs = append(errs, itemErrs...)
			continue
		}
		out = append(out, spec)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// canonicalize applies the sign convention and magnitude-ordering invariant
// to one structurally valid entry.
func canonicalize(raw RiskSpec) (RiskSpec, ValidationErrors) {
	var errs ValidationErrors

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"p10", raw.P10}, {"p50", raw.P50}, {"p90", raw.P90}, {"probability", raw.Probability},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			errs = append(errs, &ValidationError{
				RiskID: raw.ID,
				Field:  f.name,
				Reason: "must be a finite number",
			})
		}
	}
	if len(errs) > 0 {
		return RiskSpec{}, errs
	}

	a, b, c := math.Abs(raw.P10), math.Abs(raw.P50), math.Abs(raw.P90)
	if a > b || b > c {
		errs = append(errs, &ValidationError{
			RiskID: raw.ID,
			Field:  "p10",
			Reason: fmt.Sprintf("magnitude ordering violated: |p10|=%g, |p50|=%g, |p90|=%g", a, b, c),
		})
		return RiskSpec{}, errs
	}

	spec := raw
	switch raw.Kind {
	case KindOpportunity:
		// Opportunities contribute credits: negate and reverse so the
		// anchors stay ascending on the signed axis.
		spec.P10, spec.P50, spec.P90 = -c, -b, -a
	default:
		spec.P10, spec.P50, spec.P90 = a, b, c
	}
	return spec, nil
}

// translateFieldErrors maps go-playground/validator failures onto the
// structured error taxonomy the core exposes.
func translateFieldErrors(riskID string, err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{RiskID: riskID, Field: "risk", Reason: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &ValidationError{
			RiskID: riskID,
			Field:  wireField(fe.Field()),
			Reason: tagReason(fe),
		})
	}
	return out
}

// wireField converts a Go struct field name to its wire form.
func wireField(field string) string {
	switch field {
	case "ID":
		return "id"
	case "Kind":
		return "kind"
	case "P10", "P50", "P90":
		return "p" + field[1:]
	case "Probability":
		return "probability"
	case "Model":
		return "distribution_model"
	case "Risks":
		return "risks"
	case "Iterations":
		return "iterations"
	case "TargetPercentile":
		return "target_percentile"
	}
	return field
}

// tagReason renders a validator tag failure as a stable reason string.
func tagReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s elements", fe.Param())
	}
	return fmt.Sprintf("failed %q constraint", fe.Tag())
}
