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
	"strings"
)

// Sentinel errors for simulation requests.
var (
	// ErrEmptyRegister is returned when the request carries no risks.
	// There is no meaningful exposure distribution for an empty register.
	ErrEmptyRegister = errors.New("risk register is empty")

	// ErrRunCancelled is returned when the caller's context is cancelled
	// between trial batches. Partial results are never returned.
	ErrRunCancelled = errors.New("simulation cancelled")
)

// ValidationError describes one malformed or out-of-range field, with
// enough detail (risk id, field, reason) for the caller to fix the input.
// The engine never recovers or guesses; the whole request is rejected.
type ValidationError struct {
	// RiskID is the offending register entry, or "" for request-level
	// failures (iteration count, target percentile, empty register).
	RiskID string `json:"risk_id,omitempty"`

	// Field is the offending field name in wire form, e.g. "p50".
	Field string `json:"field"`

	// Reason is a human-readable description of the violation.
	Reason string `json:"reason"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.RiskID == "" {
		return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid risk %q: %s: %s", e.RiskID, e.Field, e.Reason)
}

// ValidationErrors aggregates every offending item so a caller can fix the
// whole register in one pass instead of replaying the request per field.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:", len(e))
	for _, item := range e {
		b.WriteString("\n  ")
		b.WriteString(item.Error())
	}
	return b.String()
}

// Unwrap exposes the individual errors for errors.Is/As support.
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, item := range e {
		errs[i] = item
	}
	return errs
}

// UnsupportedDistributionError is returned for an unknown distributionModel
// value. Fatal for the request; the engine never substitutes a default.
type UnsupportedDistributionError struct {
	RiskID string `json:"risk_id"`
	Model  string `json:"model"`
}

// Error implements the error interface.
func (e *UnsupportedDistributionError) Error() string {
	return fmt.Sprintf("risk %q: unsupported distribution model %q", e.RiskID, e.Model)
}

// NumericInstabilityError is an internal guard for conditions that cannot
// occur if the normalizer invariants hold (e.g. degenerate Beta parameters
// producing NaN). If it triggers it indicates a normalizer bug and the run
// fails loudly rather than silently substituting a value.
type NumericInstabilityError struct {
	RiskID string            `json:"risk_id"`
	Model  DistributionModel `json:"model"`
	Detail string            `json:"detail"`
}

// Error implements the error interface.
func (e *NumericInstabilityError) Error() string {
	return fmt.Sprintf("numeric instability sampling risk %q (%s): %s", e.RiskID, e.Model, e.Detail)
}
