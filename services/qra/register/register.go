// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package register loads risk registers from disk.
//
// # Description
//
// A register file is either a bare list of risks or a document with
// top-level metadata:
//
//	project: harbor-extension
//	revision: 2026-03-rev4
//	risks:
//	  - id: R-001
//	    kind: threat
//	    p10: 10000
//	    p50: 25000
//	    p90: 80000
//	    probability: 0.4
//	    distribution_model: pert
//
// Both YAML and JSON are accepted; YAML is tried first. Loading performs no
// semantic validation, that belongs to the engine's normalizer so API and
// file callers get identical errors.
package register

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cornerline/quantrisk/services/qra"
)

// Register is a parsed register file.
//
// # Fields
//
//   - Project: Owning project identifier (optional).
//   - Revision: Register revision identifier (optional).
//   - Risks: The register entries, unvalidated.
type Register struct {
	Project  string         `json:"project,omitempty" yaml:"project,omitempty"`
	Revision string         `json:"revision,omitempty" yaml:"revision,omitempty"`
	Risks    []qra.RiskSpec `json:"risks" yaml:"risks"`
}

// Load reads a register file.
//
// # Inputs
//
//   - path: Path to a YAML or JSON register file.
//
// # Outputs
//
//   - *Register: The parsed register. A bare top-level list is wrapped in a
//     Register with empty metadata.
//   - error: Non-nil if the file is missing or parses as neither format.
func Load(path string) (*Register, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read register: %w", err)
	}
	return Parse(data)
}

// Parse decodes register bytes, YAML first and JSON as fallback.
func Parse(data []byte) (*Register, error) {
	var reg Register
	docErr := parseAs(data, &reg)
	if docErr == nil && (len(reg.Risks) > 0 || reg.Project != "" || reg.Revision != "") {
		return &reg, nil
	}

	// Bare list form without the document wrapper.
	var risks []qra.RiskSpec
	if err := parseAs(data, &risks); err != nil {
		if docErr == nil {
			// Parsed as a document with no risks; let the engine's
			// normalizer report the empty register.
			return &reg, nil
		}
		return nil, fmt.Errorf("parse register (tried YAML and JSON): %w", err)
	}
	return &Register{Risks: risks}, nil
}

func parseAs(data []byte, out any) error {
	if yamlErr := yaml.Unmarshal(data, out); yamlErr != nil {
		if jsonErr := json.Unmarshal(data, out); jsonErr != nil {
			return fmt.Errorf("YAML error: %v, JSON error: %w", yamlErr, jsonErr)
		}
	}
	return nil
}
