// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cornerline/quantrisk/pkg/ux"
	"github.com/cornerline/quantrisk/services/qra"
	"github.com/cornerline/quantrisk/services/qra/register"
)

var validateCmd = &cobra.Command{
	Use:   "validate [register file]",
	Short: "Check a risk register file without running a simulation",
	Long: `Parses and validates every entry in the register the same way simulate
does, then reports each problem with its risk id and field. Exits
non-zero if any entry is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	reg, err := register.Load(args[0])
	if err != nil {
		return err
	}

	normalizer := qra.NewNormalizer()
	risks, err := normalizer.Normalize(reg.Risks)
	if err != nil {
		var verrs qra.ValidationErrors
		if errors.As(err, &verrs) {
			for _, verr := range verrs {
				if verr.RiskID != "" {
					ux.Error(fmt.Sprintf("%s: %s: %s", verr.RiskID, verr.Field, verr.Reason))
				} else {
					ux.Error(fmt.Sprintf("%s: %s", verr.Field, verr.Reason))
				}
			}
			return fmt.Errorf("register invalid: %d problem(s)", len(verrs))
		}
		return err
	}

	threats, opportunities := 0, 0
	for _, risk := range risks {
		if risk.Kind == qra.KindThreat {
			threats++
		} else {
			opportunities++
		}
	}
	ux.Success(fmt.Sprintf("register valid: %d risks (%d threats, %d opportunities)",
		len(risks), threats, opportunities))
	return nil
}
