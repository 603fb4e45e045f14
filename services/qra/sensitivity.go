// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import "sort"

// rankContributions produces the tornado ranking: for each risk, the
// variance the total distribution loses when that risk's column is zeroed
// for every trial (leave-one-out).
//
//	contribution = Var(totals) - Var(totals with risk removed)
//
// Leave-one-out is used instead of a correlation coefficient because it
// directly answers "how much of the spread does this risk explain", and it
// stays stable for risks with probability near 0 or 1 where a coefficient
// degenerates.
//
// # Inputs
//
//   - data: Trial totals and the per-risk contribution matrix. The matrix
//     is indexed [trial][riskIndex] and riskIDs[i] names column i.
//
// # Outputs
//
//   - []RiskContribution: Descending by contribution; ties broken by risk
//     id ascending so output is deterministic.
func rankContributions(data *TrialData, riskIDs []string) []RiskContribution {
	baseVar := sampleVariance(data.Totals)

	ranked := make([]RiskContribution, len(riskIDs))
	excluded := make([]float64, len(data.Totals))
	for j, id := range riskIDs {
		for t, total := range data.Totals {
			excluded[t] = total - data.Contributions[t][j]
		}
		ranked[j] = RiskContribution{
			RiskID:       id,
			Contribution: baseVar - sampleVariance(excluded),
		}
	}

	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Contribution != ranked[b].Contribution {
			return ranked[a].Contribution > ranked[b].Contribution
		}
		return ranked[a].RiskID < ranked[b].RiskID
	})
	return ranked
}
