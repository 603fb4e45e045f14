// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"math"
	"strings"
)

// BarRow is one labeled magnitude in a horizontal bar chart.
//
// # Fields
//
//   - Label: Row label, printed left-aligned before the bar.
//   - Value: Bar magnitude; negative values render in the opportunity
//     color, positive in the threat color.
//   - Detail: Optional trailing annotation, printed muted after the bar.
type BarRow struct {
	Label  string
	Value  float64
	Detail string
}

// RenderTable renders a two-column-aligned text table.
//
// Column widths are derived from the widest cell per column. Headers are
// rendered bold unless plain mode is active.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style func(string) string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			padded := fmt.Sprintf("%-*s", widths[i], cell)
			b.WriteString(style(padded))
		}
		b.WriteString("\n")
	}

	headerStyle := func(s string) string { return s }
	if !Plain() {
		headerStyle = func(s string) string { return Styles.Bold.Render(s) }
	}
	writeRow(headers, headerStyle)

	var sep []string
	for _, w := range widths {
		sep = append(sep, strings.Repeat("─", w))
	}
	writeRow(sep, func(s string) string {
		if Plain() {
			return s
		}
		return Styles.Muted.Render(s)
	})

	for _, row := range rows {
		writeRow(row, func(s string) string { return s })
	}
	return b.String()
}

// RenderBars renders a horizontal bar chart.
//
// Bar lengths scale linearly against the largest absolute value; a
// non-zero value always gets at least one cell so small contributors
// stay visible.
func RenderBars(rows []BarRow, width int) string {
	if width <= 0 {
		width = 40
	}

	var maxAbs float64
	labelWidth := 0
	for _, row := range rows {
		if abs := math.Abs(row.Value); abs > maxAbs {
			maxAbs = abs
		}
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
	}

	var b strings.Builder
	for _, row := range rows {
		cells := 0
		if maxAbs > 0 {
			cells = int(math.Abs(row.Value) / maxAbs * float64(width))
			if cells == 0 && row.Value != 0 {
				cells = 1
			}
		}

		bar := strings.Repeat("█", cells)
		if !Plain() {
			if row.Value < 0 {
				bar = Styles.Opportunity.Render(bar)
			} else {
				bar = Styles.Subtitle.Render(bar)
			}
		}

		fmt.Fprintf(&b, "%-*s  %s", labelWidth, row.Label, bar)
		if row.Detail != "" {
			if Plain() {
				fmt.Fprintf(&b, "  %s", row.Detail)
			} else {
				fmt.Fprintf(&b, "  %s", Styles.Muted.Render(row.Detail))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatAmount formats a monetary-style value with thousands separators
// and no decimals above 1000, two decimals below.
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprintf("%v", v)
	}
	if math.Abs(v) < 1000 {
		return fmt.Sprintf("%.2f", v)
	}
	s := fmt.Sprintf("%.0f", math.Abs(v))
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
		if len(s) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}
