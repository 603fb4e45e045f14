// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the quantrisk CLI.
package ux

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

// Cornerline color palette - site amber and structural steel
var (
	// Primary palette (brightest to darkest)
	ColorAmberBright  = lipgloss.Color("#FFB820") // Bright amber - highlights
	ColorAmberPrimary = lipgloss.Color("#F2A007") // Primary amber - main brand color
	ColorAmberDeep    = lipgloss.Color("#C77F00") // Deep amber - borders, accents

	// Steel palette (for muted elements, structure)
	ColorSteel     = lipgloss.Color("#8C98A4") // Steel grey - secondary text
	ColorSteelDark = lipgloss.Color("#525E68") // Dark steel - muted text, borders
	ColorGraphite  = lipgloss.Color("#2B333B") // Graphite - deep backgrounds

	// Semantic colors
	ColorSuccess = lipgloss.Color("#40C463") // Green for success
	ColorWarning = lipgloss.Color("#F2A007") // Amber for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
	ColorMuted   = lipgloss.Color("#525E68") // Dark steel for muted text

	// Risk direction colors for tornado bars
	ColorThreat      = lipgloss.Color("#E74C3C") // Threats add cost
	ColorOpportunity = lipgloss.Color("#40C463") // Opportunities reduce cost
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box lipgloss.Style

	Threat      lipgloss.Style
	Opportunity lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAmberBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorAmberPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSteelDark),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorAmberBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAmberDeep).
		Padding(0, 1),

	Threat:      lipgloss.NewStyle().Foreground(ColorThreat),
	Opportunity: lipgloss.NewStyle().Foreground(ColorOpportunity),
}

// plainMode disables styling and icons for machine-consumed output.
var plainMode atomic.Bool

// SetPlain switches all ux output to unstyled plain text. Used when
// stdout is not a terminal or the caller asked for machine output.
func SetPlain(plain bool) {
	plainMode.Store(plain)
}

// Plain reports whether plain output mode is active.
func Plain() bool {
	return plainMode.Load()
}

// Title prints a styled section title.
func Title(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a success message with checkmark.
func Success(text string) {
	if Plain() {
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Success.Render("✓"), Styles.Success.Render(text))
}

// Warning prints a warning message.
func Warning(text string) {
	if Plain() {
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Warning.Render("⚠"), Styles.Warning.Render(text))
}

// Error prints an error message.
func Error(text string) {
	if Plain() {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Error.Render("✗"), Styles.Error.Render(text))
}

// Info prints an informational line.
func Info(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text.
func Muted(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Box prints titled content in a rounded box.
func Box(title, content string) {
	if Plain() {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(64)
	titleLine := Styles.Title.Render(title)
	fmt.Println(boxStyle.Render(titleLine + "\n" + content))
}

// ProgressBar renders a fixed-width progress bar.
func ProgressBar(current, total int, width int) string {
	if total <= 0 {
		total = 1
	}
	pct := float64(current) / float64(total)
	if Plain() {
		return fmt.Sprintf("%d/%d", current, total)
	}
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	bar := Styles.Success.Render(repeatChar('█', filled)) +
		Styles.Muted.Render(repeatChar('░', width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}

func repeatChar(c rune, n int) string {
	if n <= 0 {
		return ""
	}
	result := make([]rune, n)
	for i := range result {
		result[i] = c
	}
	return string(result)
}
