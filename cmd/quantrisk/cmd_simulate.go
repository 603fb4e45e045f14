// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cornerline/quantrisk/pkg/ux"
	"github.com/cornerline/quantrisk/services/qra"
	"github.com/cornerline/quantrisk/services/qra/register"
)

var (
	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run a Monte Carlo simulation over a risk register file",
		Long: `Loads a YAML or JSON risk register, runs the requested number of Monte
Carlo trials, and prints contingency percentiles, the outcome histogram
and a sensitivity ranking. Use --seed to make a run reproducible.`,
		RunE: runSimulate,
	}

	registerPath     string
	iterations       int
	seedFlag         int64
	targetPercentile float64
	configPath       string
	workersFlag      int
	outPath          string
	snapshotDir      string
	projectFlag      string
	revisionFlag     string
	jsonOutput       bool
)

func init() {
	simulateCmd.Flags().StringVarP(&registerPath, "register", "r", "", "Path to the risk register file (required)")
	simulateCmd.Flags().IntVarP(&iterations, "iterations", "n", 10000, "Number of Monte Carlo trials")
	simulateCmd.Flags().Int64Var(&seedFlag, "seed", 0, "Explicit RNG seed for reproducible runs")
	simulateCmd.Flags().Float64VarP(&targetPercentile, "target-percentile", "t", 80, "Percentile reported as the contingency figure")
	simulateCmd.Flags().StringVarP(&configPath, "config", "c", "", "Engine config file (YAML or JSON)")
	simulateCmd.Flags().IntVarP(&workersFlag, "workers", "w", 0, "Worker goroutines (0 = all CPUs)")
	simulateCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the full result JSON to this file")
	simulateCmd.Flags().StringVar(&snapshotDir, "snapshot-dir", "", "Persist a run snapshot into this directory")
	simulateCmd.Flags().StringVar(&projectFlag, "project", "", "Project id recorded on the snapshot")
	simulateCmd.Flags().StringVar(&revisionFlag, "revision", "", "Register revision id recorded on the snapshot")
	simulateCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON instead of the styled summary")
	_ = simulateCmd.MarkFlagRequired("register")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if jsonOutput {
		ux.SetPlain(true)
	}

	cfg, err := qra.LoadEngineConfig(configPath)
	if err != nil {
		return err
	}
	if workersFlag > 0 {
		cfg.Workers = workersFlag
	}

	reg, err := register.Load(registerPath)
	if err != nil {
		return err
	}
	if projectFlag == "" {
		projectFlag = reg.Project
	}
	if revisionFlag == "" {
		revisionFlag = reg.Revision
	}

	req := qra.SimulationRequest{
		Risks:            reg.Risks,
		Iterations:       iterations,
		TargetPercentile: targetPercentile,
	}
	if cmd.Flags().Changed("seed") {
		req.Seed = &seedFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := qra.NewEngine(cfg).WithLogger(logger.Slog())
	if !jsonOutput && !quiet {
		engine = engine.WithProgress(func(done, total int) {
			fmt.Fprintf(os.Stderr, "\r%s", ux.ProgressBar(done, total, 32))
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		})
	}

	result, err := engine.Run(ctx, req)
	if err != nil {
		return err
	}

	if outPath != "" {
		if err := writeResultJSON(outPath, result); err != nil {
			return err
		}
	}
	if snapshotDir != "" {
		writer := qra.NewFileSnapshotWriter(snapshotDir)
		snap := qra.NewSnapshot(projectFlag, revisionFlag, result)
		if err := writer.Write(ctx, snap); err != nil {
			return err
		}
		logger.Info("snapshot written", "snapshot_id", snap.SnapshotID, "dir", snapshotDir)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printSummary(result)
	return nil
}

func writeResultJSON(path string, result *qra.SimulationResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func printSummary(result *qra.SimulationResult) {
	ux.Title("Simulation Summary")
	ux.Info(fmt.Sprintf("run %s  seed %d  %d trials  %d risks",
		result.Metadata.RunID, result.Metadata.Seed,
		result.Metadata.Iterations, result.Metadata.Risks))
	if result.Metadata.SeedGenerated {
		ux.Muted("seed was generated for this run; pass --seed to replay it")
	}
	fmt.Println()

	rows := [][]string{
		{"Base (sum of P50s)", ux.FormatAmount(result.Base)},
		{"Mean outcome", ux.FormatAmount(result.Mean)},
		{"Std deviation", ux.FormatAmount(result.StdDev)},
		{"P10", ux.FormatAmount(result.P10)},
		{"P50", ux.FormatAmount(result.P50)},
		{"P90", ux.FormatAmount(result.P90)},
		{"P10-P90 spread", ux.FormatAmount(result.Spread)},
		{fmt.Sprintf("P%g contingency", result.TargetPercentile), ux.FormatAmount(result.TargetValue)},
	}
	fmt.Print(ux.RenderTable([]string{"Statistic", "Value"}, rows))
	fmt.Println()

	ux.Title("Percentiles")
	var pctRows [][]string
	for _, entry := range result.PercentileTable {
		pctRows = append(pctRows, []string{
			fmt.Sprintf("P%g", entry.Percentile),
			ux.FormatAmount(entry.Value),
		})
	}
	fmt.Print(ux.RenderTable([]string{"Percentile", "Value"}, pctRows))
	fmt.Println()

	ux.Title("Outcome Distribution")
	var histRows []ux.BarRow
	for _, bucket := range result.Distribution {
		histRows = append(histRows, ux.BarRow{
			Label:  fmt.Sprintf("%s .. %s", ux.FormatAmount(bucket.BucketStart), ux.FormatAmount(bucket.BucketEnd)),
			Value:  float64(bucket.Count),
			Detail: fmt.Sprintf("%d", bucket.Count),
		})
	}
	fmt.Print(ux.RenderBars(histRows, 40))
	fmt.Println()

	ux.Title("Sensitivity (variance driven per risk)")
	var senseRows []ux.BarRow
	for _, rc := range result.Sensitivity {
		senseRows = append(senseRows, ux.BarRow{
			Label:  rc.RiskID,
			Value:  rc.Contribution,
			Detail: ux.FormatAmount(rc.Contribution),
		})
	}
	fmt.Print(ux.RenderBars(senseRows, 40))
}
