// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cornerline/quantrisk/pkg/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:   "quantrisk",
		Short: "Monte Carlo risk analysis for project risk registers",
		Long: `Quantrisk runs Monte Carlo simulation over a project risk register
and reports contingency percentiles, the outcome distribution, and a
sensitivity ranking of which risks drive the overall exposure.`,
	}

	logLevel string
	logDir   string
	quiet    bool

	logger *logging.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for JSON log files (disabled when empty)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output on stderr")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logger = logging.New(logging.Config{
			Level:   parseLogLevel(logLevel),
			LogDir:  logDir,
			Service: "cli",
			Quiet:   quiet,
		})
	}

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

func parseLogLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func main() {
	err := rootCmd.Execute()
	if logger != nil {
		logger.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
