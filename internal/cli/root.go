// Package cli wires the codegen commands together.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "codegen",
	Short: "Requirement-driven code generation and validation",
	Long: `codegen turns requirements into code and checks the result.

It extracts structural metadata from a codebase, diffs requirement sets
to find outstanding work, generates implementations through an AI
backend, and validates code through a three-stage pipeline:
syntax, tests, and AI logic review.

Quick Start:
  codegen metadata ./project            Extract project metadata
  codegen diff old.csv new.csv          Find new or changed requirements
  codegen generate -r reqs.csv ./out    Generate code for requirements
  codegen validate ./project            Run the validation pipeline
  codegen history                       Show recent validation runs`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (json or yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig reads the configured (or default) configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
