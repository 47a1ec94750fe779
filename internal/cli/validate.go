package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/ai"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/metadata"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/provider"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/report"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/requirements"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/storage"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/validation"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// Exit codes: 0 valid, 1 validation failed, 2 run error.
const (
	exitValid     = 0
	exitInvalid   = 1
	exitRunFailed = 2
)

var (
	validateMetadataPath string
	validateRequirements string
	validateNoHistory    bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <codebase>",
	Short: "Run the three-stage validation pipeline",
	Long: `Validate a codebase through syntax checks, test execution, and
AI logic review. Metadata is refreshed before the pipeline runs; pass
--metadata to record the document path in the report.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runValidate(args[0]))
	},
}

func runValidate(codebasePath string) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRunFailed
	}

	// Input errors fail fast, before any stage runs and before any
	// partial report is written.
	info, err := os.Stat(codebasePath)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "codebase path not found: %s\n", codebasePath)
		return exitRunFailed
	}

	var reqs []types.Requirement
	if validateRequirements != "" {
		set, err := requirements.Load(validateRequirements)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitRunFailed
		}
		reqs = set.All()
	}

	registry := provider.Default()
	extractor := metadata.New(registry, metadata.Options{
		IncludePatterns: cfg.IncludePatterns,
		ExcludePatterns: cfg.ExcludePatterns,
		Concurrency:     cfg.Concurrency,
		EntryPointNames: cfg.EntryPointNames,
		EntryPointFiles: cfg.EntryPointFiles,
	})
	meta, _, err := extractor.Extract(context.Background(), codebasePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRunFailed
	}

	var backend ai.Backend
	if cfg.EnableAIValidation {
		b, err := ai.NewOpenAIBackend(cfg.AIModel)
		if err == nil {
			backend = b
		} else if !errors.Is(err, ai.ErrBackendUnavailable) {
			fmt.Fprintln(os.Stderr, err)
			return exitRunFailed
		}
		// Unavailable backend is not fatal: the AI stage reports skipped.
	}

	pipeline := validation.New(registry, cfg, backend).WithRequirements(reqs)
	result := pipeline.Run(context.Background(), codebasePath, validateMetadataPath, meta)

	doc := report.Build(result)
	rendered, err := report.Render(doc, cfg.OutputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRunFailed
	}
	fmt.Print(string(rendered))

	if cfg.SaveReport {
		path := cfg.ReportFilename
		if !filepath.IsAbs(path) {
			path = filepath.Join(codebasePath, path)
		}
		if err := report.Save(doc, path, "json"); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitRunFailed
		}
	}

	if !validateNoHistory {
		if history, err := storage.OpenHistory(codebasePath); err == nil {
			if err := history.Record(result); err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not record run history: %v\n", err)
			}
			history.Close()
		}
	}

	if result.IsValid {
		return exitValid
	}
	return exitInvalid
}

func init() {
	validateCmd.Flags().StringVarP(&validateMetadataPath, "metadata", "m", "", "metadata document path recorded in the report")
	validateCmd.Flags().StringVarP(&validateRequirements, "requirements", "r", "", "requirements file for the AI review stage")
	validateCmd.Flags().BoolVar(&validateNoHistory, "no-history", false, "skip recording the run in the history database")
	rootCmd.AddCommand(validateCmd)
}
