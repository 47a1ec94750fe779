package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/ai"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/generator"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/metadata"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/provider"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/requirements"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

var (
	generateRequirements string
	generateBaseline     string
	generateCodebase     string
	generateLanguage     string
)

var generateCmd = &cobra.Command{
	Use:   "generate <output>",
	Short: "Generate code for outstanding requirements",
	Long: `Generate implementations for requirements through the AI backend.

With --baseline, only requirements that are new or changed relative to
the baseline set are generated. Generated changes are applied to the
output tree; existing files are never overwritten by a create change.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		candidate, err := requirements.Load(generateRequirements)
		if err != nil {
			return err
		}
		outstanding := candidate.All()
		if generateBaseline != "" {
			baseline, err := requirements.Load(generateBaseline)
			if err != nil {
				return fmt.Errorf("baseline: %w", err)
			}
			diff := requirements.Diff(baseline, candidate)
			outstanding = append(diff.Added, diff.Modified...)
		}
		if len(outstanding) == 0 {
			fmt.Println("No outstanding requirements; nothing to generate.")
			return nil
		}

		registry := provider.Default()
		prov := registry.Get(generateLanguage)
		if prov == nil {
			return fmt.Errorf("unsupported language %q (supported: %v)",
				generateLanguage, registry.Languages())
		}

		var meta *types.ProjectMetadata
		if generateCodebase != "" {
			extractor := metadata.New(registry, metadata.Options{
				IncludePatterns: cfg.IncludePatterns,
				ExcludePatterns: cfg.ExcludePatterns,
				Concurrency:     cfg.Concurrency,
				EntryPointNames: cfg.EntryPointNames,
				EntryPointFiles: cfg.EntryPointFiles,
			})
			meta, _, err = extractor.Extract(context.Background(), generateCodebase)
			if err != nil {
				return err
			}
		}

		backend, err := ai.NewOpenAIBackend(cfg.AIModel)
		if err != nil {
			if errors.Is(err, ai.ErrBackendUnavailable) {
				return fmt.Errorf("code generation needs an AI backend: %w", err)
			}
			return err
		}

		gen := generator.New(backend, cfg.AIMaxTokens, cfg.AITemperature)
		result := gen.GenerateBatch(context.Background(), outstanding, meta, prov)

		if len(result.Changes) > 0 {
			if err := generator.NewIntegrator(args[0]).Apply(result.Changes); err != nil {
				return err
			}
		}

		fmt.Printf("Generated %d/%d requirements (%d changes) in %.1fs\n",
			result.RequirementsImplemented, result.RequirementsProcessed,
			len(result.Changes), result.ExecutionTime)
		for _, problem := range result.Problems {
			fmt.Fprintf(os.Stderr, "failed %s: %s\n", problem.RequirementID, problem.Message)
		}
		if result.RequirementsFailed > 0 {
			return fmt.Errorf("%d requirements failed generation", result.RequirementsFailed)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateRequirements, "requirements", "r", "", "requirements file (csv or json)")
	generateCmd.Flags().StringVarP(&generateBaseline, "baseline", "b", "", "baseline requirements to diff against")
	generateCmd.Flags().StringVarP(&generateCodebase, "codebase", "p", "", "existing codebase for prompt context")
	generateCmd.Flags().StringVarP(&generateLanguage, "language", "l", "python", "target language")
	generateCmd.MarkFlagRequired("requirements")
	rootCmd.AddCommand(generateCmd)
}
