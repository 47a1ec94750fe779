package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/metadata"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/provider"
)

var metadataOutput string

var metadataCmd = &cobra.Command{
	Use:   "metadata <codebase>",
	Short: "Extract structural metadata from a codebase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		extractor := metadata.New(provider.Default(), metadata.Options{
			IncludePatterns: cfg.IncludePatterns,
			ExcludePatterns: cfg.ExcludePatterns,
			Concurrency:     cfg.Concurrency,
			EntryPointNames: cfg.EntryPointNames,
			EntryPointFiles: cfg.EntryPointFiles,
		})
		doc, warnings, err := extractor.Extract(context.Background(), args[0])
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.FilePath, w.Message)
		}

		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')

		if metadataOutput == "-" {
			fmt.Print(string(data))
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(metadataOutput), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(metadataOutput, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("Extracted metadata for %d files (%d languages) -> %s\n",
			doc.Metrics.TotalFiles, len(doc.Languages), metadataOutput)
		return nil
	},
}

func init() {
	metadataCmd.Flags().StringVarP(&metadataOutput, "output", "o", "metadata.json", "output file, or - for stdout")
	rootCmd.AddCommand(metadataCmd)
}
