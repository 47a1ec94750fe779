package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/requirements"
)

var diffCmd = &cobra.Command{
	Use:   "diff <baseline> <candidate>",
	Short: "List requirements that are new or changed against a baseline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseline, err := requirements.Load(args[0])
		if err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
		candidate, err := requirements.Load(args[1])
		if err != nil {
			return fmt.Errorf("candidate: %w", err)
		}

		result := requirements.Diff(baseline, candidate)
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))

		if result.Empty() {
			fmt.Println("No outstanding requirements.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
