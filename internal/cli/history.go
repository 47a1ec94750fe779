package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [codebase]",
	Short: "Show recent validation runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base := "."
		if len(args) == 1 {
			base = args[0]
		}
		history, err := storage.OpenHistory(base)
		if err != nil {
			return err
		}
		defer history.Close()

		records, err := history.Recent(historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No recorded runs.")
			return nil
		}
		for _, rec := range records {
			verdict := "FAIL"
			if rec.IsValid {
				verdict = "PASS"
			}
			fmt.Printf("%s  %s  %-7s  %d errors, %d warnings  %.1fs  %s\n",
				rec.Timestamp.Format("2006-01-02 15:04:05"),
				verdict,
				rec.OverallStatus,
				rec.ErrorCount,
				rec.WarningCount,
				rec.ExecutionTime,
				rec.CodebasePath)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
