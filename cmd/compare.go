package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"diyscan/internal/logger"
	"diyscan/internal/output"
)

var compareCmd = &cobra.Command{
	Use:   "compare [result-file] [expected-file]",
	Short: "Compare a scan result with a hand-checked list",
	Long: `Compare a result file written by "scan" or "reconcile" with a list of the
items that were really on screen, one per line. Reports the expected items
the scan missed, the items it reported that were not expected, and the
percentage of expected items captured.`,
	Example: `  diyscan compare cleaned_result_scan.txt expected.txt`,
	Args:    cobra.ExactArgs(2),
	RunE:    runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Bool("json", false, "Output as JSON")
}

func runCompare(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("compare")

	result, err := output.ReadLines(args[0])
	if err != nil {
		return fmt.Errorf("failed to read result file: %w", err)
	}
	expected, err := output.ReadLines(args[1])
	if err != nil {
		return fmt.Errorf("failed to read expected file: %w", err)
	}

	comparison := output.Compare(result, expected)
	log.Info().
		Int("captured", comparison.Captured).
		Int("expected", comparison.Expected).
		Float64("percent", comparison.PercentCaptured).
		Msg("Comparison finished")

	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(out, comparison)
	}

	fmt.Fprintf(out, "Captured %d of %d expected items (%.1f%%)\n",
		comparison.Captured, comparison.Expected, comparison.PercentCaptured)
	if len(comparison.Missing) > 0 {
		fmt.Fprintln(out, "\nMissing:")
		for _, line := range comparison.Missing {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	if len(comparison.Unexpected) > 0 {
		fmt.Fprintln(out, "\nNot expected:")
		for _, line := range comparison.Unexpected {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	return nil
}
