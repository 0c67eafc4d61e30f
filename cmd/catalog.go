package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"diyscan/internal/logger"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [file]",
	Short: "Validate an item catalog and report its size",
	Long: `Load a catalog the same way "scan" and "reconcile" do and report how many
distinct item names it holds. Malformed records are reported with their
position so the file can be fixed before a scan.

The format follows the file extension: .yaml/.yml, .csv, anything else is
read as JSON. Each record is an array (or a bare string); its first field
is the item name.`,
	Example: `  # Check the default catalog
  diyscan catalog

  # List every name in a CSV catalog
  diyscan catalog recipes.csv --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)

	catalogCmd.Flags().BoolP("list", "l", false, "Print every normalised name, sorted")
	catalogCmd.Flags().Bool("json", false, "Output as JSON")
}

// CatalogOutput represents the JSON output structure when --json flag is used
type CatalogOutput struct {
	Path  string   `json:"path"`
	Count int      `json:"count"`
	Names []string `json:"names,omitempty"`
}

func runCatalog(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("catalog")

	path := cfg.Catalog.Path
	if len(args) == 1 {
		path = args[0]
	}
	list, _ := cmd.Flags().GetBool("list")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cat, err := loadCatalog(path, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		result := CatalogOutput{Path: path, Count: cat.Len()}
		if list {
			result.Names = cat.Sorted()
		}
		return writeJSON(out, result)
	}

	fmt.Fprintf(out, "%s: %d items\n", path, cat.Len())
	if list {
		for _, name := range cat.Sorted() {
			fmt.Fprintln(out, name)
		}
	}
	return nil
}
