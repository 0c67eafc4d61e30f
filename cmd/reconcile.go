package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"diyscan/internal/logger"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [raw-file]",
	Short: "Match stored OCR lines against the item catalog",
	Long: `Reconcile a raw line file (one recognised line per frame, as written by
"diyscan scan") against the item catalog.

Every line is normalised, then either found in the catalog verbatim or
matched to the most similar catalog entry at or above the similarity
threshold. Lines that match nothing are dropped. The distinct matched items
are written sorted, one per line, with the configured label appended.

The catalog is loaded before anything is written, so a missing or malformed
catalog never leaves a partial result behind.`,
	Example: `  # Reconcile with the default catalog (names.json)
  diyscan reconcile result_scan.txt

  # Use a YAML catalog and a stricter threshold
  diyscan reconcile result_scan.txt --catalog recipes.yaml --threshold 0.8

  # Print the full report as JSON and export the items to Google Sheets
  diyscan reconcile result_scan.txt --json --sheet-url "https://docs.google.com/spreadsheets/d/..."`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringP("catalog", "c", "", "Catalog file, .json/.yaml/.csv (default: catalog.path)")
	reconcileCmd.Flags().StringP("output", "o", "", "Result file (default: cleaned_<raw-file> next to the raw file)")
	reconcileCmd.Flags().String("label", "", "Suffix appended to every item (default: output.label)")
	reconcileCmd.Flags().Float64("threshold", 0, "Minimum similarity for a fuzzy match, 0..1 (default: match.similarity_threshold)")
	reconcileCmd.Flags().Int("max-candidates", 0, "Ranked candidates kept per fuzzy search (default: match.max_candidates)")
	reconcileCmd.Flags().String("sheet-url", "", "Also append the items to this Google Sheet (default: sheets.url)")
	reconcileCmd.Flags().String("worksheet", "", "Worksheet for the export (default: sheets.worksheet)")
	reconcileCmd.Flags().Bool("json", false, "Print the full reconciliation report as JSON")
}

// reconcileOptionsFromFlags merges command flags over the loaded config.
// Only flags the user actually set override config values.
func reconcileOptionsFromFlags(cmd *cobra.Command) reconcileOptions {
	flags := cmd.Flags()

	opts := reconcileOptions{
		CatalogPath: cfg.Catalog.Path,
		Label:       cfg.Output.Label,
		Match:       cfg.ReconcilerConfig(),
		SheetURL:    cfg.Sheets.URL,
		Worksheet:   cfg.Sheets.Worksheet,
	}

	if flags.Changed("catalog") {
		opts.CatalogPath, _ = flags.GetString("catalog")
	}
	if flags.Changed("output") {
		opts.OutputPath, _ = flags.GetString("output")
	}
	if flags.Changed("label") {
		opts.Label, _ = flags.GetString("label")
	}
	if flags.Changed("threshold") {
		opts.Match.SimilarityThreshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Changed("max-candidates") {
		opts.Match.MaxCandidates, _ = flags.GetInt("max-candidates")
	}
	if flags.Changed("sheet-url") {
		opts.SheetURL, _ = flags.GetString("sheet-url")
	}
	if flags.Changed("worksheet") {
		opts.Worksheet, _ = flags.GetString("worksheet")
	}
	return opts
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("reconcile")

	rawPath := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	opts := reconcileOptionsFromFlags(cmd)
	if opts.OutputPath == "" {
		opts.OutputPath = defaultCleanedPath(rawPath)
	}
	if err := opts.Match.Validate(); err != nil {
		return err
	}

	log.Info().
		Str("raw_file", rawPath).
		Str("catalog", opts.CatalogPath).
		Str("output", opts.OutputPath).
		Float64("threshold", opts.Match.SimilarityThreshold).
		Int("max_candidates", opts.Match.MaxCandidates).
		Bool("sheets_export", opts.SheetURL != "").
		Msg("Starting reconciliation")

	cat, err := loadCatalog(opts.CatalogPath, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(0, log)
	defer cancel()

	result, err := reconcileFile(ctx, cat, rawPath, opts, log)
	if err != nil {
		if result == nil {
			return fmt.Errorf("reconciliation failed: %w", err)
		}
		// The result file is already written; only the export failed.
		log.Error().Err(err).Msg("Export failed after result was written")
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if jsonErr := writeJSON(out, result); jsonErr != nil {
			return jsonErr
		}
	} else {
		printSummary(out, result, opts.OutputPath)
	}

	return err
}
