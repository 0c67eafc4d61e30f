package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"diyscan/internal/catalog"
	"diyscan/internal/output"
	"diyscan/internal/rawlines"
	"diyscan/internal/reconciliation"
	"diyscan/internal/sheets"
)

// createContextWithTimeout creates a context with timeout and signal handling.
// A zero timeout means no deadline.
func createContextWithTimeout(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// loadCatalog loads the catalog and turns load failures into user-facing errors.
func loadCatalog(path string, log zerolog.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, handleCatalogError(path, err, log)
	}
	if cat.Len() == 0 {
		log.Warn().Str("catalog", path).Msg("Catalog is empty, no line will match")
	}
	return cat, nil
}

// handleCatalogError provides user-friendly error messages for catalog failures
func handleCatalogError(path string, err error, log zerolog.Logger) error {
	log.Error().Err(err).Str("catalog", path).Msg("Failed to load catalog")

	switch {
	case errors.Is(err, catalog.ErrCatalogNotFound):
		return fmt.Errorf("catalog not found at %s. Set --catalog, catalog.path in diyscan.yaml or DIYSCAN_CATALOG_PATH: %w", path, err)
	case errors.Is(err, catalog.ErrMalformedCatalog):
		return fmt.Errorf("catalog %s is malformed. Every record needs the item name as its first field: %w", path, err)
	default:
		return fmt.Errorf("failed to load catalog: %w", err)
	}
}

// reconcileOptions are the per-run reconcile settings after flags and config are merged.
type reconcileOptions struct {
	CatalogPath string
	OutputPath  string
	Label       string
	Match       reconciliation.Config
	SheetURL    string
	Worksheet   string
}

// reconcileFile reconciles the raw line file at rawPath against cat and
// writes the result. Nothing is written if the run is cancelled or the raw
// file cannot be read to the end.
func reconcileFile(ctx context.Context, cat *catalog.Catalog, rawPath string, opts reconcileOptions, log zerolog.Logger) (*reconciliation.Result, error) {
	const op = "reconcileFile"

	reconciler, err := reconciliation.New(cat, opts.Match)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	src, err := rawlines.Open(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close raw line file")
		}
	}()

	result, err := reconciler.ReconcileContext(ctx, src.All())
	if err != nil {
		return nil, fmt.Errorf("%s: reconciliation interrupted after %d lines: %w", op, result.Stats.Lines, err)
	}
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := output.WriteResult(opts.OutputPath, result.Items, opts.Label); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if opts.SheetURL != "" {
		if err := exportToSheets(ctx, opts, filepath.Base(rawPath), result.Items, log); err != nil {
			return result, err
		}
	}

	return result, nil
}

func exportToSheets(ctx context.Context, opts reconcileOptions, source string, items []string, log zerolog.Logger) error {
	sheetsService, err := sheets.NewSheetsService(ctx, opts.SheetURL)
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets service: %w", err)
	}
	sheetsService.Label = strings.TrimSpace(opts.Label)

	if err := sheetsService.WriteItems(ctx, opts.Worksheet, source, items); err != nil {
		return fmt.Errorf("failed to export to Google Sheets: %w", err)
	}

	log.Info().
		Str("worksheet", opts.Worksheet).
		Int("items", len(items)).
		Msg("Items exported to Google Sheets")
	return nil
}

// defaultResultPaths derives the raw and cleaned file names for a scan of
// name: result_<name>.txt and cleaned_result_<name>.txt.
func defaultResultPaths(name string) (raw, cleaned string) {
	base := filepath.Base(filepath.Clean(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	raw = "result_" + base + ".txt"
	return raw, "cleaned_" + raw
}

// defaultCleanedPath puts cleaned_<file> next to a raw line file.
func defaultCleanedPath(rawPath string) string {
	return filepath.Join(filepath.Dir(rawPath), "cleaned_"+filepath.Base(rawPath))
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printSummary writes the human-readable reconciliation report.
func printSummary(w io.Writer, result *reconciliation.Result, outputPath string) {
	s := result.Stats
	fmt.Fprintf(w, "Lines read:  %d (%d empty)\n", s.Lines, s.Empty)
	fmt.Fprintf(w, "Exact:       %d\n", s.Exact)
	fmt.Fprintf(w, "Fuzzy:       %d\n", s.Fuzzy)
	fmt.Fprintf(w, "Unmatched:   %d\n", s.Unmatched)
	fmt.Fprintf(w, "Items found: %d\n", len(result.Items))

	if len(result.Fuzzy) > 0 {
		fmt.Fprintln(w, "\nFuzzy matches:")
		for _, fm := range result.Fuzzy {
			fmt.Fprintf(w, "  %q -> %q (%.2f, seen %dx)\n", fm.Line, fm.Match, fm.Score, fm.Count)
		}
	}

	fmt.Fprintf(w, "\nResult written to %s\n", outputPath)
}
