package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"diyscan/internal/catalog"
	"diyscan/internal/frames"
	"diyscan/internal/logger"
	"diyscan/internal/ocr"
	"diyscan/internal/rawlines"
	"diyscan/internal/reconciliation"
)

var scanCmd = &cobra.Command{
	Use:   "scan [frames-dir]",
	Short: "Recognise the item name in every frame and reconcile the result",
	Long: `Read every image in a directory of extracted frames, crop it to the item
name row, recognise the text and append one line per frame to the raw line
file. The raw file is then reconciled against the catalog (see "diyscan
reconcile") unless --no-reconcile is given.

The catalog is loaded before any frame is processed.

OCR engines:
  vision     Google Cloud Vision (default). Needs GOOGLE_APPLICATION_CREDENTIALS,
             GOOGLE_CREDENTIALS or application default credentials.
  tesseract  Local Tesseract; only in binaries built with -tags tesseract.`,
	Example: `  # Extract frames, then scan them
  ffmpeg -i scan.mp4 frames/%06d.png
  diyscan scan frames

  # Every third frame with Tesseract, custom file names
  diyscan scan frames --step 3 --engine tesseract --raw raw.txt -o items.txt

  # Only collect raw lines
  diyscan scan frames --no-reconcile`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("raw", "", "Raw line file, appended to (default: result_<frames-dir>.txt)")
	scanCmd.Flags().StringP("output", "o", "", "Result file (default: cleaned_result_<frames-dir>.txt)")
	scanCmd.Flags().StringP("catalog", "c", "", "Catalog file (default: catalog.path)")
	scanCmd.Flags().String("engine", "", "OCR engine: vision or tesseract (default: ocr.engine)")
	scanCmd.Flags().Int("step", 0, "Process every n-th frame (default: frames.step)")
	scanCmd.Flags().Duration("timeout", 0, "Timeout for frame recognition (default: ocr.timeout)")
	scanCmd.Flags().Bool("no-reconcile", false, "Only write the raw line file")
	scanCmd.Flags().Bool("json", false, "Print the reconciliation report as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")
	flags := cmd.Flags()

	framesDir := args[0]
	rawPath, cleanedPath := defaultResultPaths(framesDir)
	if flags.Changed("raw") {
		rawPath, _ = flags.GetString("raw")
	}

	opts := reconcileOptionsFromFlags(cmd)
	if opts.OutputPath == "" {
		opts.OutputPath = cleanedPath
	}

	engine := cfg.OCR.Engine
	if flags.Changed("engine") {
		engine, _ = flags.GetString("engine")
	}
	step := cfg.Frames.Step
	if flags.Changed("step") {
		step, _ = flags.GetInt("step")
	}
	timeout := cfg.OCR.Timeout
	if flags.Changed("timeout") {
		timeout, _ = flags.GetDuration("timeout")
	}
	skipReconcile, _ := flags.GetBool("no-reconcile")
	jsonOutput, _ := flags.GetBool("json")

	log.Info().
		Str("frames_dir", framesDir).
		Str("raw_file", rawPath).
		Str("engine", engine).
		Int("step", step).
		Dur("timeout", timeout).
		Bool("reconcile", !skipReconcile).
		Msg("Starting scan")

	var cat *catalog.Catalog
	if !skipReconcile {
		if err := opts.Match.Validate(); err != nil {
			return err
		}
		var err error
		if cat, err = loadCatalog(opts.CatalogPath, log); err != nil {
			return err
		}
	}

	source, err := frames.NewDirSource(framesDir, cfg.Region())
	if err != nil {
		return fmt.Errorf("failed to open frames: %w", err)
	}
	source.Step = step
	if _, err := source.Paths(); err != nil {
		return handleOCRError(err, log)
	}

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	recognizer, err := createRecognizer(ctx, engine, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := recognizer.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engine")
		}
	}()

	scanner := ocr.NewScanner(source, recognizer)
	stats, err := scanFrames(ctx, scanner, rawPath, log)
	if err != nil {
		return handleOCRError(err, log)
	}
	if stats.Frames > 0 && stats.Failed == stats.Frames {
		return handleOCRError(fmt.Errorf("all %d frames failed: %w", stats.Frames, scanner.Err()), log)
	}
	if stats.Recognized == 0 {
		log.Warn().Int("frames", stats.Frames).Msg("No text recognised in any frame, check frames.region")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanned %d frames (%d with text, %d failed), raw lines in %s\n",
		stats.Frames, stats.Recognized, stats.Failed, rawPath)

	if skipReconcile {
		return nil
	}

	result, err := reconcileScanned(cat, rawPath, opts, log)
	if err != nil && result == nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	if jsonOutput {
		if jsonErr := writeJSON(out, result); jsonErr != nil {
			return jsonErr
		}
	} else {
		printSummary(out, result, opts.OutputPath)
	}
	return err
}

// scanFrames appends the recognised line of every frame to rawPath.
func scanFrames(ctx context.Context, scanner *ocr.Scanner, rawPath string, log zerolog.Logger) (ocr.ScanStats, error) {
	const op = "scanFrames"

	writer, err := rawlines.Append(rawPath)
	if err != nil {
		return ocr.ScanStats{}, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	for line := range scanner.Lines(ctx) {
		written, err := writer.Write(line)
		if err != nil {
			writer.Close()
			return scanner.Stats(), fmt.Errorf("%s: %w", op, err)
		}
		if written {
			log.Debug().Str("line", line).Msg("Recognised")
		}
	}

	if err := writer.Close(); err != nil {
		return scanner.Stats(), fmt.Errorf("%s: failed to close raw line file: %w", op, err)
	}
	if err := ctx.Err(); err != nil {
		return scanner.Stats(), err
	}

	log.Info().
		Int("lines_written", writer.Written()).
		Dur("duration", time.Since(start)).
		Msg("Raw lines written")
	return scanner.Stats(), nil
}

// reconcileScanned reconciles the raw line file once scanning is done. It
// runs outside the scan timeout, which only bounds OCR work.
func reconcileScanned(cat *catalog.Catalog, rawPath string, opts reconcileOptions, log zerolog.Logger) (*reconciliation.Result, error) {
	ctx, cancel := createContextWithTimeout(0, log)
	defer cancel()

	return reconcileFile(ctx, cat, rawPath, opts, log)
}

// createRecognizer creates and configures the OCR engine
func createRecognizer(ctx context.Context, engine string, log zerolog.Logger) (ocr.TextRecognizer, error) {
	if strings.EqualFold(engine, ocr.EngineVision) {
		hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""
		if !hasCredentials {
			log.Warn().Msg("No Google Cloud credentials in environment, trying application default credentials")
		}
	}

	recognizer, err := ocr.NewRecognizer(ctx, engine, cfg.OCROptions())
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrMissingCredentials):
			log.Error().Err(err).Msg("Google Cloud credentials validation failed")
			return nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
				"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
				"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
				"2. Export GOOGLE_CREDENTIALS with inline JSON:\n" +
				"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n" +
				"3. Use Application Default Credentials (if gcloud is configured):\n" +
				"   gcloud auth application-default login\n\n" +
				"Original error: %w", err)
		case errors.Is(err, ocr.ErrEngineUnavailable):
			return nil, fmt.Errorf("the tesseract engine is not compiled into this binary, rebuild with -tags tesseract or use --engine vision: %w", err)
		default:
			log.Error().Err(err).Msg("Failed to create OCR engine")
			return nil, fmt.Errorf("failed to create OCR engine: %w", err)
		}
	}

	log.Debug().Str("engine", engine).Msg("OCR engine created successfully")
	return recognizer, nil
}

// handleOCRError provides user-friendly error messages for scan failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Scan failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("scan timed out. Lines recognised so far are kept in the raw file; increase --timeout or use --step")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("scan was canceled. Lines recognised so far are kept in the raw file")
	case errors.Is(err, frames.ErrNoFrames):
		return fmt.Errorf("no frame images found. Extract frames first, e.g. ffmpeg -i scan.mp4 frames/%%06d.png: %w", err)
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "auth:") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS "+
			"and that the service account has the 'Cloud Vision API User' role: %w", err)
	case strings.Contains(errStr, "QUOTA_EXCEEDED") ||
		strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud Vision API quota exceeded. Lower ocr.requests_per_second or check your project quotas")
	default:
		return fmt.Errorf("scan failed: %w", err)
	}
}
