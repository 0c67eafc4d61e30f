package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diyscan/internal/frames"
	"diyscan/internal/reconciliation"
)

// isolate clears every variable Load reads so the host environment cannot
// leak into a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{
		"DIYSCAN_CATALOG_PATH",
		"DIYSCAN_MATCH_SIMILARITY_THRESHOLD",
		"DIYSCAN_MATCH_MAX_CANDIDATES",
		"DIYSCAN_FRAMES_REGION_TOP",
		"DIYSCAN_FRAMES_STEP",
		"DIYSCAN_OCR_ENGINE",
		"DIYSCAN_OCR_TIMEOUT",
		"DIYSCAN_OUTPUT_LABEL",
		"DIYSCAN_SHEETS_URL",
		"DIYSCAN_SHEETS_WORKSHEET",
		"DIYSCAN_LOG_LEVEL",
		"DIYSCAN_LOG_FORMAT",
		"GOOGLE_SHEET_URL",
		"GOOGLE_SHEET_WORKSHEET",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"LOG_TIME_FORMAT",
		"LOG_OUTPUT",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "names.json", cfg.Catalog.Path)
	assert.Equal(t, reconciliation.DefaultConfig(), cfg.ReconcilerConfig())
	assert.Equal(t, frames.DefaultRegion(), cfg.Region())
	assert.Equal(t, 1, cfg.Frames.Step)
	assert.Equal(t, "vision", cfg.OCR.Engine)
	assert.Equal(t, 30*time.Minute, cfg.OCR.Timeout)
	assert.Equal(t, " DIY", cfg.Output.Label)
	assert.Empty(t, cfg.Sheets.URL)
	assert.Equal(t, "DIY Recipes", cfg.Sheets.Worksheet)

	logCfg := cfg.GetLoggerConfig()
	assert.Equal(t, "info", logCfg.Level)
	assert.Equal(t, "console", logCfg.Format)
	assert.Equal(t, "stderr", logCfg.Output)

	opts := cfg.OCROptions()
	assert.Equal(t, "en", opts.Language)
	assert.InDelta(t, 10.0, opts.RequestsPerSecond, 1e-9)
}

func TestLoadEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("DIYSCAN_CATALOG_PATH", "/data/recipes.yaml")
	t.Setenv("DIYSCAN_MATCH_SIMILARITY_THRESHOLD", "0.85")
	t.Setenv("DIYSCAN_MATCH_MAX_CANDIDATES", "3")
	t.Setenv("DIYSCAN_FRAMES_REGION_TOP", "480")
	t.Setenv("DIYSCAN_OCR_ENGINE", "tesseract")
	t.Setenv("DIYSCAN_OCR_TIMEOUT", "90s")
	t.Setenv("DIYSCAN_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/data/recipes.yaml", cfg.Catalog.Path)
	assert.Equal(t, reconciliation.Config{SimilarityThreshold: 0.85, MaxCandidates: 3}, cfg.ReconcilerConfig())
	assert.Equal(t, 480, cfg.Region().Top)
	assert.Equal(t, 540, cfg.Region().Bottom)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
	assert.Equal(t, 90*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadLegacyEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("GOOGLE_SHEET_URL", "https://docs.google.com/spreadsheets/d/abc/edit")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc/edit", cfg.Sheets.URL)
	assert.Equal(t, "warn", cfg.Log.Level)

	t.Setenv("DIYSCAN_LOG_LEVEL", "error")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "diyscan.yaml")
	content := `
catalog:
  path: recipes.csv
match:
  similarity_threshold: 0.6
frames:
  region:
    top: 600
    bottom: 660
    left: 100
    right: 1820
  step: 5
output:
  label: ""
sheets:
  worksheet: Scans
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "recipes.csv", cfg.Catalog.Path)
	assert.InDelta(t, 0.6, cfg.Match.SimilarityThreshold, 1e-9)
	assert.Equal(t, 1, cfg.Match.MaxCandidates)
	assert.Equal(t, frames.Region{Top: 600, Bottom: 660, Left: 100, Right: 1820}, cfg.Region())
	assert.Equal(t, 5, cfg.Frames.Step)
	assert.Empty(t, cfg.Output.Label)
	assert.Equal(t, "Scans", cfg.Sheets.Worksheet)

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("DIYSCAN_CATALOG_PATH", "other.json")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "other.json", cfg.Catalog.Path)
	})
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "threshold above one",
			env:     map[string]string{"DIYSCAN_MATCH_SIMILARITY_THRESHOLD": "1.5"},
			wantErr: "similarity threshold",
		},
		{
			name:    "no candidates",
			env:     map[string]string{"DIYSCAN_MATCH_MAX_CANDIDATES": "0"},
			wantErr: "max candidates",
		},
		{
			name:    "empty region",
			env:     map[string]string{"DIYSCAN_FRAMES_REGION_TOP": "540"},
			wantErr: "frames.region",
		},
		{
			name:    "unknown engine",
			env:     map[string]string{"DIYSCAN_OCR_ENGINE": "paddle"},
			wantErr: "ocr.engine",
		},
		{
			name:    "bad step",
			env:     map[string]string{"DIYSCAN_FRAMES_STEP": "0"},
			wantErr: "frames.step",
		},
		{
			name:    "bad log format",
			env:     map[string]string{"DIYSCAN_LOG_FORMAT": "xml"},
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config validation failed")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
