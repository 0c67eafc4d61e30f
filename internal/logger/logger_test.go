package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// restoreGlobals puts the package-level zerolog state back after a test.
func restoreGlobals(t *testing.T) {
	t.Helper()
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	prevTimeFormat := zerolog.TimeFieldFormat
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
		zerolog.TimeFieldFormat = prevTimeFormat
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, time.RFC3339, cfg.TimeFormat)
	assert.Equal(t, "stderr", cfg.Output)
}

func TestSetupWriterJSON(t *testing.T) {
	restoreGlobals(t)

	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, LogConfig{Level: "debug", Format: "json", TimeFormat: time.RFC3339}))

	log := WithComponent("reconciler")
	log.Debug().Str("line", "acom stool").Msg("Fuzzy match")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "reconciler", entry["component"])
	assert.Equal(t, "acom stool", entry["line"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "Fuzzy match", entry["message"])
}

func TestSetupWriterLevelFilters(t *testing.T) {
	restoreGlobals(t)

	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, LogConfig{Level: "WARN", Format: "json"}))

	log := GetLogger()
	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	restoreGlobals(t)

	err := SetupWriter(&bytes.Buffer{}, LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestSetupFileOutput(t *testing.T) {
	restoreGlobals(t)

	path := filepath.Join(t.TempDir(), "diyscan.log")
	require.NoError(t, Setup(LogConfig{Level: "info", Format: "json", Output: path}))

	l := WithComponent("test")
	l.Info().Msg("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
