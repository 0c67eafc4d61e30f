// Package config loads diyscan settings from an optional diyscan.yaml file
// and DIYSCAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"diyscan/internal/frames"
	"diyscan/internal/logger"
	"diyscan/internal/ocr"
	"diyscan/internal/reconciliation"
)

// EnvPrefix prefixes every environment override, e.g. DIYSCAN_MATCH_SIMILARITY_THRESHOLD.
const EnvPrefix = "DIYSCAN"

// Config holds all configuration for the application
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Match   MatchConfig   `mapstructure:"match"`
	Frames  FramesConfig  `mapstructure:"frames"`
	OCR     OCRConfig     `mapstructure:"ocr"`
	Output  OutputConfig  `mapstructure:"output"`
	Sheets  SheetsConfig  `mapstructure:"sheets"`
	Log     LogConfig     `mapstructure:"log"`
}

// CatalogConfig locates the item catalog.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// MatchConfig tunes fuzzy matching.
type MatchConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MaxCandidates       int     `mapstructure:"max_candidates"`
}

// FramesConfig selects which frames are read and what part of them.
type FramesConfig struct {
	Region frames.Region `mapstructure:"region"`
	Step   int           `mapstructure:"step"`
}

// OCRConfig selects and tunes the text recognizer.
type OCRConfig struct {
	Engine            string        `mapstructure:"engine"`
	Language          string        `mapstructure:"language"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// OutputConfig controls the result file.
type OutputConfig struct {
	Label string `mapstructure:"label"`
}

// SheetsConfig is the optional Google Sheets export target.
type SheetsConfig struct {
	URL       string `mapstructure:"url"`
	Worksheet string `mapstructure:"worksheet"`
}

// LogConfig mirrors logger.LogConfig.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
	Output     string `mapstructure:"output"`
}

// Load reads the configuration. With an empty path it looks for diyscan.yaml
// in the working directory and in $HOME/.config/diyscan, and a missing file
// is not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("diyscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/diyscan")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("unable to bind environment: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.path", "names.json")

	v.SetDefault("match.similarity_threshold", reconciliation.DefaultSimilarityThreshold)
	v.SetDefault("match.max_candidates", reconciliation.DefaultMaxCandidates)

	region := frames.DefaultRegion()
	v.SetDefault("frames.region.top", region.Top)
	v.SetDefault("frames.region.bottom", region.Bottom)
	v.SetDefault("frames.region.left", region.Left)
	v.SetDefault("frames.region.right", region.Right)
	v.SetDefault("frames.step", 1)

	v.SetDefault("ocr.engine", ocr.EngineVision)
	v.SetDefault("ocr.language", "en")
	v.SetDefault("ocr.requests_per_second", 10.0)
	v.SetDefault("ocr.timeout", "30m")

	v.SetDefault("output.label", " DIY")

	v.SetDefault("sheets.url", "")
	v.SetDefault("sheets.worksheet", "DIY Recipes")

	defaults := logger.DefaultConfig()
	v.SetDefault("log.level", defaults.Level)
	v.SetDefault("log.format", defaults.Format)
	v.SetDefault("log.time_format", defaults.TimeFormat)
	v.SetDefault("log.output", defaults.Output)
}

// bindLegacyEnv keeps the plain variable names used in .env files working
// alongside the prefixed ones. The prefixed name wins when both are set.
func bindLegacyEnv(v *viper.Viper) error {
	legacy := map[string]string{
		"sheets.url":       "GOOGLE_SHEET_URL",
		"sheets.worksheet": "GOOGLE_SHEET_WORKSHEET",
		"log.level":        "LOG_LEVEL",
		"log.format":       "LOG_FORMAT",
		"log.time_format":  "LOG_TIME_FORMAT",
		"log.output":       "LOG_OUTPUT",
	}
	for key, name := range legacy {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if err := c.ReconcilerConfig().Validate(); err != nil {
		return err
	}
	if err := c.Frames.Region.Validate(); err != nil {
		return fmt.Errorf("frames.region: %w", err)
	}
	if c.Frames.Step < 1 {
		return fmt.Errorf("frames.step must be at least 1, got: %d", c.Frames.Step)
	}
	switch strings.ToLower(c.OCR.Engine) {
	case ocr.EngineVision, ocr.EngineTesseract:
	default:
		return fmt.Errorf("ocr.engine must be '%s' or '%s', got: %s", ocr.EngineVision, ocr.EngineTesseract, c.OCR.Engine)
	}
	if c.OCR.RequestsPerSecond < 0 {
		return fmt.Errorf("ocr.requests_per_second must not be negative, got: %g", c.OCR.RequestsPerSecond)
	}
	if c.OCR.Timeout <= 0 {
		return fmt.Errorf("ocr.timeout must be positive, got: %s", c.OCR.Timeout)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'console' or 'json', got: %s", c.Log.Format)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
		Output:     c.Log.Output,
	}
}

// ReconcilerConfig returns the matching settings.
func (c *Config) ReconcilerConfig() reconciliation.Config {
	return reconciliation.Config{
		SimilarityThreshold: c.Match.SimilarityThreshold,
		MaxCandidates:       c.Match.MaxCandidates,
	}
}

// Region returns the frame crop rectangle.
func (c *Config) Region() frames.Region {
	return c.Frames.Region
}

// OCROptions returns the recognizer options.
func (c *Config) OCROptions() ocr.Options {
	return ocr.Options{
		Language:          c.OCR.Language,
		RequestsPerSecond: c.OCR.RequestsPerSecond,
	}
}
