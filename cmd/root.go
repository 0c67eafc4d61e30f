package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"diyscan/internal/config"
	"diyscan/internal/logger"
)

var version = "1.0.0"

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "diyscan",
	Short: "Scan recorded recipe lists into a clean item inventory",
	Long: `diyscan reads the item names shown in a screen recording of a scrolling
recipe list, matches the recognised text against a catalog of known item
names and writes the sorted, de-duplicated list of items that were seen.

Frames are expected as image files extracted from the recording, e.g.:

  ffmpeg -i scan.mp4 frames/%06d.png

Configuration is read from diyscan.yaml (working directory or
~/.config/diyscan) and DIYSCAN_* environment variables; a .env file is
loaded first.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := logger.Setup(loaded.GetLoggerConfig()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded

		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Str("command", cmd.Name()).
			Msg("Configuration loaded")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./diyscan.yaml or ~/.config/diyscan/diyscan.yaml)")
}
