package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/wildwatch-go/service/config"
	"github.com/khaledhikmat/wildwatch-go/service/lgr"
)

var (
	// Set at build time with -ldflags "-X main.version=..."
	version = "dev"
	commit  = "none"

	settingsFile string
	output       string
)

var rootCmd = &cobra.Command{
	Use:   "wildwatch",
	Short: "Perimeter wildlife monitoring",
	Long: `wildwatch watches perimeter cameras, classifies detected animals and
people by danger tier and alerts farmers, forest authorities and security
contacts by SMS, email and sound.

Examples:
  # Run agents for every configured camera
  wildwatch run --config settings.yaml

  # Show the latest alerts
  wildwatch history --limit 20

  # See how a detection would be handled
  wildwatch classify tiger --height 200`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsFile, "config", "c", os.Getenv("WILDWATCH_CONFIG"), "settings YAML file (built-in defaults when empty)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
}

// loadConfig loads the .env file in dev, reads the settings and initialises
// the logger from them.
func loadConfig() (config.IService, error) {
	if env := os.Getenv("RUN_TIME_ENV"); env == "dev" || env == "" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, xerrors.Errorf("error loading .env file: %w", err)
		}
	}

	var (
		cfgSvc config.IService
		err    error
	)
	if settingsFile == "" {
		cfgSvc = config.NewHardCoded()
	} else {
		cfgSvc, err = config.NewFile(settingsFile)
		if err != nil {
			return nil, xerrors.Errorf("error loading settings %s: %w", settingsFile, err)
		}
	}

	logging := cfgSvc.GetLogging()
	lgr.Init(lgr.Options{
		Level:    lgr.ParseLevel(logging.Level),
		File:     logging.File,
		NoColor:  logging.NoColor,
		MaxAge:   7,
		Backups:  5,
		Compress: true,
	})
	lgr.Logger.Debug("configuration loaded", slog.String("file", settingsFile))

	return cfgSvc, nil
}
