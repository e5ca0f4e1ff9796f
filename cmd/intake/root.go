package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfoltran/intake/internal/config"
)

const version = "0.1.0"

var (
	cfgPath   string
	cfg       *config.Config
	logger    zerolog.Logger
	logOutput = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:     "intake",
	Short:   "CDC ingestion and segmentation engine",
	Version: version,
	Long: `intake streams row mutations from a PostgreSQL logical replication
slot, groups them into per-table segments, and writes each closed
segment to a columnar Parquet file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		var w zerolog.ConsoleWriter
		switch cfg.Logging.Format {
		case "json":
			logger = zerolog.New(logOutput).With().Timestamp().Logger()
		default:
			w = zerolog.ConsoleWriter{Out: logOutput, TimeFormat: time.RFC3339}
			logger = zerolog.New(w).With().Timestamp().Logger()
		}

		level, err := zerolog.ParseLevel(cfg.Logging.Level)
		if err != nil {
			level = zerolog.InfoLevel
		}
		logger = logger.Level(level)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to the YAML configuration file (required)")
	rootCmd.MarkPersistentFlagRequired("config") //nolint:errcheck
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
