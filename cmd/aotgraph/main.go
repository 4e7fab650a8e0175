package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aotgraph/aotgraph"
	"github.com/aotgraph/aotgraph/internal/config"
)

var (
	flagDB     string
	flagFormat string
	flagConfig string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "aotgraph",
	Short:         "Dependency graph over Dynamics 365 F&O AOT exports",
	Long:          "aotgraph ingests AOT XML export documents into a SQLite dependency graph and answers call, field-access, and inheritance queries over it.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: aotgraph.db, or config file value)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
}

var (
	flagStagingDir    string
	flagKeepExtracted bool
	flagWorkers       int
	flagVerbose       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest AOT export documents into the graph",
	Long:  "Resolves each path (XML file, directory, or zip bundle), parses the export documents, and reconciles them into the dependency graph. A failing source is reported and skipped; the command fails only when every source failed.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&flagStagingDir, "staging-dir", "", "directory for extracting zip bundles (default: system temp)")
	ingestCmd.Flags().BoolVar(&flagKeepExtracted, "keep-extracted", false, "keep extracted bundle contents after the run")
	ingestCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parse/extract worker count (default: CPU count)")
	ingestCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
}

// loadConfig merges the config file, environment, and flags, flags last.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DB = flagDB
	}
	if cmd.Flags().Changed("staging-dir") {
		cfg.Staging.Dir = flagStagingDir
	}
	if cmd.Flags().Changed("keep-extracted") {
		cfg.Staging.KeepExtracted = flagKeepExtracted
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	} else {
		switch cfg.Log.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	opts := []aotgraph.Option{
		aotgraph.WithLogger(logger),
		aotgraph.WithStagingDir(cfg.Staging.Dir),
		aotgraph.WithKeepExtracted(cfg.Staging.KeepExtracted),
	}
	if cfg.Workers > 0 {
		opts = append(opts, aotgraph.WithWorkers(cfg.Workers))
	}

	engine, err := aotgraph.New(cfg.DB, opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	report, ingestErr := engine.Ingest(context.Background(), args)
	if report != nil {
		if err := outputResult(CLIResult{Query: "ingest", Results: cliReport(report)}); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Ingested %d document(s) from %d source(s) in %s\n",
			report.DocumentsParsed, len(report.Sources)-report.FailedSources(),
			report.Duration.Round(time.Millisecond))
	}
	return ingestErr
}
