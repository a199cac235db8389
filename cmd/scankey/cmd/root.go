// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/ScanKey/pkg/config"
	"github.com/ChrisMcGann/ScanKey/pkg/warn"
)

var (
	// Flags for import command
	inputFile   string
	inputFormat string
	outputFile  string
	srmMode     bool

	// Settings shared by every command; environment first, flags on top
	cfg    config.Config
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "scankey",
	Short: "ScanKey - scan classification and precursor interference scoring",
	Long: `ScanKey classifies mass spectrometry scans, scores how much of each
fragmentation scan's isolation window belongs to its precursor, and stores
the results in SQLite databases.

Features:
- Scan type labels (HMS, HCD-HMSn, CID-SRM, ...) and DIA detection
- Precursor interference scoring against the preceding survey scan
- SRM pseudo-scan reconstruction from chromatograms
- Optional publishing of every scan to NATS`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgErr != nil {
			return fmt.Errorf("failed to load configuration: %w", cfgErr)
		}
		return cfg.Validate()
	},
}

// Execute runs the root command with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cfg, cfgErr = config.Load()
	cfg.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)

	// Import command flags
	importCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input file path (required)")
	importCmd.Flags().StringVarP(&inputFormat, "from", "f", "", "Input format: mzml or mgf (auto-detect if not specified)")
	importCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output database file (required)")
	importCmd.Flags().BoolVar(&srmMode, "srm", false, "Reconstruct SRM scans from the file's chromatograms")

	importCmd.MarkFlagRequired("in")
	importCmd.MarkFlagRequired("out")

	validateCmd.Flags().StringVarP(&inputFormat, "from", "f", "", "Input format: mzml or mgf (auto-detect if not specified)")
	validateCmd.Flags().BoolVar(&srmMode, "srm", false, "Validate the file's SRM chromatograms instead of its spectra")
}

// newLogger returns the stderr logger and the warning sink built on it.
func newLogger() (*slog.Logger, warn.Sink) {
	logger := cfg.NewLogger(os.Stderr)
	return logger, warn.NewSlogSink(logger)
}
