package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/ScanKey/pkg/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate input file format and contents",
	Long: `Stream an input file through classification and interference scoring
without storing anything, and report how many scans were invalid or missing
information.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := detectFormat(path, inputFormat)
	if err != nil {
		return err
	}

	logger, warnings := newLogger()
	driver := pipeline.New(pipeline.Options{
		Warnings:           warnings,
		Logger:             logger,
		CentroidResolution: cfg.CentroidResolution,
		AbortOnInvalid:     cfg.AbortOnInvalid,
	})

	stats, err := runInput(cmd.Context(), driver, warnings, path, format, srmMode)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("File: %s\n", path)
	printStats(os.Stdout, stats)
	if stats.Invalid == 0 {
		fmt.Println("Valid: all scans classified")
	}
	return nil
}
