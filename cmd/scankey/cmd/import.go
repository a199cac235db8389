package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/ScanKey/pkg/pipeline"
	"github.com/ChrisMcGann/ScanKey/pkg/writer/natspub"
	"github.com/ChrisMcGann/ScanKey/pkg/writer/sqlite"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Classify and score scans into a SQLite database",
	Long: `Read scans from an mzML or MGF file, classify them, score the precursor
interference of every fragmentation scan and store the results in a SQLite
database. Several runs can be imported into the same database.

Examples:
  # Import an mzML file
  scankey import --in run.mzML --out scans.db

  # Keep only the 150 most intense peaks and publish each scan to NATS
  scankey import --in run.mzML --out scans.db --top-n 150 --nats-url nats://localhost:4222

  # Reconstruct SRM pseudo scans from chromatograms
  scankey import --in srm.mzML --out scans.db --srm`,
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	format, err := detectFormat(inputFile, inputFormat)
	if err != nil {
		return err
	}
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}

	logger, warnings := newLogger()
	runID := uuid.NewString()

	fmt.Printf("Importing %s to %s...\n", inputFile, outputFile)
	fmt.Printf("Format: %s\n", format)
	fmt.Printf("Run ID: %s\n", runID)
	if cfg.TopN > 0 {
		fmt.Printf("Top N filter: %d\n", cfg.TopN)
	}
	if cfg.Cutoff > 0 {
		fmt.Printf("Intensity cutoff: %.1f%%\n", cfg.Cutoff)
	}

	writer, err := sqlite.NewWriter(outputFile, sqlite.Options{
		RunID:      runID,
		SourceFile: filepath.Base(inputFile),
		Filter:     cfg.Filter(),
		ChunkSize:  cfg.ChunkSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	sinks := pipeline.MultiSink{writer}
	if cfg.NATSURL != "" {
		pub, err := natspub.Connect(cfg.NATSURL, natspub.Options{
			Subject:      cfg.NATSSubject,
			RunID:        runID,
			IncludePeaks: cfg.NATSPeaks,
			Filter:       cfg.Filter(),
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, pub)
		fmt.Printf("Publishing to NATS subject: %s\n", pub.Subject())
	}

	driver := pipeline.New(pipeline.Options{
		Sink:               sinks,
		Warnings:           warnings,
		Logger:             logger,
		CentroidResolution: cfg.CentroidResolution,
		AbortOnInvalid:     cfg.AbortOnInvalid,
		Progress:           os.Stdout,
	})

	stats, err := runInput(cmd.Context(), driver, warnings, inputFile, format, srmMode)
	if err != nil {
		return err
	}

	// Finalize database
	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	fmt.Printf("\nImport complete!\n")
	printStats(os.Stdout, stats)
	fmt.Printf("Written: %d scans\n", stats.Written)
	fmt.Printf("Output: %s\n", outputFile)

	return nil
}
