package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/ScanKey/pkg/pipeline"
	"github.com/ChrisMcGann/ScanKey/pkg/reader/mgf"
	"github.com/ChrisMcGann/ScanKey/pkg/reader/mzml"
	"github.com/ChrisMcGann/ScanKey/pkg/warn"
)

const (
	formatMzML = "mzml"
	formatMGF  = "mgf"
)

// detectFormat returns the normalized input format, falling back to the file
// extension when format is empty.
func detectFormat(path, format string) (string, error) {
	if format == "" {
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".mzml":
			format = formatMzML
		case ".mgf":
			format = formatMGF
		default:
			return "", fmt.Errorf("cannot auto-detect format from extension '%s', please specify --from", ext)
		}
	}

	format = strings.ToLower(format)
	if format != formatMzML && format != formatMGF {
		return "", fmt.Errorf("invalid input format '%s', must be mzml or mgf", format)
	}
	return format, nil
}

// runInput drives path through d. mzML files are read for spectra unless
// srm is set; a file that holds no spectra falls back to its chromatograms.
// Readers report unreadable entries to warnings.
func runInput(ctx context.Context, d *pipeline.Driver, warnings warn.Sink, path, format string, srm bool) (pipeline.Stats, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return pipeline.Stats{}, fmt.Errorf("input file does not exist: %s", path)
	}
	if srm {
		if format != formatMzML {
			return pipeline.Stats{}, fmt.Errorf("SRM reconstruction requires mzML input, got %s", format)
		}
		return d.RunChromatograms(ctx, mzml.ChromatogramOpener(path, warnings))
	}

	f, err := os.Open(path)
	if err != nil {
		return pipeline.Stats{}, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	if format == formatMGF {
		reader := mgf.NewReader(f)
		reader.SetWarnings(warnings)
		stats, err := d.Run(ctx, reader)
		if reader.Skipped() > 0 {
			fmt.Printf("Unreadable spectra skipped: %d\n", reader.Skipped())
		}
		return stats, err
	}

	reader := mzml.NewReader(f)
	reader.SetWarnings(warnings)
	stats, err := d.Run(ctx, reader)
	if reader.Skipped() > 0 {
		fmt.Printf("Unreadable spectra skipped: %d\n", reader.Skipped())
	}
	if err != nil || reader.Count()+reader.Skipped() > 0 {
		return stats, err
	}
	fmt.Println("No spectra found, reconstructing SRM scans from chromatograms")
	return d.RunChromatograms(ctx, mzml.ChromatogramOpener(path, warnings))
}

// printStats writes the end-of-run summary block.
func printStats(w io.Writer, stats pipeline.Stats) {
	fmt.Fprintf(w, "Scans read: %d\n", stats.Scans)
	fmt.Fprintf(w, "Survey: %d, fragmentation: %d, DIA: %d\n", stats.Survey, stats.Fragmentation, stats.DIA)
	if stats.Synthetic > 0 {
		fmt.Fprintf(w, "SRM pseudo scans: %d (from %d chromatograms)\n", stats.Synthetic, stats.SRM.TracesRetained)
	}
	if stats.Invalid > 0 {
		fmt.Fprintf(w, "Skipped: %d scans (validation errors)\n", stats.Invalid)
	}
	if stats.IsolationWidthMissing > 0 {
		fmt.Fprintf(w, "Isolation width not found: %d scans\n", stats.IsolationWidthMissing)
	}
	if stats.Interference.Scored > 0 {
		fmt.Fprintf(w, "Interference scored: %d scans\n", stats.Interference.Scored)
	}
}
