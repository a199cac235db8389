package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/ScanKey/pkg/writer/sqlite"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a scan database",
	Long:  `Print per-run statistics about a scan database including scan counts by scan type, DIA scans and the mean interference score.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := sqlite.Summarize(args[0])
		if err != nil {
			return err
		}
		printSummaries(os.Stdout, runs)
		return nil
	},
}

func printSummaries(w io.Writer, runs []sqlite.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return
	}
	for i, r := range runs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Run: %s\n", r.RunID)
		if r.SourceFile != "" {
			fmt.Fprintf(w, "Source: %s\n", r.SourceFile)
		}
		if r.CreationDate != "" {
			fmt.Fprintf(w, "Created: %s\n", r.CreationDate)
		}
		fmt.Fprintf(w, "Scans: %d (DIA: %d)\n", r.Scans, r.DIA)
		if r.Scored > 0 {
			fmt.Fprintf(w, "Interference: %d scored, mean %.3f\n", r.Scored, r.MeanInterference)
		}
		for _, lc := range r.Labels {
			fmt.Fprintf(w, "  %-16s %d\n", lc.Label, lc.Count)
		}
	}
}
