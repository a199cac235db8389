package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/ScanKey/pkg/writer/natspub"
)

var watchCount int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print scans published to NATS by a running import",
	Long: `Subscribe to the subject an import publishes on and print one line per
scan until interrupted.

Examples:
  scankey watch --nats-url nats://localhost:4222
  scankey watch --nats-url nats://localhost:4222 --nats-subject lab.scans --count 100`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntVar(&watchCount, "count", 0, "Exit after this many scans (0 = until interrupted)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if cfg.NATSURL == "" {
		return fmt.Errorf("--nats-url is required")
	}
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("scankey-watch"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	defer nc.Close()

	fmt.Printf("Watching %s on %s...\n", cfg.NATSSubject, cfg.NATSURL)
	return watchScans(cmd.Context(), nc, cfg.NATSSubject, watchCount, os.Stdout)
}

// watchScans prints every message received on subject until ctx is done or
// limit messages (when positive) have been printed.
func watchScans(ctx context.Context, nc *nats.Conn, subject string, limit int, w io.Writer) error {
	msgs := make(chan natspub.Message, 64)
	done := make(chan struct{})
	defer close(done)

	sub, err := natspub.Subscribe(nc, subject, func(_ context.Context, m natspub.Message) {
		select {
		case msgs <- m:
		case <-done:
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		return fmt.Errorf("failed to flush subscription: %w", err)
	}

	printed := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-msgs:
			printMessage(w, m)
			printed++
			if limit > 0 && printed >= limit {
				return nil
			}
		}
	}
}

func printMessage(w io.Writer, m natspub.Message) {
	rec := m.Scan
	if rec == nil {
		fmt.Fprintf(w, "run %s: empty message\n", m.RunID)
		return
	}
	fmt.Fprintf(w, "run %s scan %d %s ms%d rt=%.3f", m.RunID, rec.ScanNumber, rec.ScanTypeLabel, rec.MSLevel, rec.ElutionTimeMin)
	if rec.ParentIonMZ != nil {
		fmt.Fprintf(w, " parent=%.4f", *rec.ParentIonMZ)
	}
	if rec.InterferenceScore != nil {
		fmt.Fprintf(w, " interference=%.3f", *rec.InterferenceScore)
	}
	if rec.IsDIA {
		fmt.Fprint(w, " DIA")
	}
	fmt.Fprintln(w)
}
