// ScanKey - mass spectrometry scan classification and interference scoring
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdobak/go-xerrors"

	"github.com/ChrisMcGann/ScanKey/cmd/scankey/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "scankey failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}
