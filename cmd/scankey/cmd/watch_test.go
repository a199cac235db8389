package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/writer/natspub"
)

func TestWatchScans(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	defer srv.Shutdown()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var buf bytes.Buffer
	errCh := make(chan error, 1)
	go func() {
		errCh <- watchScans(ctx, nc, "scans.watch", 1, &buf)
	}()

	pub := natspub.New(nc, natspub.Options{Subject: "scans.watch", RunID: "run-9"})
	rec := &core.ScanRecord{
		ScanNumber: 42, MSLevel: 2, ScanTypeLabel: "HCD-HMSn",
		ParentIonMZ: core.Float(700.5), InterferenceScore: core.Float(0.8),
	}

	// Publish until the subscription has seen a message.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := pub.WriteScan(ctx, rec, nil, nil); err != nil {
			t.Fatal(err)
		}
		select {
		case err := <-errCh:
			if err != nil {
				t.Fatalf("watchScans() error = %v", err)
			}
			got := buf.String()
			for _, want := range []string{"run run-9", "scan 42", "HCD-HMSn", "parent=700.5000", "interference=0.800"} {
				if !strings.Contains(got, want) {
					t.Errorf("output %q missing %q", got, want)
				}
			}
			if strings.Count(got, "\n") != 1 {
				t.Errorf("Expected exactly one line, got %q", got)
			}
			return
		case <-ticker.C:
		case <-ctx.Done():
			t.Fatal("timeout waiting for watched scan")
		}
	}
}

func TestWatchRequiresURL(t *testing.T) {
	saved := cfg.NATSURL
	cfg.NATSURL = ""
	defer func() { cfg.NATSURL = saved }()

	if err := runWatch(watchCmd, nil); err == nil {
		t.Error("Expected error without a NATS URL")
	}
}

func TestPrintMessageEmpty(t *testing.T) {
	var buf bytes.Buffer
	printMessage(&buf, natspub.Message{RunID: "r"})
	if !strings.Contains(buf.String(), "empty message") {
		t.Errorf("output = %q", buf.String())
	}
}
