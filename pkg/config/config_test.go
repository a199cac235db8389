package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(lookupMap(map[string]string{
		EnvLogLevel:           "debug",
		EnvNATSURL:            "nats://localhost:4222",
		EnvNATSSubject:        "",
		EnvNATSPeaks:          "true",
		EnvTopN:               " 150 ",
		EnvCutoff:             "1.5",
		EnvCentroidResolution: "60000",
		EnvAbortOnInvalid:     "1",
	}))
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	want := Config{
		LogLevel:           "debug",
		NATSURL:            "nats://localhost:4222",
		NATSSubject:        Default().NATSSubject,
		NATSPeaks:          true,
		TopN:               150,
		Cutoff:             1.5,
		CentroidResolution: 60000,
		AbortOnInvalid:     true,
		ChunkSize:          Default().ChunkSize,
	}
	if cfg != want {
		t.Errorf("FromEnv() = %+v, want %+v", cfg, want)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{EnvTopN, "many"},
		{EnvCutoff, "1%"},
		{EnvAbortOnInvalid, "maybe"},
		{EnvChunkSize, "1e3"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := FromEnv(lookupMap(map[string]string{tt.key: tt.value}))
			if err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("FromEnv(%s=%q) error = %v, want error naming the variable", tt.key, tt.value, err)
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SCANKEY_TOP_N=25\nSCANKEY_LOG_LEVEL=warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv(EnvTopN)
	})

	// Variables already in the environment win over .env.
	t.Setenv(EnvLogLevel, "error")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TopN != 25 {
		t.Errorf("TopN = %d, want 25", cfg.TopN)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error", cfg.LogLevel)
	}
}

func TestBindFlagsOverride(t *testing.T) {
	cfg := Default()
	cfg.TopN = 10
	cfg.NATSURL = "nats://env:4222"

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"--top-n", "3", "--abort-on-invalid"}); err != nil {
		t.Fatal(err)
	}

	if cfg.TopN != 3 {
		t.Errorf("TopN = %d, want 3", cfg.TopN)
	}
	if !cfg.AbortOnInvalid {
		t.Error("Expected AbortOnInvalid to be set")
	}
	if cfg.NATSURL != "nats://env:4222" {
		t.Errorf("NATSURL = %q, want environment value kept", cfg.NATSURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"negative top-n", func(c *Config) { c.TopN = -1 }, true},
		{"cutoff over 100", func(c *Config) { c.Cutoff = 150 }, true},
		{"negative resolution", func(c *Config) { c.CentroidResolution = -1 }, true},
		{"negative chunk", func(c *Config) { c.ChunkSize = -5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "warn"
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("log output = %q", buf.String())
	}
}
