// Package config holds ScanKey's run settings. Values come from defaults,
// then an optional .env file and SCANKEY_* environment variables, then
// command-line flags.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/ChrisMcGann/ScanKey/pkg/filter"
	"github.com/ChrisMcGann/ScanKey/pkg/writer/natspub"
	"github.com/ChrisMcGann/ScanKey/pkg/writer/sqlite"
)

// Environment variable names.
const (
	EnvLogLevel           = "SCANKEY_LOG_LEVEL"
	EnvNATSURL            = "SCANKEY_NATS_URL"
	EnvNATSSubject        = "SCANKEY_NATS_SUBJECT"
	EnvNATSPeaks          = "SCANKEY_NATS_PEAKS"
	EnvTopN               = "SCANKEY_TOP_N"
	EnvCutoff             = "SCANKEY_CUTOFF"
	EnvCentroidResolution = "SCANKEY_CENTROID_RESOLUTION"
	EnvAbortOnInvalid     = "SCANKEY_ABORT_ON_INVALID"
	EnvChunkSize          = "SCANKEY_CHUNK_SIZE"
)

// Config is the full set of tunable settings.
type Config struct {
	LogLevel string

	NATSURL     string
	NATSSubject string
	NATSPeaks   bool

	TopN   int
	Cutoff float64

	CentroidResolution float64
	AbortOnInvalid     bool
	ChunkSize          int
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:    "info",
		NATSSubject: natspub.DefaultSubject,
		ChunkSize:   sqlite.DefaultChunkSize,
	}
}

// Load returns the defaults overridden by a .env file in the working
// directory (if any) and by the process environment.
func Load() (Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv applies the SCANKEY_* variables found by lookup to the defaults.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	if v, ok := lookup(EnvNATSURL); ok {
		cfg.NATSURL = v
	}
	if v, ok := lookup(EnvNATSSubject); ok && v != "" {
		cfg.NATSSubject = v
	}

	var err error
	if cfg.NATSPeaks, err = envBool(lookup, EnvNATSPeaks, cfg.NATSPeaks); err != nil {
		return cfg, err
	}
	if cfg.TopN, err = envInt(lookup, EnvTopN, cfg.TopN); err != nil {
		return cfg, err
	}
	if cfg.Cutoff, err = envFloat(lookup, EnvCutoff, cfg.Cutoff); err != nil {
		return cfg, err
	}
	if cfg.CentroidResolution, err = envFloat(lookup, EnvCentroidResolution, cfg.CentroidResolution); err != nil {
		return cfg, err
	}
	if cfg.AbortOnInvalid, err = envBool(lookup, EnvAbortOnInvalid, cfg.AbortOnInvalid); err != nil {
		return cfg, err
	}
	if cfg.ChunkSize, err = envInt(lookup, EnvChunkSize, cfg.ChunkSize); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envInt(lookup func(string) (string, bool), key string, def int) (int, error) {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envFloat(lookup func(string) (string, bool), key string, def float64) (float64, error) {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func envBool(lookup func(string) (string, bool), key string, def bool) (bool, error) {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

// BindFlags registers the settings on fs with the current values as
// defaults, so flags that are set override the environment.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.NATSURL, "nats-url", c.NATSURL, "Publish scans to this NATS server (empty = disabled)")
	fs.StringVar(&c.NATSSubject, "nats-subject", c.NATSSubject, "NATS subject for published scans")
	fs.BoolVar(&c.NATSPeaks, "nats-peaks", c.NATSPeaks, "Include ion arrays in NATS messages")
	fs.IntVar(&c.TopN, "top-n", c.TopN, "Keep only top N most intense peaks when storing (0 = no limit)")
	fs.Float64Var(&c.Cutoff, "cutoff", c.Cutoff, "Intensity cutoff as % of base peak (0 = no cutoff)")
	fs.Float64Var(&c.CentroidResolution, "centroid-resolution", c.CentroidResolution, "Resolution hint passed to the centroider (0 = none)")
	fs.BoolVar(&c.AbortOnInvalid, "abort-on-invalid", c.AbortOnInvalid, "Stop at the first scan that fails classification")
	fs.IntVar(&c.ChunkSize, "chunk-size", c.ChunkSize, "Scans committed per database transaction")
}

// Filter returns the noise filter described by the settings.
func (c Config) Filter() filter.Config {
	return filter.Config{TopN: c.TopN, IntensityCutoff: c.Cutoff}
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	f := c.Filter()
	if err := f.Validate(); err != nil {
		return err
	}
	if c.CentroidResolution < 0 {
		return fmt.Errorf("centroid resolution must be non-negative, got %v", c.CentroidResolution)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be non-negative, got %d", c.ChunkSize)
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger returns a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
