// Package pipeline drives scans from a reader through classification and
// interference scoring into one or more sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ChrisMcGann/ScanKey/pkg/centroid"
	"github.com/ChrisMcGann/ScanKey/pkg/classify"
	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/interference"
	"github.com/ChrisMcGann/ScanKey/pkg/srm"
	"github.com/ChrisMcGann/ScanKey/pkg/warn"
)

const tracerName = "pkg/pipeline"

// RawScanReader streams scans in acquisition order. A scan returned by Scan
// must stay valid after the following call to Next.
type RawScanReader interface {
	Next() bool
	Scan() *core.RawScan
	Err() error
}

// SpectrumSink receives classified scans with their ion arrays.
type SpectrumSink interface {
	WriteScan(ctx context.Context, rec *core.ScanRecord, mzs, intensities []float64) error
}

// MultiSink writes every scan to each sink in turn, stopping at the first
// error.
type MultiSink []SpectrumSink

func (m MultiSink) WriteScan(ctx context.Context, rec *core.ScanRecord, mzs, intensities []float64) error {
	for _, s := range m {
		if err := s.WriteScan(ctx, rec, mzs, intensities); err != nil {
			return err
		}
	}
	return nil
}

// Options configures a Driver. Zero values select the defaults.
type Options struct {
	// Sink receives the records; nil classifies without storing.
	Sink     SpectrumSink
	Warnings warn.Sink
	Logger   *slog.Logger

	Centroider         centroid.Centroider
	Calculator         interference.Calculator
	CentroidResolution float64

	// AbortOnInvalid stops the run at the first scan that fails
	// classification instead of skipping it.
	AbortOnInvalid bool

	// Progress receives a line every ProgressEvery written scans.
	Progress      io.Writer
	ProgressEvery int
}

// Stats summarizes a run.
type Stats struct {
	Scans                 int
	Written               int
	Invalid               int
	Survey                int
	Fragmentation         int
	DIA                   int
	Synthetic             int
	IsolationWidthMissing int
	Interference          interference.Stats
	SRM                   srm.Stats
}

// Driver runs one dataset. It is not safe for concurrent use.
type Driver struct {
	opts       Options
	logger     *slog.Logger
	classifier *classify.Classifier
	engine     *interference.Engine
	invalid    *warn.Counter

	latestSurvey *core.RawScan
	stats        Stats
}

// New creates a Driver.
func New(opts Options) *Driver {
	if opts.Warnings == nil {
		opts.Warnings = warn.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Centroider == nil {
		opts.Centroider = centroid.Apex{}
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 1000
	}
	return &Driver{
		opts:       opts,
		logger:     opts.Logger,
		classifier: classify.New(opts.Warnings),
		engine:     interference.NewEngine(opts.Calculator, opts.Warnings),
		invalid:    warn.NewCounter(warn.DefaultFirst),
	}
}

// Stats returns the counters accumulated so far.
func (d *Driver) Stats() Stats {
	s := d.stats
	s.IsolationWidthMissing = d.classifier.IsolationWidthMissing()
	s.Interference = d.engine.Stats()
	return s
}

// Run classifies and scores every scan from reader and writes it to the sink.
// Cancellation is checked between scans; scans already written stay written.
func (d *Driver) Run(ctx context.Context, reader RawScanReader) (Stats, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Run")
	defer span.End()

	err := d.run(ctx, reader)
	d.report()

	stats := d.Stats()
	span.SetAttributes(
		attribute.Int("scans", stats.Scans),
		attribute.Int("written", stats.Written),
		attribute.Int("invalid", stats.Invalid),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return stats, err
}

func (d *Driver) run(ctx context.Context, reader RawScanReader) error {
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := reader.Scan()
		d.stats.Scans++

		rec, err := d.classifier.Classify(&raw.Descriptor)
		if err != nil {
			d.stats.Invalid++
			if d.opts.AbortOnInvalid {
				return fmt.Errorf("scan %d: %w", raw.Descriptor.ScanNumber, err)
			}
			d.invalid.Hit(d.opts.Warnings, "Skipping scan %d: %v", raw.Descriptor.ScanNumber, err)
			continue
		}

		if rec.IsFragmentation() {
			d.stats.Fragmentation++
			d.score(rec, raw)
		} else {
			d.stats.Survey++
			d.latestSurvey = raw
		}
		if rec.IsDIA {
			d.stats.DIA++
		}

		if err := d.write(ctx, rec, raw.MZs, raw.Intensities); err != nil {
			return err
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading input file: %w", err)
	}
	return nil
}

// score fills the interference score of a fragmentation scan. SRM scans are
// left unscored.
func (d *Driver) score(rec *core.ScanRecord, raw *core.RawScan) {
	if rec.MRM == core.MRMSrm {
		return
	}

	precursor := raw.Descriptor.PrecursorScanNumber
	if precursor == 0 && d.latestSurvey != nil {
		precursor = d.latestSurvey.Descriptor.ScanNumber
	}
	width := 0.0
	if rec.IsolationWidthMZ != nil {
		width = *rec.IsolationWidthMZ
	}
	charge := 0
	if rec.ChargeState != nil {
		charge = *rec.ChargeState
	}

	rec.SetInterference(d.engine.Score(rec, width, charge, precursor, d.centroidLatest))
}

// centroidLatest centroids the most recent survey scan, whatever number was
// requested; the engine detects the mismatch.
func (d *Driver) centroidLatest(int64) (core.CentroidedScan, error) {
	raw := d.latestSurvey
	if raw == nil {
		return core.CentroidedScan{}, errors.New("no survey scan has been read")
	}

	var peaks []core.CentroidPeak
	var err error
	if raw.Centroided {
		peaks, err = centroid.Peaks(raw.MZs, raw.Intensities)
	} else {
		peaks, err = d.opts.Centroider.Centroid(raw.MZs, raw.Intensities, d.opts.CentroidResolution)
	}
	if err != nil {
		return core.CentroidedScan{}, err
	}
	return core.CentroidedScan{ScanNumber: raw.Descriptor.ScanNumber, Peaks: peaks}, nil
}

func (d *Driver) write(ctx context.Context, rec *core.ScanRecord, mzs, intensities []float64) error {
	if d.opts.Sink != nil {
		if err := d.opts.Sink.WriteScan(ctx, rec, mzs, intensities); err != nil {
			return fmt.Errorf("failed to write scan %d: %w", rec.ScanNumber, err)
		}
	}
	d.stats.Written++
	if d.opts.Progress != nil && d.stats.Written%d.opts.ProgressEvery == 0 {
		fmt.Fprintf(d.opts.Progress, "Processed %d scans...\n", d.stats.Written)
	}
	return nil
}

// RunChromatograms reconstructs pseudo scans from SRM chromatograms and
// writes them in ascending scan number order.
func (d *Driver) RunChromatograms(ctx context.Context, open srm.TraceOpener) (Stats, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.RunChromatograms")
	defer span.End()

	err := d.runChromatograms(ctx, open)
	stats := d.Stats()
	span.SetAttributes(attribute.Int("synthetic", stats.Synthetic))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return stats, err
}

func (d *Driver) runChromatograms(ctx context.Context, open srm.TraceOpener) error {
	rec := srm.New(d.opts.Warnings, d.logger)
	scans, err := rec.Reconstruct(ctx, open)
	d.stats.SRM = rec.Stats()
	if err != nil {
		return err
	}
	d.logger.Info("reconstructed SRM scans",
		slog.Int("traces", d.stats.SRM.TracesRetained),
		slog.Float64("median_step_min", d.stats.SRM.MedianTimeStep),
		slog.Int("scans", len(scans)))

	for _, sim := range scans {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.stats.Scans++
		d.stats.Synthetic++
		if err := d.write(ctx, sim.Record, sim.MZs, sim.Intensities); err != nil {
			return err
		}
	}
	return nil
}

// report emits the end-of-run summaries.
func (d *Driver) report() {
	d.engine.Report()

	stats := d.Stats()
	if stats.IsolationWidthMissing > 0 {
		d.opts.Warnings.Warn(fmt.Sprintf("Isolation width not found for %d of %d fragmentation scans",
			stats.IsolationWidthMissing, stats.Fragmentation))
	}
	d.logger.Info("run complete",
		slog.Int("scans", stats.Scans),
		slog.Int("written", stats.Written),
		slog.Int("invalid", stats.Invalid),
		slog.Int("fragmentation", stats.Fragmentation),
		slog.Int("scored", stats.Interference.Scored),
		slog.Int("dia", stats.DIA))
}
