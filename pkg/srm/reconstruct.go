// Package srm rebuilds scans from SRM/MRM chromatograms, which carry
// (time, intensity) points per transition but no scan numbers. It assigns
// pseudo scan numbers from elution times and packs the points of every
// transition into simulated spectra.
package srm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/warn"
)

// TraceReader streams chromatogram traces.
type TraceReader interface {
	Next() bool
	Trace() *core.ChromatogramTrace
	Err() error
}

// TraceOpener opens a fresh TraceReader over the same source.
type TraceOpener func() (TraceReader, error)

// SimulatedScan is one reconstructed scan and its ion arrays, sorted by m/z.
type SimulatedScan struct {
	Record      *core.ScanRecord
	MZs         []float64
	Intensities []float64
}

// Stats summarizes one reconstruction.
type Stats struct {
	TracesRead     int
	TracesRetained int
	MedianTimeStep float64
	DistinctTimes  int
	PseudoScans    int
	Disagreements  int
	LookupErrors   int
	DroppedPoints  int
}

// Reconstructor runs one reconstruction; create a new one per dataset.
type Reconstructor struct {
	warnings      warn.Sink
	logger        *slog.Logger
	disagreements *warn.Counter
	lookupErrors  *warn.Counter
	stats         Stats
}

// New creates a Reconstructor. Warnings go to sink; dropped duplicate points
// are logged at debug level on logger.
func New(sink warn.Sink, logger *slog.Logger) *Reconstructor {
	if sink == nil {
		sink = warn.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconstructor{
		warnings:      sink,
		logger:        logger,
		disagreements: warn.NewCounter(warn.DefaultFirst),
		lookupErrors:  warn.NewCounter(warn.DefaultFirst),
	}
}

// Stats returns the counters of the last run.
func (r *Reconstructor) Stats() Stats {
	s := r.stats
	s.Disagreements = r.disagreements.Count
	s.LookupErrors = r.lookupErrors.Count
	return s
}

func closeReader(reader TraceReader) {
	if c, ok := reader.(io.Closer); ok {
		c.Close()
	}
}

func retained(kind core.TraceKind) bool {
	return kind == core.TraceSRM || kind == core.TraceSIM
}

// BuildScanMap reads every retained trace once and returns the frozen
// master elution time map.
func (r *Reconstructor) BuildScanMap(ctx context.Context, open TraceOpener) (*ElutionTimeScanMap, error) {
	reader, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to open chromatograms: %w", err)
	}
	defer closeReader(reader)

	var traceTimes [][]float64
	var medians []float64
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr := reader.Trace()
		r.stats.TracesRead++
		if !retained(tr.Kind) {
			continue
		}
		if _, err := tr.Len(); err != nil {
			r.warnings.Warn(fmt.Sprintf("Skipping chromatogram: %v", err))
			continue
		}
		r.stats.TracesRetained++
		traceTimes = append(traceTimes, tr.Times)
		medians = append(medians, PositiveDiffMedian(distinctSorted(tr.Times)))
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("error reading chromatograms: %w", err)
	}

	step := MedianTimeStep(medians)
	r.stats.MedianTimeStep = step

	master := NewElutionTimeScanMap()
	for _, times := range traceTimes {
		distinct, scans := AssignPseudoScans(times, step)
		for _, d := range master.Merge(distinct, scans) {
			r.disagreements.Hit(r.warnings,
				"Elution time %.4f maps to scan %d in the master map but scan %d in a later chromatogram; keeping %d",
				d.Time, d.Master, d.Trace, d.Master)
		}
	}
	r.stats.DistinctTimes = master.Len()
	return master, nil
}

type bucket struct {
	time   float64
	parent float64
	points map[float64]float64
}

// Reconstruct builds the master map from one pass over the traces, then
// reads them again from a fresh reader to fill the simulated spectra.
// Scans are returned in ascending scan number order.
func (r *Reconstructor) Reconstruct(ctx context.Context, open TraceOpener) ([]SimulatedScan, error) {
	master, err := r.BuildScanMap(ctx, open)
	if err != nil {
		return nil, err
	}

	reader, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to reopen chromatograms: %w", err)
	}
	defer closeReader(reader)

	buckets := make(map[int64]*bucket)
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr := reader.Trace()
		if !retained(tr.Kind) {
			continue
		}
		if _, err := tr.Len(); err != nil {
			continue
		}
		parent := tr.PrecursorMZ
		if parent <= 0 {
			parent = tr.TargetMZ
		}
		for i, t := range tr.Times {
			scan, ok := master.Lookup(t)
			if !ok {
				r.lookupErrors.Hit(r.warnings, "Scan time lookup error: elution time %.4f of chromatogram %s is not in the scan map",
					t, tr.ID)
				continue
			}
			r.store(buckets, scan, t, parent, tr.TargetMZ, tr.Intensities[i])
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("error reading chromatograms: %w", err)
	}

	scans := r.assemble(buckets)
	r.stats.PseudoScans = len(scans)
	return scans, nil
}

// store places mz -> intensity in the target scan, falling back to the scan
// before and after it when that m/z is taken.
func (r *Reconstructor) store(buckets map[int64]*bucket, scan int64, t, parent, mz, intensity float64) {
	for _, candidate := range []int64{scan, scan - 1, scan + 1} {
		if candidate < 1 {
			continue
		}
		b := buckets[candidate]
		if b == nil {
			b = &bucket{time: t, parent: parent, points: make(map[float64]float64)}
			buckets[candidate] = b
		}
		if _, taken := b.points[mz]; taken {
			continue
		}
		b.points[mz] = intensity
		return
	}
	r.stats.DroppedPoints++
	r.logger.Debug("dropping duplicate SRM point",
		slog.Int64("scan", scan),
		slog.Float64("mz", mz),
		slog.Float64("time", t))
}

func (r *Reconstructor) assemble(buckets map[int64]*bucket) []SimulatedScan {
	numbers := make([]int64, 0, len(buckets))
	for n, b := range buckets {
		if len(b.points) > 0 {
			numbers = append(numbers, n)
		}
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	out := make([]SimulatedScan, 0, len(numbers))
	for _, n := range numbers {
		b := buckets[n]
		sim := SimulatedScan{
			MZs:         make([]float64, 0, len(b.points)),
			Intensities: make([]float64, 0, len(b.points)),
		}
		for mz := range b.points {
			sim.MZs = append(sim.MZs, mz)
		}
		sort.Float64s(sim.MZs)

		rec := &core.ScanRecord{
			ScanNumber:       n,
			ElutionTimeMin:   b.time,
			MSLevel:          2,
			ScanTypeLabel:    "CID-SRM",
			MRM:              core.MRMSrm,
			ActivationMethod: "CID",
		}
		if b.parent > 0 {
			rec.ParentIonMZ = core.Float(b.parent)
		}
		for _, mz := range sim.MZs {
			y := b.points[mz]
			sim.Intensities = append(sim.Intensities, y)
			rec.TotalIonCurrent += y
			if y > rec.BasePeakIntensity {
				rec.BasePeakIntensity, rec.BasePeakMZ = y, mz
			}
		}
		rec.LowMass, rec.HighMass = sim.MZs[0], sim.MZs[len(sim.MZs)-1]

		if err := rec.Validate(); err != nil {
			r.warnings.Warn(fmt.Sprintf("Skipping simulated SRM scan: %v", err))
			continue
		}
		sim.Record = rec
		out = append(out, sim)
	}
	return out
}
