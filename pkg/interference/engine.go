// Package interference scores how much of a fragmentation scan's isolation
// window ion current belongs to the targeted precursor, using a single-slot
// cache of the most recently centroided survey scan.
package interference

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/warn"
)

// CentroidProvider centroids the survey scan with the given number, or the
// closest thing it has: the returned CentroidedScan reports which scan the
// peaks actually belong to.
type CentroidProvider func(scanNumber int64) (core.CentroidedScan, error)

// Stats summarizes an engine's run.
type Stats struct {
	FragmentationScans int
	Scored             int
	PrecursorNotFound  int
	CacheMismatches    int
	CacheRefreshes     int
	ProviderErrors     int
}

// precursorCache holds the peaks of one survey scan, sorted by m/z.
type precursorCache struct {
	valid      bool
	scanNumber int64
	peaks      []core.CentroidPeak
}

// Engine scores fragmentation scans against the cached precursor spectrum.
// It is not safe for concurrent use; scans must arrive in acquisition order.
type Engine struct {
	calc     Calculator
	warnings warn.Sink
	cache    precursorCache

	mismatch       *warn.Counter
	notFound       *warn.Counter
	providerErrors *warn.Counter

	fragments int
	scored    int
	refreshes int
}

// NewEngine creates an Engine. A nil calc uses NewIsotopeCalculator, a nil
// sink discards warnings.
func NewEngine(calc Calculator, sink warn.Sink) *Engine {
	if calc == nil {
		calc = NewIsotopeCalculator()
	}
	if sink == nil {
		sink = warn.Discard
	}
	return &Engine{
		calc:           calc,
		warnings:       sink,
		mismatch:       warn.NewCounter(warn.DefaultFirst),
		notFound:       warn.NewCounter(warn.DefaultFirst),
		providerErrors: warn.NewCounter(warn.DefaultFirst),
	}
}

// cachedScan returns the scan number held in the cache.
func (e *Engine) cachedScan() (int64, bool) {
	return e.cache.scanNumber, e.cache.valid
}

// Score returns the interference score of fragment against precursorScan.
// It returns 0 without consulting the calculator when the score cannot be
// computed: SRM scans, survey scans, no isolation width, no parent m/z, or
// no centroided data for exactly precursorScan.
func (e *Engine) Score(fragment *core.ScanRecord, isolationWidth float64, chargeState int, precursorScan int64, provider CentroidProvider) float64 {
	if fragment.MRM == core.MRMSrm || !fragment.IsFragmentation() {
		return 0
	}
	e.fragments++

	parentMZ := fragment.ParentMZ()
	if isolationWidth <= 0 || parentMZ <= 0 {
		return 0
	}

	if !e.cache.valid || e.cache.scanNumber != precursorScan {
		if !e.refresh(fragment.ScanNumber, precursorScan, provider) {
			return 0
		}
	}
	if e.cache.scanNumber != precursorScan {
		return 0
	}

	window := e.window(parentMZ-isolationWidth/2, parentMZ+isolationWidth/2)
	score, err := e.calc.Interference(window, parentMZ, chargeState)
	if err != nil {
		if errors.Is(err, ErrPrecursorNotFound) {
			e.notFound.Hit(e.warnings, "Precursor m/z %.4f not found in survey scan %d for fragmentation scan %d",
				parentMZ, precursorScan, fragment.ScanNumber)
		} else {
			e.providerErrors.Hit(e.warnings, "Interference calculation failed for scan %d: %v", fragment.ScanNumber, err)
		}
		return 0
	}

	e.scored++
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// refresh replaces the cache wholesale with whatever the provider returns.
// It returns false when the provider failed or produced a different scan.
func (e *Engine) refresh(fragmentScan, precursorScan int64, provider CentroidProvider) bool {
	e.refreshes++
	cs, err := provider(precursorScan)
	if err != nil {
		e.cache = precursorCache{}
		e.providerErrors.Hit(e.warnings, "Unable to centroid precursor scan %d for fragmentation scan %d: %v",
			precursorScan, fragmentScan, err)
		return false
	}

	peaks := make([]core.CentroidPeak, len(cs.Peaks))
	copy(peaks, cs.Peaks)
	core.SortPeaks(peaks)
	e.cache = precursorCache{valid: true, scanNumber: cs.ScanNumber, peaks: peaks}

	if cs.ScanNumber != precursorScan {
		e.mismatch.Hit(e.warnings,
			"Most recent centroided scan is %d but fragmentation scan %d needs precursor scan %d; skipping interference",
			cs.ScanNumber, fragmentScan, precursorScan)
		return false
	}
	return true
}

// window returns the cached peaks with lo <= m/z <= hi.
func (e *Engine) window(lo, hi float64) []core.CentroidPeak {
	peaks := e.cache.peaks
	start := sort.Search(len(peaks), func(i int) bool { return peaks[i].MZ >= lo })
	end := sort.Search(len(peaks), func(i int) bool { return peaks[i].MZ > hi })
	return peaks[start:end]
}

// Stats returns counters accumulated so far.
func (e *Engine) Stats() Stats {
	return Stats{
		FragmentationScans: e.fragments,
		Scored:             e.scored,
		PrecursorNotFound:  e.notFound.Count,
		CacheMismatches:    e.mismatch.Count,
		CacheRefreshes:     e.refreshes,
		ProviderErrors:     e.providerErrors.Count,
	}
}

// Summary describes the precursor-not-found rate, or "" when there were none.
func (e *Engine) Summary() string {
	s := e.Stats()
	if s.PrecursorNotFound == 0 || s.FragmentationScans == 0 {
		return ""
	}
	pct := 100 * float64(s.PrecursorNotFound) / float64(s.FragmentationScans)
	return fmt.Sprintf("Precursor not found for %d of %d fragmentation scans (%.2f%%)",
		s.PrecursorNotFound, s.FragmentationScans, pct)
}

// Report emits the end-of-run summary through the engine's warning sink.
func (e *Engine) Report() {
	if msg := e.Summary(); msg != "" {
		e.warnings.Warn(msg)
	}
}
