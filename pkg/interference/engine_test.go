package interference

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/warn"
)

// countingProvider serves fixed peaks as the given scan and counts calls.
type countingProvider struct {
	scan  int64
	peaks []core.CentroidPeak
	calls int
}

func (p *countingProvider) provide(int64) (core.CentroidedScan, error) {
	p.calls++
	return core.CentroidedScan{ScanNumber: p.scan, Peaks: p.peaks}, nil
}

func fragment(scan int64, parent float64) *core.ScanRecord {
	return &core.ScanRecord{ScanNumber: scan, MSLevel: 2, ParentIonMZ: core.Float(parent)}
}

// Precursor at 500.0 (z=2) with two isotopes plus one interfering ion.
var surveyPeaks = []core.CentroidPeak{
	{MZ: 420.0, Intensity: 5000},
	{MZ: 500.0, Intensity: 600},
	{MZ: 500.5017, Intensity: 300},
	{MZ: 500.8, Intensity: 100},
	{MZ: 501.0034, Intensity: 0},
	{MZ: 580.0, Intensity: 9000},
}

func TestScoreCacheHit(t *testing.T) {
	p := &countingProvider{scan: 100, peaks: surveyPeaks}
	e := NewEngine(nil, nil)

	first := e.Score(fragment(101, 500.0), 2.0, 2, 100, p.provide)
	second := e.Score(fragment(102, 500.0), 2.0, 2, 100, p.provide)

	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls)
	}
	if first != second {
		t.Errorf("scores differ on cache hit: %v vs %v", first, second)
	}
	if math.Abs(first-0.9) > 1e-9 {
		t.Errorf("Score() = %v, want 0.9", first)
	}
}

func TestScoreRefreshOnNewPrecursor(t *testing.T) {
	p := &countingProvider{scan: 100, peaks: surveyPeaks}
	e := NewEngine(nil, nil)
	e.Score(fragment(101, 500.0), 2.0, 2, 100, p.provide)

	p.scan = 200
	e.Score(fragment(201, 500.0), 2.0, 2, 200, p.provide)
	if p.calls != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls)
	}
	if scan, ok := e.cachedScan(); !ok || scan != 200 {
		t.Errorf("cachedScan() = %d, %v; want 200, true", scan, ok)
	}
	e.Score(fragment(202, 500.0), 2.0, 2, 200, p.provide)
	if p.calls != 2 {
		t.Errorf("provider calls after hit = %d, want 2", p.calls)
	}
}

func TestScoreCacheMismatch(t *testing.T) {
	var sink warn.Collector
	p := &countingProvider{scan: 500, peaks: surveyPeaks}
	e := NewEngine(nil, &sink)

	got := e.Score(fragment(502, 500.0), 2.0, 2, 501, p.provide)
	if got != 0 {
		t.Errorf("Score() = %v, want 0", got)
	}
	if sink.Len() != 1 {
		t.Fatalf("got %d warnings, want 1: %v", sink.Len(), sink.Messages())
	}
	if !strings.Contains(sink.Messages()[0], "precursor scan 501") {
		t.Errorf("warning = %q", sink.Messages()[0])
	}
	if e.Stats().CacheMismatches != 1 {
		t.Errorf("CacheMismatches = %d, want 1", e.Stats().CacheMismatches)
	}
}

type fixedCalc struct {
	score float64
	err   error
	calls int
}

func (c *fixedCalc) Interference([]core.CentroidPeak, float64, int) (float64, error) {
	c.calls++
	return c.score, c.err
}

func TestScoreGuards(t *testing.T) {
	srm := fragment(10, 500)
	srm.MRM = core.MRMSrm
	survey := &core.ScanRecord{ScanNumber: 11, MSLevel: 1}
	noParent := &core.ScanRecord{ScanNumber: 12, MSLevel: 2}

	tests := []struct {
		name  string
		scan  *core.ScanRecord
		width float64
	}{
		{"srm", srm, 2.0},
		{"survey scan", survey, 2.0},
		{"no isolation width", fragment(13, 500), 0},
		{"no parent", noParent, 2.0},
		{"zero parent", fragment(14, 0), 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sink warn.Collector
			calc := &fixedCalc{score: 0.7}
			p := &countingProvider{scan: 1, peaks: surveyPeaks}
			e := NewEngine(calc, &sink)

			if got := e.Score(tt.scan, tt.width, 2, 1, p.provide); got != 0 {
				t.Errorf("Score() = %v, want 0", got)
			}
			if calc.calls != 0 || p.calls != 0 {
				t.Errorf("calculator calls = %d, provider calls = %d; want 0, 0", calc.calls, p.calls)
			}
			if sink.Len() != 0 {
				t.Errorf("unexpected warnings: %v", sink.Messages())
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	for _, v := range []float64{-0.5, 0, 0.3, 1, 7} {
		calc := &fixedCalc{score: v}
		p := &countingProvider{scan: 1, peaks: surveyPeaks}
		got := NewEngine(calc, nil).Score(fragment(2, 500), 2.0, 2, 1, p.provide)
		if got < 0 || got > 1 {
			t.Errorf("Score() with calculator value %v = %v, want within [0,1]", v, got)
		}
	}
}

func TestPrecursorNotFoundTally(t *testing.T) {
	var sink warn.Collector
	calc := &fixedCalc{err: ErrPrecursorNotFound}
	p := &countingProvider{scan: 1, peaks: surveyPeaks}
	e := NewEngine(calc, &sink)

	for i := 0; i < 20; i++ {
		e.Score(fragment(int64(i+2), 500), 2.0, 2, 1, p.provide)
	}

	if got := e.Stats().PrecursorNotFound; got != 20 {
		t.Errorf("PrecursorNotFound = %d, want 20", got)
	}
	// occurrences 1-5, 10 and 20
	if sink.Len() != 7 {
		t.Errorf("got %d warnings, want 7", sink.Len())
	}

	e.Report()
	msgs := sink.Messages()
	if last := msgs[len(msgs)-1]; !strings.Contains(last, "20 of 20 fragmentation scans (100.00%)") {
		t.Errorf("summary = %q", last)
	}
}

func TestProviderError(t *testing.T) {
	var sink warn.Collector
	e := NewEngine(nil, &sink)
	failing := func(int64) (core.CentroidedScan, error) {
		return core.CentroidedScan{}, errors.New("no survey data")
	}
	if got := e.Score(fragment(2, 500), 2.0, 2, 1, failing); got != 0 {
		t.Errorf("Score() = %v, want 0", got)
	}
	if _, ok := e.cachedScan(); ok {
		t.Error("Expected cache to be invalid after provider error")
	}
	if sink.Len() != 1 {
		t.Errorf("got %d warnings, want 1", sink.Len())
	}
}

func TestSummaryEmptyWithoutFailures(t *testing.T) {
	e := NewEngine(nil, nil)
	if s := e.Summary(); s != "" {
		t.Errorf("Summary() = %q, want empty", s)
	}
}
