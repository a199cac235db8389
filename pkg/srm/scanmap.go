package srm

import (
	"math"
	"sort"
)

// MinTimeStep is the smallest median time step used for pseudo scan
// assignment; smaller medians are clamped to it.
const MinTimeStep = 1e-6

// scansPerStep spreads pseudo scans so that one median time step spans this
// many scan numbers, leaving room for collision bumps.
const scansPerStep = 100

// median returns the median of values, or 0 for an empty slice.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// PositiveDiffMedian returns the median of the positive differences between
// adjacent times, or 0 when there are none.
func PositiveDiffMedian(times []float64) float64 {
	var diffs []float64
	for i := 1; i < len(times); i++ {
		if d := times[i] - times[i-1]; d > 0 {
			diffs = append(diffs, d)
		}
	}
	return median(diffs)
}

// MedianTimeStep returns the median of all per-trace medians, clamped to
// MinTimeStep. A trace without a positive step contributes 0.
func MedianTimeStep(perTrace []float64) float64 {
	step := median(perTrace)
	if math.Abs(step) < MinTimeStep {
		return MinTimeStep
	}
	return step
}

// distinctSorted returns the distinct values of times in ascending order.
func distinctSorted(times []float64) []float64 {
	out := make([]float64, len(times))
	copy(out, times)
	sort.Float64s(out)
	n := 0
	for i, t := range out {
		if i > 0 && t == out[n-1] {
			continue
		}
		out[n] = t
		n++
	}
	return out[:n]
}

// AssignPseudoScans maps each distinct time to round(t/step*100)+1, then
// walks the times in ascending order resolving collisions: a time that lands
// on the previous time's scan is bumped by one if the next time's scan is at
// least two higher, or if it is the last time.
// It returns the distinct sorted times and their scans.
func AssignPseudoScans(times []float64, step float64) ([]float64, []int64) {
	if step < MinTimeStep {
		step = MinTimeStep
	}
	distinct := distinctSorted(times)
	scans := make([]int64, len(distinct))
	for i, t := range distinct {
		scans[i] = int64(math.Round(t/step*scansPerStep)) + 1
	}

	last := len(scans) - 1
	for i := 1; i <= last; i++ {
		if scans[i] != scans[i-1] {
			continue
		}
		if i == last || scans[i+1]-scans[i] >= 2 {
			scans[i]++
		}
	}
	return distinct, scans
}

// ElutionTimeScanMap is the master map from elution time to pseudo scan.
// The first value recorded for a time is authoritative.
type ElutionTimeScanMap struct {
	scans map[float64]int64
}

// NewElutionTimeScanMap returns an empty map.
func NewElutionTimeScanMap() *ElutionTimeScanMap {
	return &ElutionTimeScanMap{scans: make(map[float64]int64)}
}

// Disagreement is a time whose scan in a later trace differs from the master.
type Disagreement struct {
	Time   float64
	Master int64
	Trace  int64
}

// Merge adds the pairs of one trace. Times already present keep their scan;
// conflicting values are returned.
func (m *ElutionTimeScanMap) Merge(times []float64, scans []int64) []Disagreement {
	var conflicts []Disagreement
	for i, t := range times {
		existing, ok := m.scans[t]
		if !ok {
			m.scans[t] = scans[i]
			continue
		}
		if existing != scans[i] {
			conflicts = append(conflicts, Disagreement{Time: t, Master: existing, Trace: scans[i]})
		}
	}
	return conflicts
}

// Lookup returns the pseudo scan for elution time t.
func (m *ElutionTimeScanMap) Lookup(t float64) (int64, bool) {
	s, ok := m.scans[t]
	return s, ok
}

// Len returns the number of distinct times.
func (m *ElutionTimeScanMap) Len() int {
	return len(m.scans)
}
