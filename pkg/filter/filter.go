// Package filter provides peak filtering applied before ion arrays are stored
package filter

import (
	"fmt"
	"sort"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 // Keep only peaks above this % of base peak (0 = no cutoff)
	MinMZ           float64 // Drop peaks below this m/z (0 = no lower bound)
	MaxMZ           float64 // Drop peaks above this m/z (0 = no upper bound)
}

// Enabled reports whether any filter is configured.
func (c *Config) Enabled() bool {
	return c.TopN > 0 || c.IntensityCutoff > 0 || c.MinMZ > 0 || c.MaxMZ > 0
}

// Validate rejects settings that cannot be applied.
func (c *Config) Validate() error {
	if c.TopN < 0 {
		return fmt.Errorf("top-n must not be negative, got %d", c.TopN)
	}
	if c.IntensityCutoff < 0 || c.IntensityCutoff > 100 {
		return fmt.Errorf("intensity cutoff must be between 0 and 100, got %g", c.IntensityCutoff)
	}
	if c.MaxMZ > 0 && c.MinMZ > c.MaxMZ {
		return fmt.Errorf("min m/z %g exceeds max m/z %g", c.MinMZ, c.MaxMZ)
	}
	return nil
}

// Apply applies all configured filters and returns the surviving peaks
// sorted by m/z. The input slice is not modified.
func (c *Config) Apply(peaks []core.CentroidPeak) []core.CentroidPeak {
	out := RemoveZeroIntensityPeaks(peaks)

	if c.MinMZ > 0 || c.MaxMZ > 0 {
		out = c.filterByRange(out)
	}

	// Apply intensity filters
	if c.IntensityCutoff > 0 {
		out = c.filterByIntensity(out)
	}

	// Apply top-N filter
	if c.TopN > 0 {
		out = c.filterTopN(out)
	}

	// Ensure peaks are sorted after all filtering
	core.SortPeaks(out)
	return out
}

// ApplyArrays filters parallel m/z and intensity arrays.
func (c *Config) ApplyArrays(mzs, intensities []float64) ([]float64, []float64, error) {
	if len(mzs) != len(intensities) {
		return nil, nil, fmt.Errorf("array length mismatch: %d m/z values, %d intensities", len(mzs), len(intensities))
	}
	peaks := make([]core.CentroidPeak, len(mzs))
	for i := range mzs {
		peaks[i] = core.CentroidPeak{MZ: mzs[i], Intensity: intensities[i]}
	}
	kept := c.Apply(peaks)

	outMZ := make([]float64, len(kept))
	outInt := make([]float64, len(kept))
	for i, p := range kept {
		outMZ[i], outInt[i] = p.MZ, p.Intensity
	}
	return outMZ, outInt, nil
}

func (c *Config) filterByRange(peaks []core.CentroidPeak) []core.CentroidPeak {
	var filtered []core.CentroidPeak
	for _, peak := range peaks {
		if c.MinMZ > 0 && peak.MZ < c.MinMZ {
			continue
		}
		if c.MaxMZ > 0 && peak.MZ > c.MaxMZ {
			continue
		}
		filtered = append(filtered, peak)
	}
	return filtered
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(peaks []core.CentroidPeak) []core.CentroidPeak {
	if len(peaks) == 0 {
		return peaks
	}

	// Find maximum intensity
	maxIntensity := 0.0
	for _, peak := range peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}

	threshold := (c.IntensityCutoff / 100.0) * maxIntensity

	var filtered []core.CentroidPeak
	for _, peak := range peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}

// filterTopN keeps only the N most intense peaks
func (c *Config) filterTopN(peaks []core.CentroidPeak) []core.CentroidPeak {
	if len(peaks) <= c.TopN {
		return peaks
	}

	sorted := make([]core.CentroidPeak, len(peaks))
	copy(sorted, peaks)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Intensity > sorted[j].Intensity
	})

	return sorted[:c.TopN]
}

// RemoveZeroIntensityPeaks returns a copy of peaks without zero or negative
// intensities.
func RemoveZeroIntensityPeaks(peaks []core.CentroidPeak) []core.CentroidPeak {
	filtered := make([]core.CentroidPeak, 0, len(peaks))
	for _, peak := range peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}
