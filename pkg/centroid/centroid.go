// Package centroid converts profile spectra into discrete peaks.
package centroid

import (
	"fmt"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
)

// Error reports input the centroider cannot work with.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("centroid: %s", e.Reason)
}

// Centroider turns profile data into centroided peaks. resolutionHint is the
// minimum m/z spacing between two reported peaks (0 keeps every apex).
type Centroider interface {
	Centroid(mzs, intensities []float64, resolutionHint float64) ([]core.CentroidPeak, error)
}

// Apex reports one peak per local intensity maximum, positioned at the
// intensity-weighted mean of the apex and its two neighbours.
type Apex struct{}

func (Apex) Centroid(mzs, intensities []float64, resolutionHint float64) ([]core.CentroidPeak, error) {
	if len(mzs) != len(intensities) {
		return nil, &Error{Reason: fmt.Sprintf("%d m/z values but %d intensities", len(mzs), len(intensities))}
	}
	n := len(mzs)
	for i := 1; i < n; i++ {
		if mzs[i] < mzs[i-1] {
			return nil, &Error{Reason: fmt.Sprintf("m/z values not ascending at index %d", i)}
		}
	}

	var peaks []core.CentroidPeak
	for i := 0; i < n; i++ {
		y := intensities[i]
		if y <= 0 {
			continue
		}
		left, right := 0.0, 0.0
		if i > 0 {
			left = intensities[i-1]
		}
		if i < n-1 {
			right = intensities[i+1]
		}
		// A plateau reports its first point only.
		if y <= left || y < right {
			continue
		}

		num, den := mzs[i]*y, y
		if i > 0 && left > 0 {
			num += mzs[i-1] * left
			den += left
		}
		if i < n-1 && right > 0 {
			num += mzs[i+1] * right
			den += right
		}
		peak := core.CentroidPeak{MZ: num / den, Intensity: y}

		if last := len(peaks) - 1; last >= 0 && resolutionHint > 0 && peak.MZ-peaks[last].MZ < resolutionHint {
			if peak.Intensity > peaks[last].Intensity {
				peaks[last] = peak
			}
			continue
		}
		peaks = append(peaks, peak)
	}
	return peaks, nil
}

// Peaks converts data that is already centroided.
func Peaks(mzs, intensities []float64) ([]core.CentroidPeak, error) {
	if len(mzs) != len(intensities) {
		return nil, &Error{Reason: fmt.Sprintf("%d m/z values but %d intensities", len(mzs), len(intensities))}
	}
	peaks := make([]core.CentroidPeak, 0, len(mzs))
	for i := range mzs {
		if intensities[i] > 0 {
			peaks = append(peaks, core.CentroidPeak{MZ: mzs[i], Intensity: intensities[i]})
		}
	}
	core.SortPeaks(peaks)
	return peaks, nil
}
