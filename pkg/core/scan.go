// Package core provides the canonical scan model shared by the classifier,
// the interference engine, the SRM reconstructor and every reader and sink.
package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidScan marks a raw descriptor that cannot yield a ScanRecord at all.
var ErrInvalidScan = errors.New("invalid scan")

// MRMKind identifies the targeted acquisition mode of a scan.
type MRMKind uint8

const (
	MRMNone MRMKind = iota
	MRMSrm
	MRMQms
)

// String returns the label used in logs and in the SQLite ScanTable.
func (k MRMKind) String() string {
	switch k {
	case MRMSrm:
		return "SRM"
	case MRMQms:
		return "QMS"
	default:
		return "NotMRM"
	}
}

// ScanRecord is the normalized metadata of one acquired or reconstructed scan.
type ScanRecord struct {
	ScanNumber     int64   `json:"scan_number"`
	ElutionTimeMin float64 `json:"elution_time_min"`
	MSLevel        uint8   `json:"ms_level"`
	ScanTypeLabel  string  `json:"scan_type_label"`

	IsDIA            bool `json:"is_dia"`
	IsHighResolution bool `json:"is_high_resolution"`
	IsSIMScan        bool `json:"is_sim_scan"`
	IsZoomScan       bool `json:"is_zoom_scan"`

	MRM MRMKind `json:"mrm_kind"`

	// Optional fields; nil means absent.
	ParentIonMZ       *float64 `json:"parent_ion_mz,omitempty"`
	IsolationWidthMZ  *float64 `json:"isolation_width_mz,omitempty"`
	ChargeState       *int     `json:"charge_state,omitempty"`
	InterferenceScore *float64 `json:"interference_score,omitempty"`

	ActivationMethod string `json:"activation_method,omitempty"`

	// Stats carried over from the raw descriptor.
	BasePeakMZ        float64 `json:"base_peak_mz"`
	BasePeakIntensity float64 `json:"base_peak_intensity"`
	TotalIonCurrent   float64 `json:"total_ion_current"`
	LowMass           float64 `json:"low_mass"`
	HighMass          float64 `json:"high_mass"`
}

// ValidationError describes why a ScanRecord failed its invariants.
type ValidationError struct {
	Field   string
	Message string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// Validate checks the record invariants. Failures wrap ErrInvalidScan.
func (s *ScanRecord) Validate() error {
	var errs []string

	if s.MSLevel == 0 {
		errs = append(errs, "ms level must be at least 1")
	}
	if s.MRM != MRMNone && s.ParentIonMZ == nil {
		errs = append(errs, fmt.Sprintf("%s scan requires a parent ion m/z", s.MRM))
	}
	if s.InterferenceScore != nil {
		if s.MSLevel < 2 {
			errs = append(errs, "interference score is only defined for fragmentation scans")
		}
		if v := *s.InterferenceScore; math.IsNaN(v) || v < 0 || v > 1 {
			errs = append(errs, "interference score must be within [0,1]")
		}
	}
	if math.IsNaN(s.ElutionTimeMin) || math.IsInf(s.ElutionTimeMin, 0) {
		errs = append(errs, "elution time must be finite")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   fmt.Sprintf("Scan %d", s.ScanNumber),
			Message: strings.Join(errs, "; "),
			Wrapped: ErrInvalidScan,
		}
	}
	return nil
}

// IsFragmentation reports whether the scan is MS2 or higher.
func (s *ScanRecord) IsFragmentation() bool {
	return s.MSLevel >= 2
}

// ParentMZ returns the parent ion m/z or 0 when absent.
func (s *ScanRecord) ParentMZ() float64 {
	if s.ParentIonMZ == nil {
		return 0
	}
	return *s.ParentIonMZ
}

// SetInterference stores a score for a fragmentation scan, clamped to [0,1].
// It is a no-op for survey scans.
func (s *ScanRecord) SetInterference(score float64) {
	if !s.IsFragmentation() {
		return
	}
	score = math.Max(0, math.Min(1, score))
	s.InterferenceScore = &score
}

// Float returns a pointer to v, for populating optional fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for populating optional fields.
func Int(v int) *int { return &v }

// CentroidPeak is one discrete m/z, intensity point.
type CentroidPeak struct {
	MZ        float64
	Intensity float64
}

// CentroidedScan is the output of centroiding one survey scan.
type CentroidedScan struct {
	ScanNumber int64
	Peaks      []CentroidPeak
}

// SortPeaks sorts peaks by m/z in ascending order.
func SortPeaks(peaks []CentroidPeak) {
	sort.Slice(peaks, func(i, j int) bool {
		return peaks[i].MZ < peaks[j].MZ
	})
}

// TotalIntensity returns the summed intensity of peaks.
func TotalIntensity(peaks []CentroidPeak) float64 {
	total := 0.0
	for _, p := range peaks {
		total += p.Intensity
	}
	return total
}
