package core

import (
	"fmt"
	"strconv"
	"strings"
)

// IsolationWindow holds the isolation fields exactly as the source file
// stated them. Values stay textual so that malformed entries can be reported
// as absent instead of failing the scan.
type IsolationWindow struct {
	Width       string
	Target      string
	LowerOffset string
	UpperOffset string
}

// RawScanDescriptor is the format-neutral description of one scan produced by
// a reader adapter, before classification.
type RawScanDescriptor struct {
	ScanNumber     int64
	ElutionTimeMin float64
	MSLevel        int

	// Thermo-style scan filter, e.g. "FTMS + p NSI d Full ms2 810.79@hcd25.00 [100.00-1635.00]".
	FilterText string

	IsolationWindow IsolationWindow
	SelectedIonMZ   string
	ChargeState     string

	// Scan number of the survey scan the precursor was selected from;
	// 0 means the most recent survey scan.
	PrecursorScanNumber int64

	// mzXML/mzData scanType attribute: Full, zoom, SIM, MRM, SRM, ...
	LegacyScanType string

	// Activation terms: PSI-MS accessions (MS:1000422) or short names (HCD).
	ActivationTerms []string

	BasePeakMZ        float64
	BasePeakIntensity float64
	TotalIonCurrent   float64
	LowMass           float64
	HighMass          float64
}

// RawScan pairs a descriptor with its ion arrays.
type RawScan struct {
	Descriptor  RawScanDescriptor
	MZs         []float64
	Intensities []float64
	Centroided  bool
}

// FieldError reports a numeric field that could not be parsed.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: cannot parse %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ParseFloatField parses a textual numeric field. An empty value returns
// ok=false with a nil error; a malformed value returns a *FieldError.
func ParseFloatField(field, value string) (float64, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false, &FieldError{Field: field, Value: value, Err: err}
	}
	return v, true, nil
}

// ParseChargeField parses charge values such as "2", "2+" or "3-".
func ParseChargeField(field, value string) (int, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false, nil
	}
	sign := 1
	switch {
	case strings.HasSuffix(value, "+"):
		value = strings.TrimSuffix(value, "+")
	case strings.HasSuffix(value, "-"):
		value = strings.TrimSuffix(value, "-")
		sign = -1
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, &FieldError{Field: field, Value: value, Err: err}
	}
	return sign * v, true, nil
}

// TraceKind tags a chromatogram by what it monitors.
type TraceKind uint8

const (
	TraceOther TraceKind = iota
	TraceTIC
	TraceSRM
	TraceSIM
)

func (k TraceKind) String() string {
	switch k {
	case TraceTIC:
		return "TIC"
	case TraceSRM:
		return "SRM"
	case TraceSIM:
		return "SIM"
	default:
		return "other"
	}
}

// ChromatogramTrace is one intensity-versus-time trace. Times and
// Intensities are parallel and sorted by time.
type ChromatogramTrace struct {
	ID          string
	Kind        TraceKind
	PrecursorMZ float64
	TargetMZ    float64
	Times       []float64
	Intensities []float64
}

// Len returns the number of points, or an error if the arrays disagree.
func (t *ChromatogramTrace) Len() (int, error) {
	if len(t.Times) != len(t.Intensities) {
		return 0, fmt.Errorf("trace %s: %d times but %d intensities", t.ID, len(t.Times), len(t.Intensities))
	}
	return len(t.Times), nil
}
