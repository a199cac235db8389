// Package classify derives the canonical ScanRecord from a raw scan
// descriptor: scan role, targeted-acquisition flags, isolation width, DIA,
// activation method and scan type label.
package classify

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/filtertext"
	"github.com/ChrisMcGann/ScanKey/pkg/warn"
)

// DIAIsolationWidthThreshold is the isolation width (m/z) at or above which
// a fragmentation scan is considered data-independent.
const DIAIsolationWidthThreshold = 6.5

// Report the first few missing isolation widths, then one in this many.
const (
	isolationWarnFirst = 5
	isolationWarnEvery = 5000
)

// Classifier turns RawScanDescriptors into ScanRecords. The record produced
// for a descriptor depends only on the descriptor; the Classifier itself only
// keeps warning counters.
type Classifier struct {
	warnings         warn.Sink
	isolationMissing *warn.Interval
	fieldErrors      *warn.Counter
}

// New creates a Classifier reporting through sink (warn.Discard when nil).
func New(sink warn.Sink) *Classifier {
	if sink == nil {
		sink = warn.Discard
	}
	return &Classifier{
		warnings:         sink,
		isolationMissing: warn.NewInterval(isolationWarnFirst, isolationWarnEvery),
		fieldErrors:      warn.NewCounter(warn.DefaultFirst),
	}
}

// IsolationWidthMissing returns how many fragmentation scans had no
// resolvable isolation width.
func (c *Classifier) IsolationWidthMissing() int {
	return c.isolationMissing.Count
}

// FieldErrors returns how many numeric fields could not be parsed.
func (c *Classifier) FieldErrors() int {
	return c.fieldErrors.Count
}

// Classify builds the ScanRecord for raw. It fails only when no valid record
// can exist (ms level 0, or a targeted scan without any parent m/z); the
// error then wraps core.ErrInvalidScan.
func (c *Classifier) Classify(raw *core.RawScanDescriptor) (*core.ScanRecord, error) {
	if raw.MSLevel <= 0 || raw.MSLevel > 255 {
		return nil, &core.ValidationError{
			Field:   fmt.Sprintf("Scan %d", raw.ScanNumber),
			Message: fmt.Sprintf("ms level %d is out of range", raw.MSLevel),
			Wrapped: core.ErrInvalidScan,
		}
	}

	rec := &core.ScanRecord{
		ScanNumber:        raw.ScanNumber,
		ElutionTimeMin:    raw.ElutionTimeMin,
		MSLevel:           uint8(raw.MSLevel),
		BasePeakMZ:        raw.BasePeakMZ,
		BasePeakIntensity: raw.BasePeakIntensity,
		TotalIonCurrent:   raw.TotalIonCurrent,
		LowMass:           raw.LowMass,
		HighMass:          raw.HighMass,
	}

	info, hasFilter := filtertext.Parse(raw.FilterText)

	if width, ok := c.isolationWidth(raw); ok {
		rec.IsolationWidthMZ = core.Float(width)
		rec.IsDIA = rec.MSLevel > 1 && width >= DIAIsolationWidthThreshold
	} else if rec.MSLevel > 1 {
		c.isolationMissing.Hit(c.warnings, "Isolation width not found for scan %d", raw.ScanNumber)
	}

	rec.ActivationMethod = activationMethod(raw, info, hasFilter)

	if hasFilter {
		rec.ScanTypeLabel = info.BaseLabel()
		rec.IsHighResolution = info.HighResolution()
		rec.IsSIMScan = info.Mode == filtertext.ModeSIM
		rec.IsZoomScan = info.Mode == filtertext.ModeZoom
		switch {
		case info.IsSRM():
			rec.MRM = core.MRMSrm
		case info.IsQMS():
			rec.MRM = core.MRMQms
		}
		if rec.LowMass == 0 && rec.HighMass == 0 {
			rec.LowMass, rec.HighMass = info.LowMass, info.HighMass
		}
	} else {
		rec.ScanTypeLabel = legacyLabel(raw.LegacyScanType, raw.MSLevel)
	}
	rec.ScanTypeLabel = prefixActivation(rec.ScanTypeLabel, rec.ActivationMethod, raw.MSLevel)
	if strings.Contains(rec.ScanTypeLabel, "HMS") {
		rec.IsHighResolution = true
	}

	if mz, ok := c.parentIonMZ(raw, info, hasFilter); ok {
		rec.ParentIonMZ = core.Float(mz)
	} else if rec.MRM == core.MRMQms && rec.HighMass > rec.LowMass {
		// Quadrupole scans monitor a window; use its center.
		rec.ParentIonMZ = core.Float((rec.LowMass + rec.HighMass) / 2)
	}

	if charge, ok, err := core.ParseChargeField("charge state", raw.ChargeState); err != nil {
		c.fieldError(raw.ScanNumber, err)
	} else if ok && charge != 0 {
		rec.ChargeState = core.Int(charge)
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// isolationWidth resolves the width from the explicit value, else from
// the two offsets.
func (c *Classifier) isolationWidth(raw *core.RawScanDescriptor) (float64, bool) {
	win := raw.IsolationWindow

	width, ok, err := core.ParseFloatField("isolation window width", win.Width)
	if err != nil {
		c.fieldError(raw.ScanNumber, err)
	} else if ok && width > 0 {
		return width, true
	}

	lower, okLower, errLower := core.ParseFloatField("isolation window lower offset", win.LowerOffset)
	upper, okUpper, errUpper := core.ParseFloatField("isolation window upper offset", win.UpperOffset)
	if errLower != nil {
		c.fieldError(raw.ScanNumber, errLower)
	}
	if errUpper != nil {
		c.fieldError(raw.ScanNumber, errUpper)
	}
	if okLower && okUpper && lower+upper > 0 {
		return lower + upper, true
	}
	return 0, false
}

// parentIonMZ prefers the selected ion, then the isolation target, then the
// filter text.
func (c *Classifier) parentIonMZ(raw *core.RawScanDescriptor, info filtertext.Info, hasFilter bool) (float64, bool) {
	for _, f := range []struct{ name, value string }{
		{"selected ion m/z", raw.SelectedIonMZ},
		{"isolation window target m/z", raw.IsolationWindow.Target},
	} {
		mz, ok, err := core.ParseFloatField(f.name, f.value)
		if err != nil {
			c.fieldError(raw.ScanNumber, err)
			continue
		}
		if ok && mz > 0 {
			return mz, true
		}
	}
	if hasFilter && info.ParentMZ > 0 {
		return info.ParentMZ, true
	}
	return 0, false
}

func (c *Classifier) fieldError(scan int64, err error) {
	c.fieldErrors.Hit(c.warnings, "Scan %d: %v; treating as absent", scan, err)
}

func activationMethod(raw *core.RawScanDescriptor, info filtertext.Info, hasFilter bool) string {
	var set activationSet
	for _, term := range raw.ActivationTerms {
		set.addTerm(term)
	}
	if hasFilter {
		for _, code := range info.Activations {
			set.add(ParseActivationTerm(code))
		}
		for _, code := range info.Supplemental {
			switch code {
			case "cid":
				set.add(TagSupplementalCID)
			case "hcd":
				set.add(TagSupplementalHCD)
			default:
				set.add(ParseActivationTerm(code))
			}
		}
	}
	return set.resolve()
}

// legacyLabel maps an mzXML/mzData scanType to a label.
func legacyLabel(scanType string, msLevel int) string {
	switch strings.ToLower(strings.TrimSpace(scanType)) {
	case "", "full":
		if msLevel > 1 {
			return "MSn"
		}
		return "MS"
	case "zoom":
		return "Zoom-MS"
	case "mrm":
		return "MRM"
	case "srm":
		return "CID-SRM"
	case "sim":
		return "SIM ms"
	default:
		return scanType
	}
}

// prefixActivation adds the activation method to MSn labels; HCD implies a
// high resolution analyzer.
func prefixActivation(label, activation string, msLevel int) string {
	if msLevel < 2 || activation == "" {
		return label
	}
	if label != "MSn" && label != "HMSn" {
		return label
	}
	label = activation + "-" + label
	if label == "HCD-MSn" {
		label = "HCD-HMSn"
	}
	return label
}
