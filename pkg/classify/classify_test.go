package classify

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/warn"
)

func hcdDescriptor(lower, upper string) *core.RawScanDescriptor {
	return &core.RawScanDescriptor{
		ScanNumber:     1201,
		ElutionTimeMin: 23.5,
		MSLevel:        2,
		FilterText:     "+ c d Full ms2 810.79@hcd25.00",
		IsolationWindow: core.IsolationWindow{
			Target:      "810.79",
			LowerOffset: lower,
			UpperOffset: upper,
		},
	}
}

func TestClassifyHCDFragmentation(t *testing.T) {
	c := New(nil)
	rec, err := c.Classify(hcdDescriptor("0.8", "0.8"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if rec.IsolationWidthMZ == nil || *rec.IsolationWidthMZ != 1.6 {
		t.Errorf("IsolationWidthMZ = %v, want 1.6", rec.IsolationWidthMZ)
	}
	if rec.ActivationMethod != "HCD" {
		t.Errorf("ActivationMethod = %q, want HCD", rec.ActivationMethod)
	}
	if rec.ScanTypeLabel != "HCD-HMSn" {
		t.Errorf("ScanTypeLabel = %q, want HCD-HMSn", rec.ScanTypeLabel)
	}
	if rec.IsDIA {
		t.Error("Expected IsDIA = false for width 1.6")
	}
	if !rec.IsHighResolution {
		t.Error("Expected HCD scan to be high resolution")
	}
	if rec.ParentMZ() != 810.79 {
		t.Errorf("ParentMZ() = %v, want 810.79", rec.ParentMZ())
	}
	if rec.MRM != core.MRMNone {
		t.Errorf("MRM = %v, want NotMRM", rec.MRM)
	}
}

func TestClassifyDIA(t *testing.T) {
	c := New(nil)
	rec, err := c.Classify(hcdDescriptor("4.0", "4.0"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if rec.IsolationWidthMZ == nil || *rec.IsolationWidthMZ != 8.0 {
		t.Errorf("IsolationWidthMZ = %v, want 8.0", rec.IsolationWidthMZ)
	}
	if !rec.IsDIA {
		t.Error("Expected IsDIA = true for width 8.0")
	}
}

func TestClassifyDIAThreshold(t *testing.T) {
	tests := []struct {
		name    string
		width   string
		level   int
		wantDIA bool
	}{
		{"just below", "6.49", 2, false},
		{"at threshold", "6.5", 2, true},
		{"survey scan never DIA", "20", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &core.RawScanDescriptor{
				ScanNumber:      10,
				MSLevel:         tt.level,
				IsolationWindow: core.IsolationWindow{Width: tt.width},
			}
			rec, err := New(nil).Classify(raw)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if rec.IsDIA != tt.wantDIA {
				t.Errorf("IsDIA = %v, want %v", rec.IsDIA, tt.wantDIA)
			}
		})
	}
}

func TestClassifyExplicitWidthWins(t *testing.T) {
	raw := hcdDescriptor("4.0", "4.0")
	raw.IsolationWindow.Width = "2.0"
	rec, err := New(nil).Classify(raw)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if *rec.IsolationWidthMZ != 2.0 {
		t.Errorf("IsolationWidthMZ = %v, want explicit 2.0", *rec.IsolationWidthMZ)
	}
}

func TestClassifyActivation(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		want  string
	}{
		{"etd with supplemental hcd", []string{"MS:1000598", "MS:1002678"}, "EThcD"},
		{"etd with supplemental cid", []string{"ETD", "MS:1002679"}, "ETciD"},
		{"mzxml etd+sa", []string{"ETD+SA"}, "ETciD"},
		{"duplicates collapse", []string{"CID", "MS:1000133", "cid"}, "CID"},
		{"first observed order", []string{"HCD", "CID"}, "HCD,CID"},
		{"beam-type alias", []string{"MS:1002481"}, "HCD"},
		{"unknown ignored", []string{"MS:9999999", "photon"}, ""},
		{"ethcd term kept", []string{"MS:1002631"}, "EThcD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &core.RawScanDescriptor{
				ScanNumber:      5,
				MSLevel:         2,
				SelectedIonMZ:   "652.3",
				ActivationTerms: tt.terms,
			}
			rec, err := New(nil).Classify(raw)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if rec.ActivationMethod != tt.want {
				t.Errorf("ActivationMethod = %q, want %q", rec.ActivationMethod, tt.want)
			}
		})
	}
}

func TestClassifyZeroMSLevel(t *testing.T) {
	raw := &core.RawScanDescriptor{ScanNumber: 7, MSLevel: 0, FilterText: "FTMS + p NSI Full ms [400.00-2000.00]"}
	rec, err := New(nil).Classify(raw)
	if rec != nil {
		t.Errorf("Classify() record = %+v, want nil", rec)
	}
	if !errors.Is(err, core.ErrInvalidScan) {
		t.Errorf("Classify() error = %v, want ErrInvalidScan", err)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := New(nil)
	raw := hcdDescriptor("bad", "0.8")
	first, err := c.Classify(raw)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	second, err := c.Classify(raw)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Classify() not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestClassifyLegacyScanType(t *testing.T) {
	tests := []struct {
		name      string
		scanType  string
		level     int
		terms     []string
		wantLabel string
	}{
		{"full survey", "Full", 1, nil, "MS"},
		{"full fragmentation", "Full", 2, []string{"CID"}, "CID-MSn"},
		{"full hcd", "Full", 2, []string{"HCD"}, "HCD-HMSn"},
		{"zoom", "zoom", 1, nil, "Zoom-MS"},
		{"mrm", "MRM", 2, nil, "MRM"},
		{"srm", "SRM", 2, []string{"CID"}, "CID-SRM"},
		{"missing type", "", 2, nil, "MSn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &core.RawScanDescriptor{
				ScanNumber:      3,
				MSLevel:         tt.level,
				LegacyScanType:  tt.scanType,
				SelectedIonMZ:   "500.0",
				ActivationTerms: tt.terms,
			}
			rec, err := New(nil).Classify(raw)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if rec.ScanTypeLabel != tt.wantLabel {
				t.Errorf("ScanTypeLabel = %q, want %q", rec.ScanTypeLabel, tt.wantLabel)
			}
			if rec.MRM != core.MRMNone || rec.IsSIMScan || rec.IsZoomScan {
				t.Errorf("flags = %v/%v/%v, want defaults without filter text", rec.MRM, rec.IsSIMScan, rec.IsZoomScan)
			}
		})
	}
}

func TestClassifyFilterFlags(t *testing.T) {
	tests := []struct {
		name      string
		filter    string
		level     int
		wantMRM   core.MRMKind
		wantSIM   bool
		wantZoom  bool
		wantLabel string
		wantMZ    float64
	}{
		{"srm", "+ c NSI SRM ms2 500.30@cid20.00 [301.00-401.50]", 2, core.MRMSrm, false, false, "CID-SRM", 500.3},
		{"q1ms uses window center", "+ p NSI Q1MS [400.00-1200.00]", 1, core.MRMQms, false, false, "Q1MS", 800},
		{"sim", "FTMS + p NSI SIM ms [782.00-792.00]", 1, core.MRMNone, true, false, "HMS-SIM", 0},
		{"zoom", "ITMS + p NSI Z ms [440.00-450.00]", 1, core.MRMNone, false, true, "Zoom-MS", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &core.RawScanDescriptor{ScanNumber: 44, MSLevel: tt.level, FilterText: tt.filter}
			rec, err := New(nil).Classify(raw)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if rec.MRM != tt.wantMRM || rec.IsSIMScan != tt.wantSIM || rec.IsZoomScan != tt.wantZoom {
				t.Errorf("flags = %v/%v/%v, want %v/%v/%v", rec.MRM, rec.IsSIMScan, rec.IsZoomScan, tt.wantMRM, tt.wantSIM, tt.wantZoom)
			}
			if rec.ScanTypeLabel != tt.wantLabel {
				t.Errorf("ScanTypeLabel = %q, want %q", rec.ScanTypeLabel, tt.wantLabel)
			}
			if rec.ParentMZ() != tt.wantMZ {
				t.Errorf("ParentMZ() = %v, want %v", rec.ParentMZ(), tt.wantMZ)
			}
		})
	}
}

func TestClassifySRMWithoutParentIsInvalid(t *testing.T) {
	raw := &core.RawScanDescriptor{ScanNumber: 9, MSLevel: 2, FilterText: "+ c NSI SRM ms2"}
	_, err := New(nil).Classify(raw)
	if !errors.Is(err, core.ErrInvalidScan) {
		t.Errorf("Classify() error = %v, want ErrInvalidScan", err)
	}
}

func TestIsolationWidthWarnings(t *testing.T) {
	var sink warn.Collector
	c := New(&sink)
	for i := 0; i < 5003; i++ {
		raw := &core.RawScanDescriptor{ScanNumber: int64(i + 1), MSLevel: 2, SelectedIonMZ: "500"}
		if _, err := c.Classify(raw); err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
	}

	if got := c.IsolationWidthMissing(); got != 5003 {
		t.Errorf("IsolationWidthMissing() = %d, want 5003", got)
	}
	msgs := sink.Messages()
	if len(msgs) != 6 {
		t.Fatalf("got %d warnings, want 6: %v", len(msgs), msgs)
	}
	if msgs[0] != "Isolation width not found for scan 1" {
		t.Errorf("first warning = %q", msgs[0])
	}
	if !strings.Contains(msgs[5], "scan 5001") {
		t.Errorf("summary warning = %q", msgs[5])
	}
}

func TestMalformedFieldsAreAbsent(t *testing.T) {
	var sink warn.Collector
	raw := &core.RawScanDescriptor{
		ScanNumber:    12,
		MSLevel:       2,
		SelectedIonMZ: "abc",
		ChargeState:   "two",
		IsolationWindow: core.IsolationWindow{
			Target:      "612.5",
			LowerOffset: "0.7",
			UpperOffset: "?",
		},
	}
	rec, err := New(&sink).Classify(raw)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if rec.IsolationWidthMZ != nil {
		t.Errorf("IsolationWidthMZ = %v, want absent", *rec.IsolationWidthMZ)
	}
	if rec.ChargeState != nil {
		t.Errorf("ChargeState = %v, want absent", *rec.ChargeState)
	}
	if rec.ParentMZ() != 612.5 {
		t.Errorf("ParentMZ() = %v, want isolation target 612.5", rec.ParentMZ())
	}
	// upper offset, selected ion, charge, plus the missing isolation width
	if sink.Len() != 4 {
		t.Errorf("got %d warnings, want 4: %v", sink.Len(), sink.Messages())
	}
}
