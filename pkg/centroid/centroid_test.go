package centroid

import (
	"errors"
	"math"
	"testing"
)

func TestApexCentroid(t *testing.T) {
	mzs := []float64{100.0, 100.1, 100.2, 100.3, 100.4, 200.0, 200.1, 200.2}
	ints := []float64{0, 50, 100, 50, 0, 10, 30, 20}

	peaks, err := Apex{}.Centroid(mzs, ints, 0)
	if err != nil {
		t.Fatalf("Centroid() error = %v", err)
	}
	if len(peaks) != 2 {
		t.Fatalf("Expected 2 peaks, got %d: %v", len(peaks), peaks)
	}
	if math.Abs(peaks[0].MZ-100.2) > 1e-9 || peaks[0].Intensity != 100 {
		t.Errorf("peak 0 = %+v, want {100.2 100}", peaks[0])
	}
	wantMZ := (200.0*10 + 200.1*30 + 200.2*20) / 60
	if math.Abs(peaks[1].MZ-wantMZ) > 1e-9 || peaks[1].Intensity != 30 {
		t.Errorf("peak 1 = %+v, want {%v 30}", peaks[1], wantMZ)
	}
}

func TestApexPlateau(t *testing.T) {
	peaks, err := Apex{}.Centroid([]float64{1, 2, 3, 4}, []float64{0, 5, 5, 0}, 0)
	if err != nil {
		t.Fatalf("Centroid() error = %v", err)
	}
	if len(peaks) != 1 {
		t.Errorf("Expected one peak for a plateau, got %v", peaks)
	}
}

func TestApexResolutionHint(t *testing.T) {
	mzs := []float64{100.00, 100.01, 100.02, 100.03, 100.04}
	ints := []float64{10, 40, 10, 60, 10}

	peaks, err := Apex{}.Centroid(mzs, ints, 0.05)
	if err != nil {
		t.Fatalf("Centroid() error = %v", err)
	}
	if len(peaks) != 1 || peaks[0].Intensity != 60 {
		t.Errorf("Expected the stronger of two close apexes, got %v", peaks)
	}
}

func TestApexErrors(t *testing.T) {
	tests := []struct {
		name string
		mzs  []float64
		ints []float64
	}{
		{"length mismatch", []float64{1, 2}, []float64{1}},
		{"unsorted", []float64{2, 1}, []float64{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apex{}.Centroid(tt.mzs, tt.ints, 0)
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Errorf("Centroid() error = %v, want *Error", err)
			}
		})
	}
}

func TestPeaks(t *testing.T) {
	peaks, err := Peaks([]float64{300, 100, 200}, []float64{1, 0, 3})
	if err != nil {
		t.Fatalf("Peaks() error = %v", err)
	}
	if len(peaks) != 2 || peaks[0].MZ != 200 || peaks[1].MZ != 300 {
		t.Errorf("Peaks() = %v, want sorted non-zero peaks", peaks)
	}
	if _, err := Peaks([]float64{1}, nil); err == nil {
		t.Error("Expected error for mismatched arrays")
	}
}
