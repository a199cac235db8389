package core

import (
	"math"
	"testing"
)

func TestIsotopeMZ(t *testing.T) {
	tests := []struct {
		name   string
		mz     float64
		k      int
		charge int
		want   float64
	}{
		{"monoisotopic", 500.0, 0, 2, 500.0},
		{"first isotope charge 1", 500.0, 1, 1, 501.0033548378},
		{"first isotope charge 2", 500.0, 1, 2, 500.5016774189},
		{"negative charge uses magnitude", 500.0, 1, -2, 500.5016774189},
		{"unknown charge treated as 1", 500.0, 1, 0, 501.0033548378},
		{"lower isotope", 500.0, -1, 1, 498.9966451622},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsotopeMZ(tt.mz, tt.k, tt.charge)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IsotopeMZ() = %.10f, want %.10f", got, tt.want)
			}
		})
	}
}

func TestPPMToMZ(t *testing.T) {
	got := PPMToMZ(10, 1000)
	if math.Abs(got-0.01) > 1e-12 {
		t.Errorf("PPMToMZ() = %v, want 0.01", got)
	}
}
