package interference

import (
	"errors"
	"math"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
)

// ErrPrecursorNotFound means no ion in the isolation window could be
// attributed to the targeted precursor.
var ErrPrecursorNotFound = errors.New("precursor not found in isolation window")

// Calculator attributes the ion current of an isolation window.
// window holds the centroided survey peaks inside the window, sorted by m/z.
// The result is the fraction of window intensity that belongs to the
// precursor, in [0,1].
type Calculator interface {
	Interference(window []core.CentroidPeak, parentMZ float64, charge int) (float64, error)
}

// IsotopeCalculator attributes to the precursor every window peak that sits
// on the precursor's isotope ladder for its charge state.
type IsotopeCalculator struct {
	TolerancePPM float64
	MinTolerance float64 // m/z
	MinIsotope   int
	MaxIsotope   int
	MaxCharge    int // tried when the charge is unknown
}

// NewIsotopeCalculator returns a calculator with 10 ppm tolerance and an
// isotope ladder from -2 to +5.
func NewIsotopeCalculator() *IsotopeCalculator {
	return &IsotopeCalculator{
		TolerancePPM: 10,
		MinTolerance: 0.005,
		MinIsotope:   -2,
		MaxIsotope:   5,
		MaxCharge:    4,
	}
}

func (c *IsotopeCalculator) Interference(window []core.CentroidPeak, parentMZ float64, charge int) (float64, error) {
	total := core.TotalIntensity(window)
	if len(window) == 0 || total <= 0 {
		return 0, ErrPrecursorNotFound
	}

	charges := []int{charge}
	if charge == 0 {
		charges = charges[:0]
		for z := 1; z <= c.MaxCharge; z++ {
			charges = append(charges, z)
		}
	}

	best := 0.0
	found := false
	for _, z := range charges {
		attributed, ok := c.attribute(window, parentMZ, z)
		if !ok {
			continue
		}
		found = true
		if attributed > best {
			best = attributed
		}
	}
	if !found {
		return 0, ErrPrecursorNotFound
	}
	return math.Min(1, best/total), nil
}

// attribute sums the most intense peak matching each isotope of the ladder.
// ok is false when the monoisotopic (selected) peak itself is missing.
func (c *IsotopeCalculator) attribute(window []core.CentroidPeak, parentMZ float64, charge int) (float64, bool) {
	sum := 0.0
	found := false
	for k := c.MinIsotope; k <= c.MaxIsotope; k++ {
		target := core.IsotopeMZ(parentMZ, k, charge)
		tol := math.Max(core.PPMToMZ(c.TolerancePPM, target), c.MinTolerance)
		best := -1
		for i, p := range window {
			if math.Abs(p.MZ-target) > tol {
				continue
			}
			if best < 0 || p.Intensity > window[best].Intensity {
				best = i
			}
		}
		if best < 0 {
			continue
		}
		if k == 0 {
			found = true
		}
		sum += window[best].Intensity
	}
	return sum, found
}
