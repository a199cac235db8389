package core

import "math"

// IsotopeSpacing is the mass difference between 13C and 12C, the spacing of
// isotope peaks at charge 1.
const IsotopeSpacing = 1.0033548378

// IsotopeMZ returns the m/z of isotope k of an ion at monoisotopic m/z mz.
func IsotopeMZ(mz float64, k, charge int) float64 {
	if charge == 0 {
		charge = 1
	}
	return mz + float64(k)*IsotopeSpacing/math.Abs(float64(charge))
}

// PPMToMZ converts a ppm tolerance to an absolute m/z tolerance at mz.
func PPMToMZ(ppm, mz float64) float64 {
	return ppm * mz / 1e6
}
