// Package angle implements the angular arithmetic used to compare mount
// positions. Azimuth is circular on [0, 360); altitude is linear.
package angle

import "math"

// NormalizeAzimuth maps any angle into [0, 360).
func NormalizeAzimuth(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// math.Mod of a tiny negative value can round up to exactly 360.
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// AzimuthDelta returns the unsigned shortest separation between two
// azimuths, in [0, 180].
func AzimuthDelta(a, b float64) float64 {
	d := math.Abs(NormalizeAzimuth(a) - NormalizeAzimuth(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// AltitudeDelta returns the signed altitude change from a to b.
func AltitudeDelta(a, b float64) float64 {
	return b - a
}

// Distance combines an altitude and an azimuth delta as if they were
// orthogonal planar axes. This is not the on-sky separation (see
// Separation); it is kept because previously logged results use it.
func Distance(altDelta, azDelta float64) float64 {
	return math.Hypot(altDelta, azDelta)
}
