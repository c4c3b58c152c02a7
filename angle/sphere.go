package angle

import "math"

func deg2rad(x float64) float64 {
	return x * math.Pi / 180
}

func rad2deg(x float64) float64 {
	return x * 180 / math.Pi
}

// Separation returns the great-circle angle between two alt/az positions,
// in degrees.
// Haversine form, stable for small separations.
func Separation(alt1, az1, alt2, az2 float64) float64 {
	p1, p2 := deg2rad(alt1), deg2rad(alt2)
	dp := p2 - p1
	dl := deg2rad(az2 - az1)
	h := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	if h > 1 {
		h = 1
	}
	return rad2deg(2 * math.Asin(math.Sqrt(h)))
}
