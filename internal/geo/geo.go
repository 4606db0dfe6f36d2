// Package geo provides great-circle math over WGS84 coordinates on a
// spherical-earth approximation. All functions are pure.
package geo

import (
	"math"

	"github.com/onsite-hq/onsite/params"
)

type Point struct {
	Lat float64
	Lng float64
}

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return params.EarthRadiusMeters * c
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// SpeedKmh returns the average speed required to travel from a to b in the
// given elapsed seconds. Callers must guard seconds <= 0; the result is
// undefined (Inf/NaN) otherwise.
func SpeedKmh(a, b Point, seconds float64) float64 {
	km := DistanceMeters(a, b) / 1000
	return km / (seconds / 3600)
}
