package meetup

import "math"

const earthRadiusKm = 6371.0

// DefaultRadiusKm is the nearby search radius when none is given.
const DefaultRadiusKm = 10.0

// DistanceKm returns the great-circle distance between a and b.
func DistanceKm(a, b Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// ValidLocation reports whether l is a usable coordinate.
func ValidLocation(l Location) bool {
	return !math.IsNaN(l.Lat) && !math.IsNaN(l.Lng) &&
		l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}
