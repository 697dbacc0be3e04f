package warnings

import "math"

const earthRadiusMetres = 6371000.0

// DistanceMetres returns the great-circle distance between two points using
// the haversine formula.
func DistanceMetres(a, b Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLong := (b.Long - a.Long) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLong/2)*math.Sin(dLong/2)
	return 2 * earthRadiusMetres * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Offset returns the point roughly northMetres north and eastMetres east of l.
// It is accurate enough for the short distances used in proximity checks.
func (l Location) Offset(northMetres, eastMetres float64) Location {
	dLat := northMetres / earthRadiusMetres * 180 / math.Pi
	dLong := eastMetres / (earthRadiusMetres * math.Cos(l.Lat*math.Pi/180)) * 180 / math.Pi
	return Location{Lat: l.Lat + dLat, Long: l.Long + dLong}
}
