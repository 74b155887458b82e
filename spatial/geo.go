package spatial

import "math"

// Mean Earth radius in meters (IUGG).
const earthRadiusM = 6371000.0

// Rough meters per degree of latitude, used only to size grid cells.
const metersPerDegree = 111320.0

// Haversine returns the great-circle distance in meters between two
// WGS84 points on a mean-Earth-radius sphere. This is the single source
// of truth for "nearby" — the grid index only prunes candidates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// ValidCoordinates reports whether lat/lon are inside WGS84 bounds.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
