// Package geo provides coordinate validation and great-circle distance helpers.
package geo

import (
	"math"
)

// EarthRadiusMeters is the mean earth radius used for haversine distances.
const EarthRadiusMeters = 6371000

// Location is a point on the earth's surface. JSON names match the mobile app payloads.
type Location struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Valid reports whether both coordinates are within range.
func (l Location) Valid() bool {
	return ValidateCoordinates(l.Lat, l.Long)
}

// DistanceTo returns the distance in meters from l to other.
func (l Location) DistanceTo(other Location) float64 {
	return DistanceMeters(l.Lat, l.Long, other.Lat, other.Long)
}

// ValidateCoordinates returns true if lat is within [-90, 90] and long within [-180, 180].
// NaN values are rejected.
func ValidateCoordinates(lat, long float64) bool {
	return lat >= -90 && lat <= 90 && long >= -180 && long <= 180
}

// DistanceMeters calculates the distance between two points in meters
// using the Haversine formula.
func DistanceMeters(lat1, long1, lat2, long2 float64) float64 {
	if lat1 == lat2 && long1 == long2 {
		return 0
	}

	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	deltaLat := toRadians(lat2 - lat1)
	deltaLon := toRadians(long2 - long1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	a = math.Max(0, math.Min(1, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
