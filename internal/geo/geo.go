// Package geo provides distance and zone-membership math over coordinates.
package geo

import (
	"math"

	"github.com/mr1hm/go-relief-coordination/internal/models"
)

const earthRadiusKm = 6371

// DistanceKm returns the great-circle distance between two coordinates in
// kilometers, using the haversine formula.
func DistanceKm(a, b models.Coordinate) float64 {
	dLat := deg2rad(b.Latitude - a.Latitude)
	dLon := deg2rad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Latitude))*math.Cos(deg2rad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// WithinZone reports whether point lies inside (or on the edge of) the circle
// of radiusKm around center.
func WithinZone(point, center models.Coordinate, radiusKm float64) bool {
	return DistanceKm(point, center) <= radiusKm
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}
