package api

import (
	"github.com/mr1hm/go-relief-coordination/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// toGeoJSON renders disaster zones as point features; the affected radius
// rides along as a property so the map layer can draw the circle.
func toGeoJSON(disasters []models.DisasterEvent) FeatureCollection {
	features := make([]Feature, 0, len(disasters))

	for _, d := range disasters {
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{d.Center.Longitude, d.Center.Latitude},
			},
			Properties: map[string]any{
				"id":         d.ID,
				"name":       d.Name,
				"type":       d.Type,
				"severity":   d.Severity,
				"radius_km":  d.RadiusKm,
				"status":     string(d.Status),
				"start_time": d.StartTime,
			},
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
