package api

import (
	"github.com/terrasiaga/coordination/internal/models"
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

func toGeoJSON(disasters []*models.Disaster) FeatureCollection {
	features := make([]Feature, 0, len(disasters))

	for _, d := range disasters {
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{d.Longitude, d.Latitude},
			},
			Properties: map[string]any{
				"id":              d.ID,
				"type":            string(d.Type),
				"severity":        d.Severity,
				"priority":        string(d.Priority),
				"status":          string(d.Status),
				"start_time":      d.StartTime,
				"end_time":        d.EndTime,
				"impact_radius_m": d.ImpactRadiusM,
				"affected":        d.Affected,
				"report_count":    len(d.ReportIDs),
			},
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
