package models

import "time"

type DisasterStatus string

const (
	DisasterStatusActive    DisasterStatus = "active"
	DisasterStatusContained DisasterStatus = "contained"
	DisasterStatusResolved  DisasterStatus = "resolved"
)

type DisasterEvent struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`     // "earthquake", "flood", "wildfire", ...
	Severity  int            `json:"severity"` // 1 (minor) to 5 (catastrophic)
	Center    Coordinate     `json:"center"`
	RadiusKm  float64        `json:"radius_km"` // affected radius
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Status    DisasterStatus `json:"status"`
}
