package models

type ResourceStatus string

const (
	ResourceStatusAvailable ResourceStatus = "available"
	ResourceStatusInTransit ResourceStatus = "in-transit"
	ResourceStatusDeployed  ResourceStatus = "deployed"
)

type Resource struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"` // "water", "food", "medical", "shelter", ...
	Name       string         `json:"name"`
	Quantity   int            `json:"quantity"`
	Unit       string         `json:"unit"`
	Location   Coordinate     `json:"location"`
	Status     ResourceStatus `json:"status"`
	AssignedTo string         `json:"assigned_to,omitempty"` // alert id, set iff status != available
}

type Volunteer struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Skills         []string   `json:"skills"`
	Availability   bool       `json:"availability"`
	Location       Coordinate `json:"location"`
	AssignedAlerts []string   `json:"assigned_alerts,omitempty"` // alert ids, ordered, no duplicates
}
