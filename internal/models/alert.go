package models

import "time"

type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "new"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResponding   AlertStatus = "responding"
	AlertStatusResolved     AlertStatus = "resolved"
)

type AlertPriority string

const (
	PriorityCritical AlertPriority = "critical"
	PriorityHigh     AlertPriority = "high"
	PriorityMedium   AlertPriority = "medium"
	PriorityLow      AlertPriority = "low"
)

// PriorityRank orders priorities for display: critical first, low last.
// Unknown priorities sort after low.
func (p AlertPriority) PriorityRank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

type SOSAlert struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Location     Coordinate    `json:"location"`
	CreatedAt    time.Time     `json:"created_at"`
	Status       AlertStatus   `json:"status"`
	Priority     AlertPriority `json:"priority"`
	Message      string        `json:"message,omitempty"`
	MedicalInfo  string        `json:"medical_info,omitempty"`
	ResponderID  string        `json:"responder_id,omitempty"`
	ResponseTime *time.Time    `json:"response_time,omitempty"`
}
