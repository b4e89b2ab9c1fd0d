package models

import "time"

type NotificationType string

const (
	NotificationSOS       NotificationType = "sos"
	NotificationResource  NotificationType = "resource"
	NotificationVolunteer NotificationType = "volunteer"
	NotificationDonation  NotificationType = "donation"
	NotificationSystem    NotificationType = "system"
)

// Notification is the tuple handed to the notification sink whenever the
// engine creates an alert, completes an allocation, or detects a fallback
// signal. Delivery and rendering are the sink's responsibility.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Priority  AlertPriority    `json:"priority"`
	RelatedID string           `json:"related_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
