// Package lifecycle implements the status state machine for a single SOS
// alert and the display ordering over the alert set.
package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"github.com/mr1hm/go-relief-coordination/internal/models"
)

// InvalidTransitionError is returned when a requested status change is not a
// legal forward move. The alert is left unchanged.
type InvalidTransitionError struct {
	AlertID string
	From    models.AlertStatus
	To      models.AlertStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for alert %s: %s -> %s", e.AlertID, e.From, e.To)
}

// Advance moves a through its linear lifecycle:
//
//	new -> acknowledged -> responding -> resolved
//
// responderID identifies the acting responder; it is recorded from
// acknowledged onward. ResponseTime is set exactly once, when the alert
// enters responding. resolved is absorbing. Any other move fails with
// *InvalidTransitionError and leaves a untouched.
func Advance(a *models.SOSAlert, next models.AlertStatus, responderID string, now time.Time) error {
	switch {
	case a.Status == models.AlertStatusNew && next == models.AlertStatusAcknowledged:
		a.Status = next
		a.ResponderID = responderID
	case a.Status == models.AlertStatusAcknowledged && next == models.AlertStatusResponding:
		a.Status = next
		a.ResponderID = responderID
		t := now
		a.ResponseTime = &t
	case (a.Status == models.AlertStatusAcknowledged || a.Status == models.AlertStatusResponding) &&
		next == models.AlertStatusResolved:
		a.Status = next
		if responderID != "" {
			a.ResponderID = responderID
		}
	default:
		return &InvalidTransitionError{AlertID: a.ID, From: a.Status, To: next}
	}
	return nil
}

// SortAlerts orders alerts for display: by priority rank (critical first),
// then by creation time, most recent first. The sort is stable so ties keep
// insertion order. The input slice is not modified.
func SortAlerts(alerts []models.SOSAlert) []models.SOSAlert {
	sorted := make([]models.SOSAlert, len(alerts))
	copy(sorted, alerts)

	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Priority.PriorityRank(), sorted[j].Priority.PriorityRank()
		if ri != rj {
			return ri < rj
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted
}
