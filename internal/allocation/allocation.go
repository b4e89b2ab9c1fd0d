// Package allocation matches resources and volunteers to open alerts.
//
// Pairing is caller-directed: the operator picks the resource/volunteer and
// the target alert, the engine enforces the availability precondition and
// applies the state change through the store's serialized mutation path.
// There is no automatic nearest-match heuristic.
package allocation

import (
	"context"
	"fmt"

	"github.com/mr1hm/go-relief-coordination/internal/geo"
	"github.com/mr1hm/go-relief-coordination/internal/models"
	"github.com/mr1hm/go-relief-coordination/internal/notify"
	"github.com/mr1hm/go-relief-coordination/internal/store"
)

type Engine struct {
	store *store.Store
	sink  notify.Sink
}

func NewEngine(s *store.Store, sink notify.Sink) *Engine {
	return &Engine{store: s, sink: sink}
}

// AllocateResource binds the resource to the alert. Fails with
// store.ErrResourceUnavailable unless the resource is available; on success
// the resource is in-transit and a notification is emitted.
func (e *Engine) AllocateResource(ctx context.Context, resourceID, alertID string) (models.Resource, error) {
	r, err := e.store.AllocateResource(resourceID, alertID)
	if err != nil {
		return models.Resource{}, err
	}

	notify.Emit(ctx, e.sink, models.NotificationResource,
		fmt.Sprintf("%s dispatched to alert %s", r.Name, alertID),
		models.PriorityMedium, alertID)
	return r, nil
}

// AssignVolunteer appends the alert to the volunteer's assignments. Fails
// with store.ErrVolunteerUnavailable if the volunteer is not available;
// re-assigning the same alert is a no-op.
func (e *Engine) AssignVolunteer(ctx context.Context, volunteerID, alertID string) (models.Volunteer, error) {
	v, err := e.store.AssignVolunteer(volunteerID, alertID)
	if err != nil {
		return models.Volunteer{}, err
	}

	notify.Emit(ctx, e.sink, models.NotificationVolunteer,
		fmt.Sprintf("volunteer %s assigned to alert %s", v.UserID, alertID),
		models.PriorityMedium, alertID)
	return v, nil
}

// ResourcesWithinZone returns resources inside the disaster's affected
// radius, for map overlays.
func (e *Engine) ResourcesWithinZone(d models.DisasterEvent) []models.Resource {
	var out []models.Resource
	for _, r := range e.store.Resources() {
		if geo.WithinZone(r.Location, d.Center, d.RadiusKm) {
			out = append(out, r)
		}
	}
	return out
}

// VolunteersWithinZone returns volunteers inside the disaster's affected
// radius.
func (e *Engine) VolunteersWithinZone(d models.DisasterEvent) []models.Volunteer {
	var out []models.Volunteer
	for _, v := range e.store.Volunteers() {
		if geo.WithinZone(v.Location, d.Center, d.RadiusKm) {
			out = append(out, v)
		}
	}
	return out
}
