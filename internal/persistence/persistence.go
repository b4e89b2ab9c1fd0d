// Package persistence defines the hosted-backend collaborator used as the
// primary channel, plus the small local key/value state owned by the core.
package persistence

import (
	"context"
	"errors"

	"github.com/mr1hm/go-relief-coordination/internal/models"
)

// ErrNotFound marks lookups and updates against ids the backend has no
// record of. Every other failure (network, auth, validation) is wrapped so
// callers can distinguish it from partial data.
var ErrNotFound = errors.New("record not found")

// Store is the persistence collaborator. Implementations must surface
// failures as errors, never as silently partial results.
type Store interface {
	CreateAlert(ctx context.Context, a models.SOSAlert) (models.SOSAlert, error)
	UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus, responderID string) (models.SOSAlert, error)
	UpdateResourceStatus(ctx context.Context, id string, status models.ResourceStatus, assignedTo string) (models.Resource, error)
	ActiveDisasters(ctx context.Context) ([]models.DisasterEvent, error)
}

// LocalState holds the two opaque entries the core persists locally: the
// offline-mode flag and the currently-selected disaster id.
type LocalState interface {
	SetOfflineMode(ctx context.Context, enabled bool) error
	OfflineMode(ctx context.Context) (bool, error)
	SetSelectedDisaster(ctx context.Context, id string) error
	SelectedDisaster(ctx context.Context) (string, error)
}
