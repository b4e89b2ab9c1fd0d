// Package sensor defines the location sensor collaborator.
package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/mr1hm/go-relief-coordination/internal/models"
)

var (
	// ErrPermissionDenied means the user refused location access. Callers
	// substitute a configured default coordinate instead of failing.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrTimeout means the fix did not arrive in time. Propagated.
	ErrTimeout = errors.New("location timed out")
)

// Locator produces the device's current position.
type Locator interface {
	CurrentLocation(ctx context.Context) (models.Coordinate, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (models.Coordinate, error)

func (f LocatorFunc) CurrentLocation(ctx context.Context) (models.Coordinate, error) {
	return f(ctx)
}

// Fixed always reports the same coordinate. Useful for simulated devices.
func Fixed(c models.Coordinate) Locator {
	return LocatorFunc(func(context.Context) (models.Coordinate, error) {
		return c, nil
	})
}

// WithDefault wraps a locator so that a permission denial resolves to the
// given default coordinate. Every other sensor error propagates.
func WithDefault(inner Locator, fallback models.Coordinate) Locator {
	return LocatorFunc(func(ctx context.Context) (models.Coordinate, error) {
		c, err := inner.CurrentLocation(ctx)
		if err == nil {
			return c, nil
		}
		if errors.Is(err, ErrPermissionDenied) {
			return fallback, nil
		}
		return models.Coordinate{}, fmt.Errorf("sensor: %w", err)
	})
}
