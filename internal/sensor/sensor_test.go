package sensor

import (
	"context"
	"errors"
	"testing"

	"github.com/mr1hm/go-relief-coordination/internal/models"
)

var defaultCoord = models.Coordinate{Latitude: 34.0522, Longitude: -118.2437}

func TestWithDefault_SubstitutesOnPermissionDenied(t *testing.T) {
	denied := LocatorFunc(func(context.Context) (models.Coordinate, error) {
		return models.Coordinate{}, ErrPermissionDenied
	})

	c, err := WithDefault(denied, defaultCoord).CurrentLocation(context.Background())
	if err != nil {
		t.Fatalf("expected substitution, got %v", err)
	}
	if c != defaultCoord {
		t.Errorf("expected default coordinate, got %+v", c)
	}
}

func TestWithDefault_PropagatesOtherErrors(t *testing.T) {
	timedOut := LocatorFunc(func(context.Context) (models.Coordinate, error) {
		return models.Coordinate{}, ErrTimeout
	})

	_, err := WithDefault(timedOut, defaultCoord).CurrentLocation(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout to propagate, got %v", err)
	}
}

func TestWithDefault_PassesThroughSuccess(t *testing.T) {
	here := models.Coordinate{Latitude: 35.6762, Longitude: 139.6503}
	c, err := WithDefault(Fixed(here), defaultCoord).CurrentLocation(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != here {
		t.Errorf("expected actual fix, got %+v", c)
	}
}
