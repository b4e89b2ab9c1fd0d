// Package dispatch routes outbound SOS creation over the primary (hosted)
// channel or the simulated low-power fallback channel, and simulates inbound
// fallback broadcasts from nearby devices.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr1hm/go-relief-coordination/internal/models"
	"github.com/mr1hm/go-relief-coordination/internal/notify"
	"github.com/mr1hm/go-relief-coordination/internal/persistence"
	"github.com/mr1hm/go-relief-coordination/internal/sensor"
	"github.com/mr1hm/go-relief-coordination/internal/store"
)

// Channel identifies which transport carried an alert.
type Channel string

const (
	ChannelPrimary  Channel = "primary"
	ChannelFallback Channel = "fallback"
)

const (
	defaultFallbackLatency = 1500 * time.Millisecond
	defaultSignalInterval  = 30 * time.Second
	defaultSignalChance    = 0.1
)

// Payload is the caller-supplied part of a new SOS alert. A nil Location
// means "read the sensor".
type Payload struct {
	UserID      string
	Message     string
	MedicalInfo string
	Priority    models.AlertPriority
	Location    *models.Coordinate
}

// Config wires the dispatcher's collaborators. Clock, random source and
// ticker factory are injectable so tests can trigger or suppress synthetic
// signals deterministically.
type Config struct {
	Persist    persistence.Store
	LocalState persistence.LocalState
	Store      *store.Store
	Locator    sensor.Locator
	Sink       notify.Sink

	// Default coordinate synthetic mesh signals are jittered around.
	Home models.Coordinate

	FallbackLatency time.Duration
	SignalInterval  time.Duration
	SignalChance    float64

	Now       func() time.Time
	Rand      func() float64
	NewTicker func(d time.Duration) (<-chan time.Time, func())
}

type Dispatcher struct {
	cfg Config

	mu           sync.Mutex
	fallbackMode bool
	online       bool
	observers    []func(enabled bool)
}

func New(cfg Config) *Dispatcher {
	if cfg.FallbackLatency <= 0 {
		cfg.FallbackLatency = defaultFallbackLatency
	}
	if cfg.SignalInterval <= 0 {
		cfg.SignalInterval = defaultSignalInterval
	}
	if cfg.SignalChance <= 0 {
		cfg.SignalChance = defaultSignalChance
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	return &Dispatcher{cfg: cfg, online: true}
}

// Restore loads the persisted offline-mode flag. Called once at startup.
func (d *Dispatcher) Restore(ctx context.Context) error {
	if d.cfg.LocalState == nil {
		return nil
	}
	enabled, err := d.cfg.LocalState.OfflineMode(ctx)
	if err != nil {
		return fmt.Errorf("restoring offline mode: %w", err)
	}
	d.mu.Lock()
	d.fallbackMode = enabled
	d.mu.Unlock()
	return nil
}

// SetOnline records network reachability. Distinct from the operator's
// fallback toggle.
func (d *Dispatcher) SetOnline(online bool) {
	d.mu.Lock()
	d.online = online
	d.mu.Unlock()
}

func (d *Dispatcher) Online() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online
}

// SetFallbackMode flips the operator-controlled fallback toggle, persists it
// and notifies registered observers on an actual change. Fallback mode can be
// forced on while online to simulate degraded infrastructure.
func (d *Dispatcher) SetFallbackMode(ctx context.Context, enabled bool) error {
	d.mu.Lock()
	changed := d.fallbackMode != enabled
	d.fallbackMode = enabled
	observers := make([]func(bool), len(d.observers))
	copy(observers, d.observers)
	d.mu.Unlock()

	if d.cfg.LocalState != nil {
		if err := d.cfg.LocalState.SetOfflineMode(ctx, enabled); err != nil {
			return fmt.Errorf("persisting offline mode: %w", err)
		}
	}
	if changed {
		for _, fn := range observers {
			fn(enabled)
		}
	}
	return nil
}

func (d *Dispatcher) FallbackMode() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fallbackMode
}

// OnModeChange registers an observer for fallback-mode changes.
func (d *Dispatcher) OnModeChange(fn func(enabled bool)) {
	d.mu.Lock()
	d.observers = append(d.observers, fn)
	d.mu.Unlock()
}

// SendAlert creates a new SOS alert. While the primary channel is reachable
// (online and fallback mode not engaged) the alert goes through the
// persistence backend and lands in the store with status new. A primary
// transport failure is recovered by falling back. The fallback path waits the
// simulated broadcast latency and returns a locally-acknowledged alert that
// is NOT recorded centrally.
func (d *Dispatcher) SendAlert(ctx context.Context, p Payload) (models.SOSAlert, Channel, error) {
	loc, err := d.resolveLocation(ctx, p)
	if err != nil {
		return models.SOSAlert{}, "", err
	}

	priority := p.Priority
	if priority == "" {
		priority = models.PriorityHigh
	}
	alert := models.SOSAlert{
		ID:          uuid.NewString(),
		UserID:      p.UserID,
		Location:    loc,
		CreatedAt:   d.cfg.Now(),
		Status:      models.AlertStatusNew,
		Priority:    priority,
		Message:     p.Message,
		MedicalInfo: p.MedicalInfo,
	}

	if d.primaryReachable() {
		created, err := d.cfg.Persist.CreateAlert(ctx, alert)
		if err == nil {
			d.cfg.Store.PutAlert(created)
			notify.Emit(ctx, d.cfg.Sink, models.NotificationSOS,
				"new SOS alert raised", created.Priority, created.ID)
			return created, ChannelPrimary, nil
		}
		// Transport failure on alert creation is recovered locally by
		// switching this send to the fallback path.
		slog.Warn("primary channel failed, falling back", "error", err)
	}

	if err := d.fallbackSend(ctx); err != nil {
		return models.SOSAlert{}, "", err
	}
	notify.Emit(ctx, d.cfg.Sink, models.NotificationSOS,
		"SOS broadcast over fallback channel (local acknowledgment only)", alert.Priority, alert.ID)
	return alert, ChannelFallback, nil
}

func (d *Dispatcher) resolveLocation(ctx context.Context, p Payload) (models.Coordinate, error) {
	if p.Location != nil {
		return *p.Location, nil
	}
	loc, err := d.cfg.Locator.CurrentLocation(ctx)
	if err != nil {
		return models.Coordinate{}, err
	}
	return loc, nil
}

func (d *Dispatcher) primaryReachable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online && !d.fallbackMode
}

// fallbackSend simulates a short-range broadcast: it always succeeds after a
// fixed latency, cancellable only by the caller abandoning the wait.
func (d *Dispatcher) fallbackSend(ctx context.Context) error {
	timer := time.NewTimer(d.cfg.FallbackLatency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Listen surfaces synthetic nearby SOS signals while active: every tick an
// independent draw against SignalChance decides whether a mesh broadcast is
// "received". The returned stop function is synchronous and idempotent; after
// it returns, onSignal is never invoked again, even if a tick was already
// pending. onSignal must not call stop from within the callback.
func (d *Dispatcher) Listen(onSignal func(models.SOSAlert)) (stop func()) {
	ticks, stopTicker := d.cfg.NewTicker(d.cfg.SignalInterval)

	var mu sync.Mutex
	stopped := false
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				mu.Lock()
				if stopped {
					mu.Unlock()
					return
				}
				if d.cfg.Rand() < d.cfg.SignalChance {
					sig := d.syntheticSignal()
					onSignal(sig)
					notify.Emit(context.Background(), d.cfg.Sink, models.NotificationSOS,
						"nearby SOS detected via fallback channel", sig.Priority, sig.ID)
				}
				mu.Unlock()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			stopTicker()
			close(done)
		})
	}
}

func (d *Dispatcher) syntheticSignal() models.SOSAlert {
	jitter := func() float64 { return (d.cfg.Rand() - 0.5) * 0.01 }
	return models.SOSAlert{
		ID:     "mesh-" + uuid.NewString(),
		UserID: "unknown",
		Location: models.Coordinate{
			Latitude:  d.cfg.Home.Latitude + jitter(),
			Longitude: d.cfg.Home.Longitude + jitter(),
		},
		CreatedAt: d.cfg.Now(),
		Status:    models.AlertStatusNew,
		Priority:  models.PriorityHigh,
		Message:   "Nearby SOS detected via mesh relay",
	}
}

// ErrTransport marks collaborator failures surfaced on operations that have
// no fallback path (everything except alert creation).
var ErrTransport = errors.New("transport failure")
