package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-relief-coordination/internal/models"
	"github.com/mr1hm/go-relief-coordination/internal/notify"
	"github.com/mr1hm/go-relief-coordination/internal/sensor"
	"github.com/mr1hm/go-relief-coordination/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var home = models.Coordinate{Latitude: 34.0522, Longitude: -118.2437}

// fakeBackend implements persistence.Store for tests.
type fakeBackend struct {
	failCreate bool
	created    atomic.Int64
}

func (f *fakeBackend) CreateAlert(_ context.Context, a models.SOSAlert) (models.SOSAlert, error) {
	if f.failCreate {
		return models.SOSAlert{}, errors.New("backend unreachable")
	}
	f.created.Add(1)
	return a, nil
}

func (f *fakeBackend) UpdateAlertStatus(context.Context, string, models.AlertStatus, string) (models.SOSAlert, error) {
	return models.SOSAlert{}, errors.New("not implemented")
}

func (f *fakeBackend) UpdateResourceStatus(context.Context, string, models.ResourceStatus, string) (models.Resource, error) {
	return models.Resource{}, errors.New("not implemented")
}

func (f *fakeBackend) ActiveDisasters(context.Context) ([]models.DisasterEvent, error) {
	return nil, nil
}

// fakeState implements persistence.LocalState in memory.
type fakeState struct {
	offline  bool
	disaster string
}

func (f *fakeState) SetOfflineMode(_ context.Context, enabled bool) error {
	f.offline = enabled
	return nil
}
func (f *fakeState) OfflineMode(context.Context) (bool, error) { return f.offline, nil }
func (f *fakeState) SetSelectedDisaster(_ context.Context, id string) error {
	f.disaster = id
	return nil
}
func (f *fakeState) SelectedDisaster(context.Context) (string, error) { return f.disaster, nil }

func newTestDispatcher(t *testing.T, backend *fakeBackend) (*Dispatcher, *store.Store, *notify.Memory) {
	t.Helper()
	s := store.New()
	sink := notify.NewMemory()
	d := New(Config{
		Persist:         backend,
		LocalState:      &fakeState{},
		Store:           s,
		Locator:         sensor.Fixed(home),
		Sink:            sink,
		Home:            home,
		FallbackLatency: time.Millisecond,
	})
	return d, s, sink
}

func TestSendAlert_PrimaryPath(t *testing.T) {
	backend := &fakeBackend{}
	d, s, sink := newTestDispatcher(t, backend)

	alert, ch, err := d.SendAlert(context.Background(), Payload{
		UserID:   "civilian-1",
		Message:  "Trapped in building",
		Priority: models.PriorityCritical,
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if ch != ChannelPrimary {
		t.Errorf("expected primary channel, got %s", ch)
	}
	if alert.Status != models.AlertStatusNew {
		t.Errorf("expected status new, got %s", alert.Status)
	}
	if backend.created.Load() != 1 {
		t.Errorf("expected 1 backend create, got %d", backend.created.Load())
	}
	if _, ok := s.Alert(alert.ID); !ok {
		t.Error("primary-path alert must land in the store")
	}
	if len(sink.All()) != 1 {
		t.Errorf("expected 1 notification, got %d", len(sink.All()))
	}
}

func TestSendAlert_FallbackWhenOffline(t *testing.T) {
	backend := &fakeBackend{}
	d, s, _ := newTestDispatcher(t, backend)
	d.SetOnline(false)

	alert, ch, err := d.SendAlert(context.Background(), Payload{UserID: "civilian-1"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if ch != ChannelFallback {
		t.Errorf("expected fallback channel, got %s", ch)
	}
	if backend.created.Load() != 0 {
		t.Error("offline send must not reach the backend")
	}
	// Local acknowledgment only, no central record.
	if _, ok := s.Alert(alert.ID); ok {
		t.Error("fallback alert must not be stored centrally")
	}
}

func TestSendAlert_FallbackModeForcedWhileOnline(t *testing.T) {
	backend := &fakeBackend{}
	d, _, _ := newTestDispatcher(t, backend)
	if err := d.SetFallbackMode(context.Background(), true); err != nil {
		t.Fatalf("set fallback mode: %v", err)
	}

	_, ch, err := d.SendAlert(context.Background(), Payload{UserID: "civilian-1"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if ch != ChannelFallback {
		t.Errorf("forced fallback mode must route to fallback, got %s", ch)
	}
}

func TestSendAlert_PrimaryFailureRecoversViaFallback(t *testing.T) {
	backend := &fakeBackend{failCreate: true}
	d, _, _ := newTestDispatcher(t, backend)

	_, ch, err := d.SendAlert(context.Background(), Payload{UserID: "civilian-1"})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if ch != ChannelFallback {
		t.Errorf("expected fallback after transport failure, got %s", ch)
	}
}

func TestSendAlert_DefaultPriorityAndSensorSubstitution(t *testing.T) {
	backend := &fakeBackend{}
	d, _, _ := newTestDispatcher(t, backend)
	denied := sensor.LocatorFunc(func(context.Context) (models.Coordinate, error) {
		return models.Coordinate{}, sensor.ErrPermissionDenied
	})
	d.cfg.Locator = sensor.WithDefault(denied, home)

	alert, _, err := d.SendAlert(context.Background(), Payload{UserID: "civilian-1"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if alert.Priority != models.PriorityHigh {
		t.Errorf("expected default priority high, got %s", alert.Priority)
	}
	if alert.Location != home {
		t.Errorf("expected default coordinate, got %+v", alert.Location)
	}
}

func TestSendAlert_SensorErrorPropagates(t *testing.T) {
	backend := &fakeBackend{}
	d, _, _ := newTestDispatcher(t, backend)
	d.cfg.Locator = sensor.LocatorFunc(func(context.Context) (models.Coordinate, error) {
		return models.Coordinate{}, sensor.ErrTimeout
	})

	_, _, err := d.SendAlert(context.Background(), Payload{UserID: "civilian-1"})
	if !errors.Is(err, sensor.ErrTimeout) {
		t.Errorf("expected sensor timeout to propagate, got %v", err)
	}
}

func TestSendAlert_FallbackCancellable(t *testing.T) {
	backend := &fakeBackend{}
	d, _, _ := newTestDispatcher(t, backend)
	d.cfg.FallbackLatency = time.Minute
	d.SetOnline(false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := d.SendAlert(ctx, Payload{UserID: "civilian-1"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSetFallbackMode_PersistsAndNotifiesObservers(t *testing.T) {
	backend := &fakeBackend{}
	state := &fakeState{}
	s := store.New()
	d := New(Config{
		Persist:    backend,
		LocalState: state,
		Store:      s,
		Locator:    sensor.Fixed(home),
		Home:       home,
	})

	var events []bool
	d.OnModeChange(func(enabled bool) { events = append(events, enabled) })

	d.SetFallbackMode(context.Background(), true)
	d.SetFallbackMode(context.Background(), true) // no change, no event
	d.SetFallbackMode(context.Background(), false)

	if len(events) != 2 || events[0] != true || events[1] != false {
		t.Errorf("unexpected observer events: %v", events)
	}
	if state.offline {
		t.Error("expected final persisted state disabled")
	}

	// Restore picks the flag back up.
	state.offline = true
	if err := d.Restore(context.Background()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !d.FallbackMode() {
		t.Error("expected fallback mode restored from local state")
	}
}

func TestListen_DeterministicSignals(t *testing.T) {
	backend := &fakeBackend{}
	d, _, sink := newTestDispatcher(t, backend)

	ticks := make(chan time.Time, 1)
	d.cfg.NewTicker = func(time.Duration) (<-chan time.Time, func()) {
		return ticks, func() {}
	}
	d.cfg.Rand = func() float64 { return 0 } // always below chance

	received := make(chan models.SOSAlert, 8)
	stop := d.Listen(func(a models.SOSAlert) { received <- a })

	ticks <- time.Now()
	select {
	case sig := <-received:
		if sig.Status != models.AlertStatusNew || sig.Message == "" {
			t.Errorf("unexpected synthetic signal: %+v", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for synthetic signal")
	}

	stop()
	stop() // idempotent

	// A tick racing the cancellation must not surface a signal.
	select {
	case ticks <- time.Now():
	default:
	}
	select {
	case <-received:
		t.Error("signal delivered after stop")
	case <-time.After(50 * time.Millisecond):
	}

	if len(sink.All()) == 0 {
		t.Error("expected fallback-signal notification")
	}
}

func TestListen_SuppressedSignals(t *testing.T) {
	backend := &fakeBackend{}
	d, _, _ := newTestDispatcher(t, backend)

	ticks := make(chan time.Time, 1)
	d.cfg.NewTicker = func(time.Duration) (<-chan time.Time, func()) {
		return ticks, func() {}
	}
	d.cfg.Rand = func() float64 { return 1 } // never below chance

	received := make(chan models.SOSAlert, 1)
	stop := d.Listen(func(a models.SOSAlert) { received <- a })
	defer stop()

	ticks <- time.Now()
	select {
	case <-received:
		t.Error("expected no signal when the draw fails")
	case <-time.After(50 * time.Millisecond):
	}
}
