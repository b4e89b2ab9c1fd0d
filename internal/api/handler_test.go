package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-relief-coordination/internal/allocation"
	"github.com/mr1hm/go-relief-coordination/internal/dispatch"
	"github.com/mr1hm/go-relief-coordination/internal/models"
	"github.com/mr1hm/go-relief-coordination/internal/notify"
	"github.com/mr1hm/go-relief-coordination/internal/sensor"
	"github.com/mr1hm/go-relief-coordination/internal/store"
)

type fakeBackend struct {
	failUpdates bool
}

func (f *fakeBackend) CreateAlert(_ context.Context, a models.SOSAlert) (models.SOSAlert, error) {
	return a, nil
}

func (f *fakeBackend) UpdateAlertStatus(_ context.Context, id string, status models.AlertStatus, responderID string) (models.SOSAlert, error) {
	if f.failUpdates {
		return models.SOSAlert{}, errors.New("backend unreachable")
	}
	return models.SOSAlert{ID: id, Status: status, ResponderID: responderID}, nil
}

func (f *fakeBackend) UpdateResourceStatus(_ context.Context, id string, status models.ResourceStatus, assignedTo string) (models.Resource, error) {
	if f.failUpdates {
		return models.Resource{}, errors.New("backend unreachable")
	}
	return models.Resource{ID: id, Status: status, AssignedTo: assignedTo}, nil
}

func (f *fakeBackend) ActiveDisasters(context.Context) ([]models.DisasterEvent, error) {
	return nil, nil
}

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

type testEnv struct {
	router  *gin.Engine
	store   *store.Store
	backend *fakeBackend
	sink    *notify.Memory
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.New()
	sink := notify.NewMemory()
	backend := &fakeBackend{}
	state := &fakeState{}
	engine := allocation.NewEngine(s, sink)
	dispatcher := dispatch.New(dispatch.Config{
		Persist:         backend,
		LocalState:      state,
		Store:           s,
		Locator:         sensor.Fixed(models.Coordinate{Latitude: 34.0522, Longitude: -118.2437}),
		Sink:            sink,
		FallbackLatency: time.Millisecond,
	})

	router := gin.New()
	NewHandler(s, engine, dispatcher, backend, state, sink).RegisterRoutes(router)

	return &testEnv{router: router, store: s, backend: backend, sink: sink}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateSOS_PrimaryChannel(t *testing.T) {
	env := setupTestRouter(t)

	w := doJSON(t, env.router, http.MethodPost, "/api/sos", gin.H{
		"user_id":  "civilian-1",
		"message":  "Trapped in building",
		"priority": "critical",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Alert   models.SOSAlert `json:"alert"`
		Channel string          `json:"channel"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Channel != "primary" {
		t.Errorf("expected primary channel, got %s", resp.Channel)
	}
	if resp.Alert.Status != models.AlertStatusNew {
		t.Errorf("expected status new, got %s", resp.Alert.Status)
	}
	if _, ok := env.store.Alert(resp.Alert.ID); !ok {
		t.Error("alert missing from store")
	}
}

func TestCreateSOS_FallbackViaModeToggle(t *testing.T) {
	env := setupTestRouter(t)

	w := doJSON(t, env.router, http.MethodPut, "/api/mode", gin.H{"fallback_enabled": true})
	if w.Code != http.StatusOK {
		t.Fatalf("mode toggle failed: %d", w.Code)
	}

	w = doJSON(t, env.router, http.MethodPost, "/api/sos", gin.H{"user_id": "civilian-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Alert   models.SOSAlert `json:"alert"`
		Channel string          `json:"channel"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Channel != "fallback" {
		t.Errorf("expected fallback channel, got %s", resp.Channel)
	}
	if _, ok := env.store.Alert(resp.Alert.ID); ok {
		t.Error("fallback alert must not be stored centrally")
	}
}

func TestCreateSOS_MissingUserID(t *testing.T) {
	env := setupTestRouter(t)
	w := doJSON(t, env.router, http.MethodPost, "/api/sos", gin.H{"message": "help"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGetAlerts_SortedAndFiltered(t *testing.T) {
	env := setupTestRouter(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	env.store.PutAlert(models.SOSAlert{ID: "A", Status: models.AlertStatusNew, Priority: models.PriorityHigh, CreatedAt: base.Add(10 * time.Second)})
	env.store.PutAlert(models.SOSAlert{ID: "B", Status: models.AlertStatusNew, Priority: models.PriorityCritical, CreatedAt: base.Add(5 * time.Second)})
	env.store.PutAlert(models.SOSAlert{ID: "C", Status: models.AlertStatusResolved, Priority: models.PriorityHigh, CreatedAt: base.Add(20 * time.Second)})

	w := doJSON(t, env.router, http.MethodGet, "/api/alerts", nil)
	var resp struct {
		Alerts []models.SOSAlert `json:"alerts"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Alerts) != 3 || resp.Alerts[0].ID != "B" || resp.Alerts[1].ID != "C" {
		t.Errorf("unexpected order: %+v", resp.Alerts)
	}

	w = doJSON(t, env.router, http.MethodGet, "/api/alerts?status=resolved", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Alerts) != 1 || resp.Alerts[0].ID != "C" {
		t.Errorf("unexpected filtered alerts: %+v", resp.Alerts)
	}
}

func TestUpdateAlertStatus_InvalidTransition(t *testing.T) {
	env := setupTestRouter(t)
	env.store.PutAlert(models.SOSAlert{ID: "sos-1", Status: models.AlertStatusNew, Priority: models.PriorityHigh, CreatedAt: time.Now()})

	w := doJSON(t, env.router, http.MethodPatch, "/api/alerts/sos-1/status", gin.H{
		"status":       "responding",
		"responder_id": "responder-1",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for new->responding, got %d", w.Code)
	}

	a, _ := env.store.Alert("sos-1")
	if a.Status != models.AlertStatusNew {
		t.Errorf("rejected transition mutated state: %s", a.Status)
	}
}

func TestUpdateAlertStatus_BackendFailureSurfaced(t *testing.T) {
	env := setupTestRouter(t)
	env.backend.failUpdates = true
	env.store.PutAlert(models.SOSAlert{ID: "sos-1", Status: models.AlertStatusNew, Priority: models.PriorityHigh, CreatedAt: time.Now()})

	w := doJSON(t, env.router, http.MethodPatch, "/api/alerts/sos-1/status", gin.H{
		"status":       "acknowledged",
		"responder_id": "responder-1",
	})
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 on backend failure, got %d", w.Code)
	}
}

func TestAllocateResource_Lifecycle(t *testing.T) {
	env := setupTestRouter(t)
	env.store.PutAlert(models.SOSAlert{ID: "A1", Status: models.AlertStatusNew, Priority: models.PriorityHigh, CreatedAt: time.Now()})
	env.store.UpsertResource(models.Resource{ID: "R1", Name: "Water", Status: models.ResourceStatusAvailable})

	w := doJSON(t, env.router, http.MethodPost, "/api/resources/R1/allocate", gin.H{"alert_id": "A1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	r, _ := env.store.Resource("R1")
	if r.Status != models.ResourceStatusInTransit || r.AssignedTo != "A1" {
		t.Errorf("unexpected resource state: %+v", r)
	}

	w = doJSON(t, env.router, http.MethodPost, "/api/resources/R1/allocate", gin.H{"alert_id": "A1"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 on re-allocation, got %d", w.Code)
	}
}

func TestAssignVolunteer_NotFound(t *testing.T) {
	env := setupTestRouter(t)
	env.store.PutAlert(models.SOSAlert{ID: "A1", Status: models.AlertStatusNew, Priority: models.PriorityHigh, CreatedAt: time.Now()})

	w := doJSON(t, env.router, http.MethodPost, "/api/volunteers/missing/assign", gin.H{"alert_id": "A1"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestDonationEndpoints(t *testing.T) {
	env := setupTestRouter(t)

	w := doJSON(t, env.router, http.MethodPost, "/api/donations", gin.H{
		"donor_id": "donor-1",
		"amount":   250.0,
		"currency": "USD",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Donation models.Donation `json:"donation"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Donation.Status != models.DonationStatusPending || resp.Donation.TransactionHash == "" {
		t.Errorf("unexpected donation: %+v", resp.Donation)
	}

	// Skipping confirmed is rejected.
	w = doJSON(t, env.router, http.MethodPatch, "/api/donations/"+resp.Donation.ID+"/status", gin.H{
		"status": "allocated",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}

	w = doJSON(t, env.router, http.MethodPatch, "/api/donations/"+resp.Donation.ID+"/status", gin.H{
		"status": "confirmed",
	})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestGetDisasters_GeoJSON(t *testing.T) {
	env := setupTestRouter(t)
	env.store.UpsertDisaster(models.DisasterEvent{
		ID:       "d1",
		Name:     "LA Earthquake",
		Type:     "earthquake",
		Severity: 4,
		Center:   models.Coordinate{Latitude: 34.0522, Longitude: -118.2437},
		RadiusKm: 25,
		Status:   models.DisasterStatusActive,
	})

	w := doJSON(t, env.router, http.MethodGet, "/api/disasters", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var fc FeatureCollection
	json.Unmarshal(w.Body.Bytes(), &fc)
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("unexpected collection: %+v", fc)
	}
	f := fc.Features[0]
	if f.Geometry.Coordinates[0] != -118.2437 || f.Properties["radius_km"] != 25.0 {
		t.Errorf("unexpected feature: %+v", f)
	}
}

func TestDisasterZone(t *testing.T) {
	env := setupTestRouter(t)
	env.store.UpsertDisaster(models.DisasterEvent{
		ID:       "d1",
		Center:   models.Coordinate{Latitude: 34.0522, Longitude: -118.2437},
		RadiusKm: 25,
	})
	env.store.UpsertResource(models.Resource{
		ID:       "near",
		Location: models.Coordinate{Latitude: 34.0195, Longitude: -118.4912},
	})
	env.store.UpsertResource(models.Resource{
		ID:       "far",
		Location: models.Coordinate{Latitude: 37.7749, Longitude: -122.4194},
	})

	w := doJSON(t, env.router, http.MethodGet, "/api/disasters/d1/zone", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Resources []models.Resource `json:"resources"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Resources) != 1 || resp.Resources[0].ID != "near" {
		t.Errorf("unexpected zone resources: %+v", resp.Resources)
	}

	w = doJSON(t, env.router, http.MethodGet, "/api/disasters/missing/zone", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestModeRoundTrip(t *testing.T) {
	env := setupTestRouter(t)

	w := doJSON(t, env.router, http.MethodGet, "/api/mode", nil)
	var mode struct {
		FallbackEnabled bool `json:"fallback_enabled"`
		Online          bool `json:"online"`
	}
	json.Unmarshal(w.Body.Bytes(), &mode)
	if mode.FallbackEnabled || !mode.Online {
		t.Errorf("unexpected initial mode: %+v", mode)
	}

	doJSON(t, env.router, http.MethodPut, "/api/mode", gin.H{"fallback_enabled": true})

	w = doJSON(t, env.router, http.MethodGet, "/api/mode", nil)
	json.Unmarshal(w.Body.Bytes(), &mode)
	if !mode.FallbackEnabled {
		t.Error("expected fallback mode enabled after toggle")
	}
}

func TestHealth(t *testing.T) {
	env := setupTestRouter(t)
	w := doJSON(t, env.router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
