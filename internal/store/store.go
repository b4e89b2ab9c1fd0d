// Package store holds the in-memory aggregate of disasters, alerts,
// resources, volunteers and donations. It is the single source of truth for
// the presentation layer.
//
// All mutations run through one mutex, so each operation is applied fully
// before the next one starts and readers always observe a complete snapshot.
// Entities are never deleted.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr1hm/go-relief-coordination/internal/lifecycle"
	"github.com/mr1hm/go-relief-coordination/internal/models"
)

var (
	ErrNotFound                  = errors.New("entity not found")
	ErrResourceUnavailable       = errors.New("resource unavailable")
	ErrVolunteerUnavailable      = errors.New("volunteer unavailable")
	ErrInvalidDonationTransition = errors.New("invalid donation status transition")
	ErrInvalidDonation           = errors.New("donation amount must be positive")
)

type Store struct {
	mu sync.Mutex

	// Insertion order is preserved per collection; the ordered slices back
	// the index maps.
	alerts     []models.SOSAlert
	alertIdx   map[string]int
	disasters  []models.DisasterEvent
	disIdx     map[string]int
	resources  []models.Resource
	resIdx     map[string]int
	volunteers []models.Volunteer
	volIdx     map[string]int
	donations  []models.Donation
	donIdx     map[string]int

	activeDisasterID string

	now func() time.Time
}

func New() *Store {
	return &Store{
		alertIdx: make(map[string]int),
		disIdx:   make(map[string]int),
		resIdx:   make(map[string]int),
		volIdx:   make(map[string]int),
		donIdx:   make(map[string]int),
		now:      time.Now,
	}
}

// PutAlert inserts or replaces an alert. Used for alerts created over the
// primary channel and for realtime upserts from other operators.
func (s *Store) PutAlert(a models.SOSAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.alertIdx[a.ID]; ok {
		s.alerts[i] = a
		return
	}
	s.alertIdx[a.ID] = len(s.alerts)
	s.alerts = append(s.alerts, a)
}

// Alert returns a copy of the alert with the given id.
func (s *Store) Alert(id string) (models.SOSAlert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.alertIdx[id]
	if !ok {
		return models.SOSAlert{}, false
	}
	return s.alerts[i], true
}

// Alerts returns all alerts in display order: priority rank first, newest
// first within a priority, insertion order on full ties. The ordering is
// recomputed on every call, never stored.
func (s *Store) Alerts() []models.SOSAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lifecycle.SortAlerts(s.alerts)
}

// AlertsByStatus returns alerts with the given status, in display order.
func (s *Store) AlertsByStatus(status models.AlertStatus) []models.SOSAlert {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]models.SOSAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.Status == status {
			filtered = append(filtered, a)
		}
	}
	return lifecycle.SortAlerts(filtered)
}

// AdvanceAlert moves an alert through its lifecycle. Illegal moves return
// *lifecycle.InvalidTransitionError and leave the alert unchanged.
func (s *Store) AdvanceAlert(id string, next models.AlertStatus, responderID string) (models.SOSAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.alertIdx[id]
	if !ok {
		return models.SOSAlert{}, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}

	a := s.alerts[i]
	if err := lifecycle.Advance(&a, next, responderID, s.now()); err != nil {
		return models.SOSAlert{}, err
	}
	s.alerts[i] = a
	return a, nil
}

func (s *Store) UpsertDisaster(d models.DisasterEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.disIdx[d.ID]; ok {
		s.disasters[i] = d
		return
	}
	s.disIdx[d.ID] = len(s.disasters)
	s.disasters = append(s.disasters, d)
}

func (s *Store) Disaster(id string) (models.DisasterEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.disIdx[id]
	if !ok {
		return models.DisasterEvent{}, false
	}
	return s.disasters[i], true
}

func (s *Store) Disasters() []models.DisasterEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.DisasterEvent, len(s.disasters))
	copy(out, s.disasters)
	return out
}

// SetActiveDisaster records the operator-selected disaster. An empty id
// clears the selection.
func (s *Store) SetActiveDisaster(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, ok := s.disIdx[id]; !ok {
			return fmt.Errorf("disaster %s: %w", id, ErrNotFound)
		}
	}
	s.activeDisasterID = id
	return nil
}

func (s *Store) ActiveDisaster() (models.DisasterEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeDisasterID == "" {
		return models.DisasterEvent{}, false
	}
	i, ok := s.disIdx[s.activeDisasterID]
	if !ok {
		return models.DisasterEvent{}, false
	}
	return s.disasters[i], true
}

func (s *Store) UpsertResource(r models.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.resIdx[r.ID]; ok {
		s.resources[i] = r
		return
	}
	s.resIdx[r.ID] = len(s.resources)
	s.resources = append(s.resources, r)
}

func (s *Store) Resource(id string) (models.Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.resIdx[id]
	if !ok {
		return models.Resource{}, false
	}
	return s.resources[i], true
}

func (s *Store) Resources() []models.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Resource, len(s.resources))
	copy(out, s.resources)
	return out
}

// AllocateResource binds an available resource to an alert: the resource
// moves to in-transit with AssignedTo set. The availability check and the
// mutation happen under the same lock, so a resource cannot be double-booked.
func (s *Store) AllocateResource(resourceID, alertID string) (models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.resIdx[resourceID]
	if !ok {
		return models.Resource{}, fmt.Errorf("resource %s: %w", resourceID, ErrNotFound)
	}
	if s.resources[i].Status != models.ResourceStatusAvailable {
		return models.Resource{}, fmt.Errorf("resource %s is %s: %w",
			resourceID, s.resources[i].Status, ErrResourceUnavailable)
	}
	if _, ok := s.alertIdx[alertID]; !ok {
		return models.Resource{}, fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}

	s.resources[i].Status = models.ResourceStatusInTransit
	s.resources[i].AssignedTo = alertID
	return s.resources[i], nil
}

func (s *Store) UpsertVolunteer(v models.Volunteer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.volIdx[v.ID]; ok {
		s.volunteers[i] = v
		return
	}
	s.volIdx[v.ID] = len(s.volunteers)
	s.volunteers = append(s.volunteers, v)
}

func (s *Store) Volunteer(id string) (models.Volunteer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.volIdx[id]
	if !ok {
		return models.Volunteer{}, false
	}
	return cloneVolunteer(s.volunteers[i]), true
}

func (s *Store) Volunteers() []models.Volunteer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Volunteer, len(s.volunteers))
	for i, v := range s.volunteers {
		out[i] = cloneVolunteer(v)
	}
	return out
}

// AssignVolunteer appends the alert to an available volunteer's assignment
// list. Re-assigning the same alert is a no-op, not an error. An unavailable
// volunteer keeps prior assignments but gains no new ones.
func (s *Store) AssignVolunteer(volunteerID, alertID string) (models.Volunteer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.volIdx[volunteerID]
	if !ok {
		return models.Volunteer{}, fmt.Errorf("volunteer %s: %w", volunteerID, ErrNotFound)
	}
	if !s.volunteers[i].Availability {
		return models.Volunteer{}, fmt.Errorf("volunteer %s: %w", volunteerID, ErrVolunteerUnavailable)
	}
	if _, ok := s.alertIdx[alertID]; !ok {
		return models.Volunteer{}, fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}

	for _, id := range s.volunteers[i].AssignedAlerts {
		if id == alertID {
			return cloneVolunteer(s.volunteers[i]), nil
		}
	}
	s.volunteers[i].AssignedAlerts = append(s.volunteers[i].AssignedAlerts, alertID)
	return cloneVolunteer(s.volunteers[i]), nil
}

// AddDonation records a new donation as pending with a transaction hash that
// stays stable for the donation's life.
func (s *Store) AddDonation(donorID string, amount float64, currency string) (models.Donation, error) {
	if amount <= 0 {
		return models.Donation{}, ErrInvalidDonation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := models.Donation{
		ID:              uuid.NewString(),
		DonorID:         donorID,
		Amount:          amount,
		Currency:        currency,
		CreatedAt:       s.now(),
		Status:          models.DonationStatusPending,
		TransactionHash: newTransactionHash(),
	}
	s.donIdx[d.ID] = len(s.donations)
	s.donations = append(s.donations, d)
	return d, nil
}

// AdvanceDonation moves a donation one step along
// pending -> confirmed -> allocated -> delivered. allocatedTo is recorded
// when the donation enters allocated.
func (s *Store) AdvanceDonation(id string, next models.DonationStatus, allocatedTo string) (models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.donIdx[id]
	if !ok {
		return models.Donation{}, fmt.Errorf("donation %s: %w", id, ErrNotFound)
	}

	cur := models.DonationStatusRank(s.donations[i].Status)
	want := models.DonationStatusRank(next)
	if want < 0 || want != cur+1 {
		return models.Donation{}, fmt.Errorf("donation %s: %s -> %s: %w",
			id, s.donations[i].Status, next, ErrInvalidDonationTransition)
	}

	s.donations[i].Status = next
	if next == models.DonationStatusAllocated {
		s.donations[i].AllocatedTo = allocatedTo
	}
	return s.donations[i], nil
}

func (s *Store) Donations() []models.Donation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Donation, len(s.donations))
	copy(out, s.donations)
	return out
}

func cloneVolunteer(v models.Volunteer) models.Volunteer {
	cp := v
	cp.Skills = append([]string(nil), v.Skills...)
	cp.AssignedAlerts = append([]string(nil), v.AssignedAlerts...)
	return cp
}

func newTransactionHash() string {
	b := make([]byte, 16)
	rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}
