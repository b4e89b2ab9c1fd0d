// Package sync applies realtime entity updates to the coordination store.
//
// A single applier goroutine drains the subscription in FIFO order, so
// updates for one entity land in the order they were published and the
// store's single-writer discipline is preserved.
package sync

import (
	"context"
	"log/slog"
	stdsync "sync"

	"github.com/mr1hm/go-relief-coordination/internal/realtime"
	"github.com/mr1hm/go-relief-coordination/internal/store"
)

type Manager struct {
	store       *store.Store
	broadcaster *realtime.Broadcaster

	subID   uint64
	updates chan realtime.Update
	wg      stdsync.WaitGroup
}

func NewManager(s *store.Store, b *realtime.Broadcaster) *Manager {
	return &Manager{
		store:       s,
		broadcaster: b,
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.subID, m.updates = m.broadcaster.Subscribe()
	m.wg.Add(1)
	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync manager shutting down")
			return
		case u, ok := <-m.updates:
			if !ok {
				return
			}
			m.apply(u)
		}
	}
}

func (m *Manager) apply(u realtime.Update) {
	switch u.Kind {
	case realtime.UpdateAlert:
		if u.Alert != nil {
			m.store.PutAlert(*u.Alert)
			slog.Debug("applied alert update", "id", u.Alert.ID, "status", u.Alert.Status)
		}
	case realtime.UpdateResource:
		if u.Resource != nil {
			m.store.UpsertResource(*u.Resource)
			slog.Debug("applied resource update", "id", u.Resource.ID, "status", u.Resource.Status)
		}
	case realtime.UpdateDisaster:
		if u.Disaster != nil {
			m.store.UpsertDisaster(*u.Disaster)
			slog.Debug("applied disaster update", "id", u.Disaster.ID, "status", u.Disaster.Status)
		}
	default:
		slog.Warn("dropping update of unknown kind", "kind", u.Kind)
	}
}

// Stop unsubscribes and waits for the applier to drain. Safe to call once
// after Start.
func (m *Manager) Stop() {
	m.broadcaster.Unsubscribe(m.subID)
	m.wg.Wait()
}
