// Package realtime fans out out-of-band entity updates (other operators'
// actions arriving from the hosted backend) to subscribers. The sync manager
// subscribes and applies each update as an upsert into the coordination
// store.
package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-relief-coordination/internal/models"
)

type UpdateKind string

const (
	UpdateAlert    UpdateKind = "alert"
	UpdateResource UpdateKind = "resource"
	UpdateDisaster UpdateKind = "disaster"
)

// Update carries one changed entity. Exactly one of the entity fields is set,
// matching Kind.
type Update struct {
	Kind     UpdateKind
	Alert    *models.SOSAlert
	Resource *models.Resource
	Disaster *models.DisasterEvent
}

type Broadcaster struct {
	subscribers map[uint64]chan Update
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan Update),
	}
}

func (b *Broadcaster) Subscribe() (uint64, chan Update) {
	id := b.nextID.Add(1)
	ch := make(chan Update, 100) // Buffer for a burst of backend changes

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Publish(u Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- u:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing consumers to exit gracefully.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
