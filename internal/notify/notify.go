// Package notify defines the notification sink collaborator. The core emits
// a notification whenever it creates an alert, completes an allocation, or
// detects a fallback signal; delivery and rendering belong to the sink.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr1hm/go-relief-coordination/internal/models"
)

type Sink interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Emit builds a notification and hands it to the sink. A nil sink and sink
// errors are both tolerated; notification delivery never fails the operation
// that produced it.
func Emit(ctx context.Context, sink Sink, typ models.NotificationType, message string, priority models.AlertPriority, relatedID string) {
	if sink == nil {
		return
	}
	n := models.Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Message:   message,
		Priority:  priority,
		RelatedID: relatedID,
		CreatedAt: time.Now(),
	}
	if err := sink.Notify(ctx, n); err != nil {
		slog.Warn("notification delivery failed", "type", typ, "error", err)
	}
}

// Memory collects notifications in memory. Used in tests and as the buffer
// the dashboard's notification panel drains.
type Memory struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Notify(_ context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *Memory) All() []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}
