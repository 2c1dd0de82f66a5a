// Package memsink provides an in-memory implementation of notify.Sink.
package memsink

import (
	"context"
	"sync"

	"github.com/linnemanlabs/fnol/internal/notify"
)

// Sink holds notifications in memory. Suitable for dev/testing.
type Sink struct {
	mu            sync.RWMutex
	notifications []*notify.Notification
}

// New initializes a new in-memory Sink.
func New() *Sink {
	return &Sink{}
}

// Insert appends a copy of the notification.
func (s *Sink) Insert(_ context.Context, n *notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

// List returns notifications for one claim, oldest first.
func (s *Sink) List(_ context.Context, correlationID string) ([]*notify.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*notify.Notification
	for _, n := range s.notifications {
		if n.CorrelationID == correlationID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}
