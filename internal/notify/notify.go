// Package notify defines the customer notification sink: an append-only
// projection of status updates for client consumption. Only the status
// translator writes here; no other component may reach the customer surface.
package notify

import (
	"context"
	"time"
)

// Notification is one customer-facing status update. Notifications are
// append-only; there is no update or delete path.
type Notification struct {
	ID                string    `json:"id"`
	CorrelationID     string    `json:"correlation_id"`
	CustomerPseudonym string    `json:"customer_pseudonym"`
	Status            string    `json:"status"`
	Message           string    `json:"message"`
	Detail            Detail    `json:"detail"`
	CreatedAt         time.Time `json:"created_at"`
}

// Detail carries attribution for a notification.
type Detail struct {
	Actor         string `json:"actor"`
	Reason        string `json:"reason,omitempty"`
	OriginalActor string `json:"original_actor,omitempty"`
}

// Sink persists notifications.
type Sink interface {
	Insert(ctx context.Context, n *Notification) error
	List(ctx context.Context, correlationID string) ([]*Notification, error)
}
