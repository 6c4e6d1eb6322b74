package entities

import (
	"time"

	"github.com/google/uuid"
)

// NotificationAction is a UI affordance attached to a notification.
type NotificationAction struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

// NotificationEntity is a UI-facing event. Read notifications drop out of
// the active set; persistent ones bypass auto-hide and require explicit
// dismissal.
type NotificationEntity struct {
	ID         uuid.UUID            `json:"id"`
	Type       NotificationType     `json:"type"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	Actions    []NotificationAction `json:"actions,omitempty"`
	Persistent bool                 `json:"persistent"`
	Read       bool                 `json:"read"`
	JobID      *uuid.UUID           `json:"jobId,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
}
