package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLogEntry is one immutable record of a privileged action. Entries are
// only ever inserted, and optionally purged by age.
type AuditLogEntry struct {
	ID           uuid.UUID      `json:"id"`
	UserID       *string        `json:"userId,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType,omitempty"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Details      datatypes.JSON `json:"details,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage *string        `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditQuery is the AND-combined filter set for reading the trail.
type AuditQuery struct {
	UserID       string
	Action       string // case-sensitive substring match
	ResourceType string
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Success      *bool
	Page         int
	PageSize     int
}

// AuditActionCount is one row of the top-N breakdowns in AuditStats.
type AuditActionCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// AuditStats summarizes a filtered window of the trail.
type AuditStats struct {
	Total      int64              `json:"total"`
	Succeeded  int64              `json:"succeeded"`
	Failed     int64              `json:"failed"`
	TopActions []AuditActionCount `json:"topActions"`
	TopActors  []AuditActionCount `json:"topActors"`
}
