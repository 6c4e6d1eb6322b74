package schemas

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog rows are insert-only. No update path exists anywhere in the
// codebase; purge-by-age is the only delete.
type AuditLog struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	UserID       *string        `gorm:"column:user_id;index"`
	Action       string         `gorm:"column:action;not null;index"`
	ResourceType string         `gorm:"column:resource_type;index"`
	ResourceID   string         `gorm:"column:resource_id;index"`
	Details      datatypes.JSON `gorm:"type:jsonb;column:details"`
	IPAddress    string         `gorm:"column:ip_address"`
	UserAgent    string         `gorm:"column:user_agent"`
	Success      bool           `gorm:"column:success;not null"`
	ErrorMessage *string        `gorm:"column:error_message"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;column:created_at;index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
