package schemas

import (
	"time"

	"github.com/tfdash/tfdash-backend/pkg/domain/entities"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Job struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	TemplateID      uuid.UUID          `gorm:"type:uuid;not null;column:template_id"`
	Template        Template           `gorm:"foreignKey:TemplateID"`
	Environment     string             `gorm:"column:environment;not null"`
	Variables       datatypes.JSON     `gorm:"type:jsonb;not null;column:variables"`
	// Nullable so reclaimed workspaces clear to NULL without tripping the
	// unique index ('' would collide after the second cleanup).
	WorkspacePath   *string            `gorm:"column:workspace_path;uniqueIndex"`
	LogPath         string             `gorm:"column:log_path"`
	Status          entities.JobStatus `gorm:"column:status;not null;index"`
	StatusReason    string             `gorm:"column:status_reason"`
	ExitCode        *int               `gorm:"column:exit_code"`
	ErrorOutput     string             `gorm:"column:error_output;type:text"`
	CancelRequested bool               `gorm:"column:cancel_requested;not null;default:false"`
	CreatedBy       string             `gorm:"column:created_by"`
	CreatedAt       time.Time          `gorm:"autoCreateTime;column:created_at"`
	UpdatedAt       time.Time          `gorm:"autoUpdateTime;column:updated_at"`
	FinishedAt      *time.Time         `gorm:"column:finished_at"`
}

func (Job) TableName() string {
	return "jobs"
}
