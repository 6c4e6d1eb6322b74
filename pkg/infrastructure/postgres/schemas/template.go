package schemas

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Template struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	Name        string         `gorm:"column:name;not null;uniqueIndex:idx_templates_name_version"`
	Version     string         `gorm:"column:version;not null;uniqueIndex:idx_templates_name_version"`
	Description string         `gorm:"column:description"`
	Source      string         `gorm:"column:source;type:text;not null"`
	Variables   datatypes.JSON `gorm:"type:jsonb;not null;column:variables"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;column:created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime;column:updated_at"`
}

func (Template) TableName() string {
	return "templates"
}
