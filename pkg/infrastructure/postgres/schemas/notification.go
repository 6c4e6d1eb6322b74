package schemas

import (
	"time"

	"github.com/tfdash/tfdash-backend/pkg/domain/entities"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Notification struct {
	ID         uuid.UUID                 `gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	Type       entities.NotificationType `gorm:"column:type;not null"`
	Title      string                    `gorm:"column:title;not null"`
	Message    string                    `gorm:"column:message;type:text"`
	Actions    datatypes.JSON            `gorm:"type:jsonb;column:actions"`
	Persistent bool                      `gorm:"column:persistent;not null;default:false"`
	Read       bool                      `gorm:"column:read;not null;default:false;index"`
	JobID      *uuid.UUID                `gorm:"type:uuid;column:job_id;index"`
	CreatedAt  time.Time                 `gorm:"autoCreateTime;column:created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
