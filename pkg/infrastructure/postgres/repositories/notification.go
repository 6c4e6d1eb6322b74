package repositories

import (
	"encoding/json"
	"errors"

	"github.com/tfdash/tfdash-backend/pkg/domain/entities"
	"github.com/tfdash/tfdash-backend/pkg/infrastructure/postgres/schemas"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationPostgresRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationPostgresRepository {
	return &NotificationPostgresRepository{db: db}
}

func (r *NotificationPostgresRepository) CreateNotification(notification *entities.NotificationEntity) error {
	row, err := notificationToSchema(notification)
	if err != nil {
		return err
	}
	return r.db.Create(row).Error
}

// GetActiveNotifications returns unread notifications, newest first. Read
// notifications drop out of the active display.
func (r *NotificationPostgresRepository) GetActiveNotifications() ([]*entities.NotificationEntity, error) {
	var rows []schemas.Notification
	err := r.db.Where("read = ?", false).Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]*entities.NotificationEntity, 0, len(rows))
	for i := range rows {
		notification, err := notificationToEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, notification)
	}
	return result, nil
}

func (r *NotificationPostgresRepository) GetNotificationByID(id string) (*entities.NotificationEntity, error) {
	var row schemas.Notification
	err := r.db.Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return notificationToEntity(&row)
}

func (r *NotificationPostgresRepository) MarkRead(id string) error {
	return r.db.Model(&schemas.Notification{}).
		Where("id = ?", id).
		Update("read", true).Error
}

// MarkReadIfNotPersistent is the auto-hide path; persistent notifications
// require an explicit dismissal and are left untouched.
func (r *NotificationPostgresRepository) MarkReadIfNotPersistent(id string) error {
	return r.db.Model(&schemas.Notification{}).
		Where("id = ? AND persistent = ?", id, false).
		Update("read", true).Error
}

func notificationToSchema(notification *entities.NotificationEntity) (*schemas.Notification, error) {
	var actions datatypes.JSON
	if len(notification.Actions) > 0 {
		data, err := json.Marshal(notification.Actions)
		if err != nil {
			return nil, err
		}
		actions = datatypes.JSON(data)
	}
	return &schemas.Notification{
		ID:         notification.ID,
		Type:       notification.Type,
		Title:      notification.Title,
		Message:    notification.Message,
		Actions:    actions,
		Persistent: notification.Persistent,
		Read:       notification.Read,
		JobID:      notification.JobID,
	}, nil
}

func notificationToEntity(row *schemas.Notification) (*entities.NotificationEntity, error) {
	var actions []entities.NotificationAction
	if len(row.Actions) > 0 {
		if err := json.Unmarshal(row.Actions, &actions); err != nil {
			return nil, err
		}
	}
	return &entities.NotificationEntity{
		ID:         row.ID,
		Type:       row.Type,
		Title:      row.Title,
		Message:    row.Message,
		Actions:    actions,
		Persistent: row.Persistent,
		Read:       row.Read,
		JobID:      row.JobID,
		CreatedAt:  row.CreatedAt,
	}, nil
}
