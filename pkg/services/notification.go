package services

import (
	"encoding/json"
	"time"

	"github.com/tfdash/tfdash-backend/internal/apperrors"
	"github.com/tfdash/tfdash-backend/internal/logger"
	"github.com/tfdash/tfdash-backend/pkg/domain/entities"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationRepository interface {
	CreateNotification(notification *entities.NotificationEntity) error
	GetActiveNotifications() ([]*entities.NotificationEntity, error)
	GetNotificationByID(id string) (*entities.NotificationEntity, error)
	MarkRead(id string) error
	MarkReadIfNotPersistent(id string) error
}

// Broadcaster fans a payload out to every connected UI session.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// NotificationService persists notifications and pushes them to connected
// sessions. Non-persistent notifications that nobody acknowledges within
// the auto-hide delay are marked read automatically.
type NotificationService struct {
	repo          NotificationRepository
	hub           Broadcaster
	autoHide      bool
	autoHideDelay time.Duration
}

func NewNotificationService(
	repo NotificationRepository,
	hub Broadcaster,
	autoHide bool,
	autoHideDelay time.Duration,
) *NotificationService {
	return &NotificationService{
		repo:          repo,
		hub:           hub,
		autoHide:      autoHide,
		autoHideDelay: autoHideDelay,
	}
}

// Publish stores the notification and broadcasts it. Like the audit trail,
// notification delivery never fails the operation that emitted the event.
func (s *NotificationService) Publish(notification *entities.NotificationEntity) {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.CreateNotification(notification); err != nil {
		logger.Error("failed to persist notification",
			zap.String("title", notification.Title),
			zap.Error(err))
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		logger.Error("failed to encode notification", zap.Error(err))
		return
	}
	s.hub.Broadcast(payload)

	if s.autoHide && !notification.Persistent {
		id := notification.ID.String()
		time.AfterFunc(s.autoHideDelay, func() {
			if err := s.repo.MarkReadIfNotPersistent(id); err != nil {
				logger.Warn("auto-hide failed", zap.String("id", id), zap.Error(err))
			}
		})
	}
}

func (s *NotificationService) Active() ([]*entities.NotificationEntity, error) {
	return s.repo.GetActiveNotifications()
}

// MarkRead is the explicit dismissal path, valid for both persistent and
// regular notifications.
func (s *NotificationService) MarkRead(id string) error {
	notification, err := s.repo.GetNotificationByID(id)
	if err != nil {
		return err
	}
	if notification == nil {
		return apperrors.NotFound("notification %s not found", id)
	}
	return s.repo.MarkRead(id)
}
