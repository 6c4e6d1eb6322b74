package services

import (
	"sync"
	"testing"
	"time"

	"github.com/tfdash/tfdash-backend/internal/apperrors"
	"github.com/tfdash/tfdash-backend/pkg/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]*entities.NotificationEntity
}

func newMemoryNotificationRepo() *memoryNotificationRepo {
	return &memoryNotificationRepo{notifications: make(map[string]*entities.NotificationEntity)}
}

func (r *memoryNotificationRepo) CreateNotification(notification *entities.NotificationEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *notification
	r.notifications[notification.ID.String()] = &copied
	return nil
}

func (r *memoryNotificationRepo) GetActiveNotifications() ([]*entities.NotificationEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*entities.NotificationEntity
	for _, notification := range r.notifications {
		if !notification.Read {
			copied := *notification
			active = append(active, &copied)
		}
	}
	return active, nil
}

func (r *memoryNotificationRepo) GetNotificationByID(id string) (*entities.NotificationEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	notification, ok := r.notifications[id]
	if !ok {
		return nil, nil
	}
	copied := *notification
	return &copied, nil
}

func (r *memoryNotificationRepo) MarkRead(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if notification, ok := r.notifications[id]; ok {
		notification.Read = true
	}
	return nil
}

func (r *memoryNotificationRepo) MarkReadIfNotPersistent(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if notification, ok := r.notifications[id]; ok && !notification.Persistent {
		notification.Read = true
	}
	return nil
}

func (r *memoryNotificationRepo) isRead(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	notification, ok := r.notifications[id]
	return ok && notification.Read
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *recordingBroadcaster) Broadcast(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.payloads)
}

func TestPublishPersistsAndBroadcasts(t *testing.T) {
	repo := newMemoryNotificationRepo()
	hub := &recordingBroadcaster{}
	service := NewNotificationService(repo, hub, false, 0)

	notification := &entities.NotificationEntity{
		Type:    entities.NotificationTypeInfo,
		Title:   "Plan finished",
		Message: "Plan for ec2-instance in staging is ready to apply",
	}
	service.Publish(notification)

	assert.Equal(t, 1, hub.count())
	active, err := service.Active()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Plan finished", active[0].Title)
}

func TestAutoHideMarksUnacknowledgedRead(t *testing.T) {
	repo := newMemoryNotificationRepo()
	service := NewNotificationService(repo, &recordingBroadcaster{}, true, 10*time.Millisecond)

	notification := &entities.NotificationEntity{Type: entities.NotificationTypeInfo, Title: "Apply started"}
	service.Publish(notification)

	assert.Eventually(t, func() bool {
		return repo.isRead(notification.ID.String())
	}, time.Second, 5*time.Millisecond)
}

func TestAutoHideSkipsPersistentNotifications(t *testing.T) {
	repo := newMemoryNotificationRepo()
	service := NewNotificationService(repo, &recordingBroadcaster{}, true, 5*time.Millisecond)

	notification := &entities.NotificationEntity{
		Type:       entities.NotificationTypeError,
		Title:      "Deployment failed",
		Persistent: true,
	}
	service.Publish(notification)

	time.Sleep(30 * time.Millisecond)
	assert.False(t, repo.isRead(notification.ID.String()),
		"persistent notifications require explicit dismissal")
}

func TestMarkReadDismissesExplicitly(t *testing.T) {
	repo := newMemoryNotificationRepo()
	service := NewNotificationService(repo, &recordingBroadcaster{}, false, 0)

	notification := &entities.NotificationEntity{Type: entities.NotificationTypeError, Persistent: true}
	service.Publish(notification)

	require.NoError(t, service.MarkRead(notification.ID.String()))

	active, err := service.Active()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestMarkReadUnknownNotificationIsNotFound(t *testing.T) {
	service := NewNotificationService(newMemoryNotificationRepo(), &recordingBroadcaster{}, false, 0)

	err := service.MarkRead("1f2a0d3c-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestBrokenStoreDoesNotFailPublish(t *testing.T) {
	hub := &recordingBroadcaster{}
	service := NewNotificationService(failingNotificationRepo{}, hub, false, 0)

	service.Publish(&entities.NotificationEntity{Type: entities.NotificationTypeInfo, Title: "Plan started"})

	// The broadcast still goes out even when persistence is down.
	assert.Equal(t, 1, hub.count())
}

type failingNotificationRepo struct{}

func (failingNotificationRepo) CreateNotification(*entities.NotificationEntity) error {
	return assert.AnError
}

func (failingNotificationRepo) GetActiveNotifications() ([]*entities.NotificationEntity, error) {
	return nil, assert.AnError
}

func (failingNotificationRepo) GetNotificationByID(string) (*entities.NotificationEntity, error) {
	return nil, assert.AnError
}

func (failingNotificationRepo) MarkRead(string) error                { return assert.AnError }
func (failingNotificationRepo) MarkReadIfNotPersistent(string) error { return assert.AnError }
