package services

import (
	"time"

	"github.com/tfdash/tfdash-backend/internal/apperrors"
	"github.com/tfdash/tfdash-backend/internal/logger"
	"github.com/tfdash/tfdash-backend/pkg/domain/entities"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuditLogRepository interface {
	Insert(entry *entities.AuditLogEntry) error
	Query(query entities.AuditQuery) ([]*entities.AuditLogEntry, int64, error)
	Stats(query entities.AuditQuery) (*entities.AuditStats, error)
	Purge(cutoff time.Time) (int64, error)
}

// AuditService is the append-only trail of privileged actions.
type AuditService struct {
	repo AuditLogRepository
}

func NewAuditService(repo AuditLogRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record appends an entry to the trail. It never fails the caller: a
// storage error must not block or abort the operation being audited, so
// failures only go to the log.
func (s *AuditService) Record(entry *entities.AuditLogEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if err := s.repo.Insert(entry); err != nil {
		logger.Error("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.String("resourceId", entry.ResourceID),
			zap.Error(err))
	}
}

func (s *AuditService) Query(query entities.AuditQuery) ([]*entities.AuditLogEntry, int64, error) {
	return s.repo.Query(query)
}

func (s *AuditService) Stats(query entities.AuditQuery) (*entities.AuditStats, error) {
	return s.repo.Stats(query)
}

// Purge deletes entries older than the cutoff and reports how many rows
// went away. Repeating the same purge removes nothing further.
func (s *AuditService) Purge(olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		return 0, apperrors.Validation("olderThanDays must be positive")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	removed, err := s.repo.Purge(cutoff)
	if err != nil {
		return 0, err
	}
	logger.Info("purged audit entries",
		zap.Int64("removed", removed),
		zap.Int("olderThanDays", olderThanDays))
	return removed, nil
}
