package repositories

import (
	"strings"
	"time"

	"github.com/tfdash/tfdash-backend/pkg/domain/entities"
	"github.com/tfdash/tfdash-backend/pkg/infrastructure/postgres/schemas"

	"gorm.io/gorm"
)

const defaultAuditPageSize = 50

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralizes LIKE metacharacters so a filter value matches
// literally.
func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

type AuditLogPostgresRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogPostgresRepository {
	return &AuditLogPostgresRepository{db: db}
}

func (r *AuditLogPostgresRepository) Insert(entry *entities.AuditLogEntry) error {
	return r.db.Create(auditToSchema(entry)).Error
}

func (r *AuditLogPostgresRepository) Query(query entities.AuditQuery) ([]*entities.AuditLogEntry, int64, error) {
	scope := r.filtered(query)

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = defaultAuditPageSize
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}

	var rows []schemas.AuditLog
	err := scope.
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]*entities.AuditLogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, auditToEntity(&rows[i]))
	}
	return entries, total, nil
}

func (r *AuditLogPostgresRepository) Stats(query entities.AuditQuery) (*entities.AuditStats, error) {
	stats := &entities.AuditStats{}

	if err := r.filtered(query).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.filtered(query).Where("success = ?", true).Count(&stats.Succeeded).Error; err != nil {
		return nil, err
	}
	stats.Failed = stats.Total - stats.Succeeded

	err := r.filtered(query).
		Select("action AS key, COUNT(*) AS count").
		Group("action").
		Order("count DESC").
		Limit(10).
		Scan(&stats.TopActions).Error
	if err != nil {
		return nil, err
	}

	err = r.filtered(query).
		Where("user_id IS NOT NULL").
		Select("user_id AS key, COUNT(*) AS count").
		Group("user_id").
		Order("count DESC").
		Limit(10).
		Scan(&stats.TopActors).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// Purge deletes entries older than the cutoff and returns the number of
// rows removed. A second call with the same cutoff removes nothing.
func (r *AuditLogPostgresRepository) Purge(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&schemas.AuditLog{})
	return result.RowsAffected, result.Error
}

func (r *AuditLogPostgresRepository) filtered(query entities.AuditQuery) *gorm.DB {
	scope := r.db.Model(&schemas.AuditLog{})
	if query.UserID != "" {
		scope = scope.Where("user_id = ?", query.UserID)
	}
	if query.Action != "" {
		// Case-sensitive containment on the action tag. The value is
		// escaped so % and _ in user input match literally.
		scope = scope.Where(`action LIKE ? ESCAPE '\'`, "%"+escapeLike(query.Action)+"%")
	}
	if query.ResourceType != "" {
		scope = scope.Where("resource_type = ?", query.ResourceType)
	}
	if query.ResourceID != "" {
		scope = scope.Where("resource_id = ?", query.ResourceID)
	}
	if query.From != nil {
		scope = scope.Where("created_at >= ?", *query.From)
	}
	if query.To != nil {
		scope = scope.Where("created_at <= ?", *query.To)
	}
	if query.Success != nil {
		scope = scope.Where("success = ?", *query.Success)
	}
	return scope
}

func auditToSchema(entry *entities.AuditLogEntry) *schemas.AuditLog {
	return &schemas.AuditLog{
		ID:           entry.ID,
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		Success:      entry.Success,
		ErrorMessage: entry.ErrorMessage,
	}
}

func auditToEntity(row *schemas.AuditLog) *entities.AuditLogEntry {
	return &entities.AuditLogEntry{
		ID:           row.ID,
		UserID:       row.UserID,
		Action:       row.Action,
		ResourceType: row.ResourceType,
		ResourceID:   row.ResourceID,
		Details:      row.Details,
		IPAddress:    row.IPAddress,
		UserAgent:    row.UserAgent,
		Success:      row.Success,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    row.CreatedAt,
	}
}
