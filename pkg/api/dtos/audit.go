package dtos

import (
	"time"

	"github.com/tfdash/tfdash-backend/pkg/domain/entities"
)

// AuditQueryRequest maps query parameters onto the audit filter set.
// Filters combine with AND; the action filter is a case-sensitive
// substring.
type AuditQueryRequest struct {
	UserID       string `form:"userId"`
	Action       string `form:"action"`
	ResourceType string `form:"resourceType"`
	ResourceID   string `form:"resourceId"`
	From         string `form:"from"`
	To           string `form:"to"`
	Success      *bool  `form:"success"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}

func (request *AuditQueryRequest) ToQuery() (entities.AuditQuery, error) {
	query := entities.AuditQuery{
		UserID:       request.UserID,
		Action:       request.Action,
		ResourceType: request.ResourceType,
		ResourceID:   request.ResourceID,
		Success:      request.Success,
		Page:         request.Page,
		PageSize:     request.PageSize,
	}
	if request.From != "" {
		from, err := time.Parse(time.RFC3339, request.From)
		if err != nil {
			return query, err
		}
		query.From = &from
	}
	if request.To != "" {
		to, err := time.Parse(time.RFC3339, request.To)
		if err != nil {
			return query, err
		}
		query.To = &to
	}
	return query, nil
}

type AuditListResponse struct {
	Entries []*entities.AuditLogEntry `json:"entries"`
	Total   int64                     `json:"total"`
}

type AuditPurgeResponse struct {
	Removed int64 `json:"removed"`
}
