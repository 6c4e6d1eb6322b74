package handlers

import (
	"net/http"
	"strconv"

	"github.com/tfdash/tfdash-backend/pkg/api/dtos"
	"github.com/tfdash/tfdash-backend/pkg/services"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	AuditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{AuditService: auditService}
}

// Query godoc
// @Summary  Query the audit trail
// @Tags     audit
// @Produce  json
// @Success  200 {object} dtos.AuditListResponse
// @Router   /audit-logs [get]
func (h *AuditHandler) Query(c *gin.Context) {
	var request dtos.AuditQueryRequest
	if err := c.ShouldBindQuery(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	query, err := request.ToQuery()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, total, err := h.AuditService.Query(query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos.AuditListResponse{Entries: entries, Total: total})
}

// Stats godoc
// @Summary  Aggregate counts over the audit trail
// @Tags     audit
// @Produce  json
// @Router   /audit-logs/stats [get]
func (h *AuditHandler) Stats(c *gin.Context) {
	var request dtos.AuditQueryRequest
	if err := c.ShouldBindQuery(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	query, err := request.ToQuery()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.AuditService.Stats(query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// Purge godoc
// @Summary  Delete audit entries older than a cutoff
// @Tags     audit
// @Produce  json
// @Param    olderThanDays query int true "age cutoff in days"
// @Success  200 {object} dtos.AuditPurgeResponse
// @Router   /audit-logs [delete]
func (h *AuditHandler) Purge(c *gin.Context) {
	olderThanDays, err := strconv.Atoi(c.Query("olderThanDays"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "olderThanDays must be an integer"})
		return
	}
	removed, err := h.AuditService.Purge(olderThanDays)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos.AuditPurgeResponse{Removed: removed})
}
