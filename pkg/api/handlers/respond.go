package handlers

import (
	"net/http"

	"github.com/tfdash/tfdash-backend/internal/apperrors"

	"github.com/gin-gonic/gin"
)

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
	case apperrors.KindConflict:
		status = http.StatusConflict
	case apperrors.KindPrecondition:
		status = http.StatusPreconditionFailed
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
