package handlers

import (
	"net/http"

	"github.com/tfdash/tfdash-backend/internal/logger"
	"github.com/tfdash/tfdash-backend/pkg/notifier"
	"github.com/tfdash/tfdash-backend/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard UI is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type NotificationHandler struct {
	NotificationService *services.NotificationService
	Hub                 *notifier.Hub
}

func NewNotificationHandler(notificationService *services.NotificationService, hub *notifier.Hub) *NotificationHandler {
	return &NotificationHandler{
		NotificationService: notificationService,
		Hub:                 hub,
	}
}

// GetActive godoc
// @Summary  List unread notifications
// @Tags     notifications
// @Produce  json
// @Router   /notifications [get]
func (h *NotificationHandler) GetActive(c *gin.Context) {
	notifications, err := h.NotificationService.Active()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkRead godoc
// @Summary  Dismiss a notification
// @Tags     notifications
// @Produce  json
// @Param    id path string true "notification id"
// @Router   /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	if err := h.NotificationService.MarkRead(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

// Stream upgrades the connection and subscribes the session to the live
// notification feed. Events arrive in emission order for this session.
func (h *NotificationHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := notifier.NewWSClient(conn)
	h.Hub.Register(client)

	// Drain reads so close frames and pings are processed; unregister
	// once the peer goes away.
	go func() {
		defer h.Hub.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
