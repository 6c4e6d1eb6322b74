package notifier

import (
	"sync"

	"github.com/tfdash/tfdash-backend/internal/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSClient adapts a websocket connection to the Subscriber interface.
type WSClient struct {
	conn *websocket.Conn

	closeOnce sync.Once
}

func NewWSClient(conn *websocket.Conn) *WSClient {
	return &WSClient{conn: conn}
}

func (c *WSClient) Send(payload []byte) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logger.Warn("websocket send failed", zap.Error(err))
		return err
	}
	return nil
}

func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}
