package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/andrescamacho/taskstream-go/internal/adapters/broadcast"
)

// WebSocketHandler upgrades connections and wires them into the hub.
type WebSocketHandler struct {
	hub      *broadcast.Hub
	buffer   int
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the handler. Buffer bounds each session's send
// queue.
func NewWebSocketHandler(hub *broadcast.Hub, buffer int, logger *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		buffer: buffer,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe upgrades the connection and streams the task's events until the
// client disconnects. The read loop only watches for the close.
func (h *WebSocketHandler) Subscribe(c *gin.Context) {
	taskID := c.Param("id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	session := broadcast.NewWebSocketSession(conn, h.buffer)
	h.hub.Subscribe(taskID, session)

	h.logger.WithField("task_id", taskID).Debug("WebSocket session subscribed")

	defer func() {
		h.hub.Unsubscribe(taskID, session)
		session.Close()
		h.logger.WithField("task_id", taskID).Debug("WebSocket session closed")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
