package controllers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// socketWriter serializes JSON writes to one WebSocket connection.
type socketWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *socketWriter) writeJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// ChatSocket handles GET /ws/chat. Each received frame is one chat turn and
// triggers exactly one upstream call; the reply (or translated error) is
// written back as a single JSON frame. There is no streaming and no state
// shared between frames beyond the connection itself.
func (h *Handler) ChatSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	writer := &socketWriter{conn: conn}

	for {
		var body map[string]json.RawMessage
		if err := conn.ReadJSON(&body); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logf("websocket read error: %v", err)
			}
			return
		}

		reply, turnErr := h.runTurn(c.Request.Context(), body)
		if turnErr != nil {
			if err := writer.writeJSON(turnErr); err != nil {
				h.logf("websocket write error: %v", err)
				return
			}
			continue
		}
		if err := writer.writeJSON(reply); err != nil {
			h.logf("websocket write error: %v", err)
			return
		}
	}
}
