package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dashboards are served from other origins
	},
}

// Hub is an http.Handler upgrading requests to WebSocket connections and a
// Publisher broadcasting every sample to the connected clients.
type Hub struct {
	mx      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade error", "error", err)
		return
	}
	h.mx.Lock()
	h.clients[conn] = struct{}{}
	h.mx.Unlock()
	slog.Debug("websocket client connected", "remote", conn.RemoteAddr())

	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket error", "error", err)
			}
			break
		}
	}
	h.drop(conn)
}

func (h *Hub) Publish(ctx context.Context, s Sample) error {
	h.mx.Lock()
	defer h.mx.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(s); err != nil {
			slog.DebugContext(ctx, "dropping websocket client", "remote", conn.RemoteAddr(), "error", err)
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mx.Lock()
	defer h.mx.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mx.Lock()
	defer h.mx.Unlock()
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeTimeout))
		_ = conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mx.Lock()
	defer h.mx.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		_ = conn.Close()
	}
}
