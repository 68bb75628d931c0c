package bridge

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/routing"
)

const (
	writeWait = 2 * time.Second
	// sendBuffer is how many pushes may queue for one client before it is
	// dropped as too slow.
	sendBuffer = 64
)

// client is one WebSocket subscriber. Only its writer goroutine writes to
// conn; everyone else hands it encoded snapshots through send.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writer() {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			zap.L().Debug("websocket write failed", zap.Error(err))
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// hub fans route snapshots out to WebSocket clients. Broadcasting never
// waits on a client: a client whose queue is full is disconnected.
type hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the renderer is served from its own origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// serve upgrades the request, queues every current snapshot, then keeps the
// client subscribed until it disconnects. Snapshots carry a per-node
// version, so a client keeps the highest one it has seen for each node.
func (h *hub) serve(model *routing.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		h.mu.Lock()
		snaps := model.Snapshots()
		c := &client{conn: conn, send: make(chan []byte, len(snaps)+sendBuffer)}
		for _, snap := range snaps {
			if data, err := json.Marshal(snap); err == nil {
				c.send <- data
			}
		}
		h.clients[c] = struct{}{}
		h.mu.Unlock()

		go c.writer()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		h.remove(c)
	}
}

func (h *hub) broadcast(snap routing.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		zap.L().Error("encode snapshot", zap.Int("node", snap.Node), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			zap.L().Info("dropping slow websocket client", zap.String("raddr", c.conn.RemoteAddr().String()))
			h.dropLocked(c)
			_ = c.conn.Close()
		}
	}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// dropLocked unsubscribes c and lets its writer finish. Safe to call twice.
func (h *hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.dropLocked(c)
	}
}
