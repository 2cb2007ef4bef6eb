package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message types sent to WebSocket clients.
const (
	MessageNowPlaying = "now_playing"
	MessageProgress   = "download"
	MessageStatus     = "status"
)

// Message is one update pushed to WebSocket clients.
type Message struct {
	Type       string           `json:"type"`
	NowPlaying []NowPlayingItem `json:"now_playing,omitempty"`
	Progress   *ProgressUpdate  `json:"progress,omitempty"`
	Message    string           `json:"message,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// ProgressUpdate describes the state of one download.
type ProgressUpdate struct {
	MediaID  string  `json:"media_id"`
	Progress float64 `json:"progress"` // 0-100
	Status   string  `json:"status"`   // downloading, retrying, completed, failed
	Message  string  `json:"message,omitempty"`
}

// wsClient represents a connected WebSocket client.
type wsClient struct {
	conn   *websocket.Conn
	send   chan Message
	hub    *hub
	logger *slog.Logger
}

// hub tracks connected clients. send channels are only closed by unregister,
// under the same lock broadcast holds, so a send never races a close.
type hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	last    *Message
	logger  *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{clients: make(map[*wsClient]struct{}), logger: logger}
}

func (h *hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- *h.last
	}
}

func (h *hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast queues msg for every client. Slow clients drop messages.
// Now-playing snapshots are kept so new clients get the latest one.
func (h *hub) broadcast(msg Message) {
	msg.Timestamp = time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.Type == MessageNowPlaying {
		h.last = &msg
	}

	h.logger.Debug("Broadcasting update",
		"type", msg.Type,
		"client_count", len(h.clients))

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			c.logger.Warn("Dropping update - client channel full", "type", msg.Type)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// handleWebSocket upgrades the connection and streams updates until the client leaves.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	c := &wsClient{
		conn:   conn,
		send:   make(chan Message, 64),
		hub:    s.hub,
		logger: s.logger,
	}
	s.logger.Info("WebSocket client connected", "remote_addr", r.RemoteAddr)

	c.send <- Message{Type: MessageStatus, Message: "connected", Timestamp: time.Now()}
	s.hub.register(c)

	go c.writePump()
	go c.readPump()
}

// BroadcastProgress implements downloader.ProgressReporter.
func (s *Server) BroadcastProgress(mediaID, status, message string, progress float64) {
	s.hub.broadcast(Message{
		Type: MessageProgress,
		Progress: &ProgressUpdate{
			MediaID:  mediaID,
			Progress: progress,
			Status:   status,
			Message:  message,
		},
	})
}

// writePump sends queued messages and keepalive pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.Debug("WebSocket write pump stopped")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("WebSocket write error", "error", err)
				c.hub.unregister(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("WebSocket ping error", "error", err)
				c.hub.unregister(c)
				return
			}
		}
	}
}

// readPump drains client frames to process pongs and detect disconnects.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		c.logger.Debug("WebSocket read pump stopped")
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", "error", err)
			}
			return
		}
	}
}
