package broadcast

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fleet-tracking/internal/logging"
)

// Client to server events.
const (
	EventJoinRoom  = "join-room"
	EventLeaveRoom = "leave-room"
	// EventConnected is sent once after registration and carries the connection id.
	EventConnected = "connected"
)

// WSConfig tunes the websocket transport.
type WSConfig struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
}

func (c WSConfig) withDefaults() WSConfig {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
	return c
}

// ServeWS upgrades observer connections and registers them with hub for
// the lifetime of the connection.
func ServeWS(hub *Hub, cfg WSConfig, logger logging.Logger) http.Handler {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     cfg.CheckOrigin,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied with an HTTP error.
			logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
			return
		}

		c := &wsClient{
			id:     uuid.NewString(),
			conn:   conn,
			send:   make(chan []byte, cfg.SendBuffer),
			done:   make(chan struct{}),
			hub:    hub,
			cfg:    cfg,
			logger: logger,
		}

		hub.Subscribe(c)
		if hello, err := Encode(Global, EventConnected, map[string]string{"id": c.id}); err == nil {
			c.Send(hello)
		}

		go c.writePump()
		go c.readPump()
	})
}

type wsClient struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
	done   chan struct{}

	hub    *Hub
	cfg    WSConfig
	logger logging.Logger
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// shutdown unregisters the client and stops the write pump. Safe to call
// from both pumps.
func (c *wsClient) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.hub.Unsubscribe(c.id)
}

type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *wsClient) readPump() {
	defer func() {
		c.shutdown()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", "conn_id", c.id, "error", err)
			}
			return
		}

		switch msg.Event {
		case EventJoinRoom, EventLeaveRoom:
			workerID, ok := decodeWorkerID(msg.Data)
			if !ok {
				c.logger.Debug("ignoring room message without worker id", "conn_id", c.id, "event", msg.Event)
				continue
			}
			room := WorkerRoom(workerID)
			if msg.Event == EventJoinRoom {
				if err := c.hub.Join(c.id, room); err != nil {
					return
				}
			} else {
				c.hub.Leave(c.id, room)
			}
		default:
			c.logger.Debug("ignoring unknown client event", "conn_id", c.id, "event", msg.Event)
		}
	}
}

// decodeWorkerID accepts "42" and 42.
func decodeWorkerID(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return n.String(), true
		}
	}
	return "", false
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
