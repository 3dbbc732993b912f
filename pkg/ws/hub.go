package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"langgraph-chat/app/conversation/models"
	"langgraph-chat/app/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Projection clients only send control frames
	maxMessageSize = 4 * 1024

	sendBuffer = 256
)

// Frame types
const (
	FrameSnapshot = "snapshot"
	FrameEvent    = "event"
	FramePong     = "pong"
)

// Frame is one JSON message sent to projection subscribers
type Frame struct {
	Type  string            `json:"type"`
	Seq   uint64            `json:"seq"`
	Event *models.Event     `json:"event,omitempty"`
	State *models.ChatState `json:"state,omitempty"`
}

type controlMessage struct {
	Type string `json:"type"`
}

type directMessage struct {
	client *Client
	data   []byte
}

// SnapshotFunc returns the state sent to a subscriber when it connects or asks for a resync
type SnapshotFunc func() models.ChatState

// Client is one websocket subscriber
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub
}

// Hub fans chat events out to websocket subscribers. It never mutates chat state.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	direct     chan directMessage
	snapshot   SnapshotFunc
	upgrader   websocket.Upgrader
	log        *logger.Logger

	mu  sync.Mutex
	seq uint64

	done chan struct{}
}

// NewHub creates a hub. allowedOrigins of nil or containing "*" accepts any origin.
func NewHub(snapshot SnapshotFunc, allowedOrigins []string, log *logger.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan directMessage),
		snapshot:   snapshot,
		log:        log.WithComponent("projection"),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      originChecker(allowedOrigins),
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Run dispatches frames until ctx is done, then disconnects every client
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			return nil

		case client := <-h.register:
			if snap := h.snapshotFrame(); snap != nil {
				client.Send <- snap
			}
			h.clients[client] = true
			h.log.Debug("Projection client registered", "client", client.ID)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug("Projection client unregistered", "client", client.ID)
			}

		case d := <-h.direct:
			if h.clients[d.client] {
				select {
				case d.client.Send <- d.data:
				default:
				}
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
					h.log.Warn("Projection client removed due to blocked channel", "client", client.ID)
				}
			}
		}
	}
}

// Publish queues ev for every subscriber. It never blocks the caller once the hub has stopped.
func (h *Hub) Publish(ev models.Event) {
	h.mu.Lock()
	h.seq++
	frame := Frame{Type: FrameEvent, Seq: h.seq, Event: &ev}
	h.mu.Unlock()

	data, err := json.Marshal(frame)
	if err != nil {
		h.log.LogError(err, "Failed to encode projection frame")
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// snapshotFrame captures the state together with the last event sequence it
// includes. Event frames with a Seq at or below it are already reflected.
func (h *Hub) snapshotFrame() []byte {
	if h.snapshot == nil {
		return nil
	}
	h.mu.Lock()
	state := h.snapshot()
	seq := h.seq
	h.mu.Unlock()
	data, err := json.Marshal(Frame{Type: FrameSnapshot, Seq: seq, State: &state})
	if err != nil {
		h.log.LogError(err, "Failed to encode snapshot frame")
		return nil
	}
	return data
}

// Routes registers the projection endpoint
func (h *Hub) Routes(r gin.IRoutes) {
	r.GET("/ws/projection", h.ServeWs)
}

// ServeWs upgrades the request and attaches a subscriber
func (h *Hub) ServeWs(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Error upgrading connection", "error", err)
		return
	}

	clientID := c.Query("clientId")
	if clientID == "" {
		clientID = uuid.New().String()
	}
	client := &Client{
		ID:   clientID,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		Hub:  h,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// ReadPump consumes control frames until the peer goes away
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Debug("Projection client read error", "client", c.ID, "error", err)
			}
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		var reply []byte
		switch msg.Type {
		case "ping":
			reply, _ = json.Marshal(Frame{Type: FramePong})
		case "resync":
			reply = c.Hub.snapshotFrame()
		}
		if reply == nil {
			continue
		}
		select {
		case c.Hub.direct <- directMessage{client: c, data: reply}:
		case <-c.Hub.done:
			return
		}
	}
}

// WritePump writes queued frames and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
