// Package realtime fans journal events out to connected dashboard clients
// over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradevault/platform/internal/app/metrics"
	"github.com/tradevault/platform/internal/app/system"
	"github.com/tradevault/platform/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
	sendBuffer     = 32
)

var _ system.Service = (*Hub)(nil)

// Event is the wire format pushed to clients.
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
	SentAt  time.Time   `json:"sent_at"`
}

// Hub tracks connected clients per account. Events are delivered best
// effort; a client that cannot keep up is dropped.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
}

// client's send channel is never closed; shutdown is signalled through done
// so concurrent publishers can never hit a send-on-closed-channel panic.
type client struct {
	conn      *websocket.Conn
	accountID string
	send      chan []byte
	done      chan struct{}
	once      sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates a hub. checkOrigin may be nil to accept all origins.
func NewHub(checkOrigin func(r *http.Request) bool, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("realtime")
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 10,
			WriteBufferSize: 1 << 10,
			CheckOrigin:     checkOrigin,
		},
		log:     log,
		clients: make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) Name() string { return "realtime-hub" }

// Start is a no-op; clients attach via ServeWS.
func (h *Hub) Start(ctx context.Context) error {
	h.log.Info("realtime hub started")
	return nil
}

// Stop disconnects all clients.
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.close()
	}
	h.log.WithField("clients", len(all)).Info("realtime hub stopped")
	return nil
}

// ServeWS upgrades the request and attaches the connection to the account's
// client set.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, accountID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		conn:      conn,
		accountID: accountID,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	set, ok := h.clients[accountID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[accountID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	metrics.RealtimeClientConnected(1)
	h.log.WithField("account_id", accountID).Debug("realtime client connected")

	go c.writePump()
	go h.readPump(c)
}

// Publish sends an event to every client of one account.
func (h *Hub) Publish(accountID, event string, payload interface{}) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Warn("event encoding failed")
		return
	}

	h.mu.RLock()
	targets := h.snapshot(h.clients[accountID])
	h.mu.RUnlock()

	h.deliver(targets, data, event)
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Warn("event encoding failed")
		return
	}

	h.mu.RLock()
	var targets []*client
	for _, set := range h.clients {
		targets = append(targets, h.snapshot(set)...)
	}
	h.mu.RUnlock()

	h.deliver(targets, data, event)
}

// ClientCount reports the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) snapshot(set map[*client]struct{}) []*client {
	if len(set) == 0 {
		return nil
	}
	out := make([]*client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (h *Hub) deliver(targets []*client, data []byte, event string) {
	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// Slow consumer; drop it rather than stall publishers.
			h.log.WithField("account_id", c.accountID).
				WithField("event", event).
				Warn("dropping slow realtime client")
			h.detach(c)
		}
	}
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	set, ok := h.clients[c.accountID]
	if ok {
		if _, attached := set[c]; attached {
			delete(set, c)
			if len(set) == 0 {
				delete(h.clients, c.accountID)
			}
			h.mu.Unlock()
			c.close()
			metrics.RealtimeClientConnected(-1)
			return
		}
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// Clients only listen; reads exist to notice disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encodeEvent(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(Event{
		Event:   event,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	})
}
