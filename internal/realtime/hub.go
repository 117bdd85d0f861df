// Package realtime pushes ingestion events to connected dashboards over websockets.
// Clients are grouped into one room per tenant and only receive their rooms' events.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/suteetoe/shopdash/internal/auth"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	defaultSendBuffer = 64
)

// Client events
const (
	EventJoinTenant  = "joinTenant"
	EventLeaveTenant = "leaveTenant"
	EventError       = "error"
)

// Envelope is one broadcast addressed to a tenant room
type Envelope struct {
	TenantID uint            `json:"tenant_id"`
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"data"`
}

// Backplane relays broadcasts between instances
type Backplane interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context) (<-chan Envelope, error)
}

// Options configures a Hub
type Options struct {
	AllowedOrigins []string
	SendBuffer     int
	Backplane      Backplane
}

// Hub tracks connected clients by tenant room
type Hub struct {
	mu      sync.RWMutex
	rooms   map[uint]map[*Client]struct{}
	clients map[*Client]struct{}
	closed  bool

	upgrader   websocket.Upgrader
	sendBuffer int
	backplane  Backplane
	log        *zap.Logger

	cancel context.CancelFunc
}

// Client is one websocket connection
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	identity auth.Identity
	send     chan []byte
	rooms    map[uint]struct{}
	once     sync.Once
}

type frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewHub creates a hub. Call Start to attach the backplane.
func NewHub(opts Options, log *zap.Logger) *Hub {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	h := &Hub{
		rooms:      make(map[uint]map[*Client]struct{}),
		clients:    make(map[*Client]struct{}),
		sendBuffer: opts.SendBuffer,
		backplane:  opts.Backplane,
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Start subscribes to the backplane, if any, and delivers relayed broadcasts locally
func (h *Hub) Start(ctx context.Context) error {
	if h.backplane == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	envelopes, err := h.backplane.Subscribe(ctx)
	if err != nil {
		cancel()
		return err
	}
	h.cancel = cancel
	go func() {
		for env := range envelopes {
			h.deliver(env)
		}
	}()
	h.log.Info("Realtime backplane subscribed")
	return nil
}

// ServeWS upgrades the request and enrolls the client in its own tenant room.
// It blocks until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, identity auth.Identity) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{
		id:       uuid.New().String(),
		hub:      h,
		conn:     conn,
		identity: identity,
		send:     make(chan []byte, h.sendBuffer),
		rooms:    make(map[uint]struct{}),
	}
	if !h.register(c) {
		conn.Close()
		return nil
	}

	go c.writePump()
	c.readPump()
	return nil
}

// Broadcast sends an event to every client in a tenant's room
func (h *Hub) Broadcast(tenantID uint, event string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error("Failed to encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	env := Envelope{TenantID: tenantID, Event: event, Data: raw}

	if h.backplane != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := h.backplane.Publish(ctx, env)
		if err == nil {
			return
		}
		h.log.Warn("Backplane publish failed, delivering locally", zap.Uint("tenant_id", tenantID), zap.Error(err))
	}
	h.deliver(env)
}

// RoomSize returns the number of clients in a tenant's room
func (h *Hub) RoomSize(tenantID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[tenantID])
}

// Close disconnects every client and stops the backplane subscription
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.log.Info("Realtime hub closed")
}

func (h *Hub) deliver(env Envelope) {
	msg, err := json.Marshal(frame{Event: env.Event, Data: env.Data})
	if err != nil {
		return
	}

	delivered, dropped := 0, 0
	h.mu.RLock()
	for c := range h.rooms[env.TenantID] {
		select {
		case c.send <- msg:
			delivered++
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	prometheus.RecordBroadcast(delivered, dropped)
	if dropped > 0 {
		h.log.Warn("Dropped realtime messages for slow clients",
			zap.Uint("tenant_id", env.TenantID),
			zap.String("event", env.Event),
			zap.Int("dropped", dropped))
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.joinLocked(c, c.identity.TenantID)
	prometheus.WebsocketConnections.Inc()
	h.log.Debug("Realtime client connected",
		zap.String("client_id", c.id),
		zap.Uint("tenant_id", c.identity.TenantID))
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	for tenantID := range c.rooms {
		h.leaveLocked(c, tenantID)
	}
	delete(h.clients, c)
	c.once.Do(func() { close(c.send) })
	prometheus.WebsocketConnections.Dec()
}

func (h *Hub) joinLocked(c *Client, tenantID uint) {
	room, ok := h.rooms[tenantID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[tenantID] = room
	}
	room[c] = struct{}{}
	c.rooms[tenantID] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, tenantID uint) {
	if room, ok := h.rooms[tenantID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, tenantID)
		}
	}
	delete(c.rooms, tenantID)
}

func (h *Hub) join(c *Client, tenantID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.joinLocked(c, tenantID)
	}
}

func (h *Hub) leave(c *Client, tenantID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.leaveLocked(c, tenantID)
	}
}

// reply queues a frame for one client
func (h *Hub) reply(c *Client, event string, data interface{}) {
	msg, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("Realtime client read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Event {
		case EventJoinTenant:
			tenantID, ok := parseTenantID(msg.Data)
			if !ok || !c.identity.CanAccessTenant(tenantID) {
				c.hub.log.Warn("Realtime join denied",
					zap.String("client_id", c.id),
					zap.Uint("tenant_id", c.identity.TenantID),
					zap.ByteString("requested", msg.Data))
				c.hub.reply(c, EventError, "forbidden")
				continue
			}
			c.hub.join(c, tenantID)
		case EventLeaveTenant:
			if tenantID, ok := parseTenantID(msg.Data); ok {
				c.hub.leave(c, tenantID)
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// parseTenantID accepts a number or a numeric string
func parseTenantID(raw json.RawMessage) (uint, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		raw = []byte(s)
	}
	id, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
