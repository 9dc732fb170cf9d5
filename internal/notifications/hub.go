package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"warden/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per admin
	maxConnsPerUser = 8
	// Max total admin connections
	maxTotalConns = 1000
)

// Hub fans moderation events out to connected admin websockets.
// Admin events go to everyone; user notices go to that user's connections.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	logger     *observability.WSLogger
	presence   *Presence
	closed     bool
}

// NewHub creates an empty admin event hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[uint]map[*Client]struct{}),
		logger: observability.NewWSLogger("admin stream"),
	}
}

// SetPresence makes the hub report admin joins and leaves to p.
func (h *Hub) SetPresence(p *Presence) {
	h.mu.Lock()
	h.presence = p
	h.mu.Unlock()
}

// Presence returns the attached tracker, or nil.
func (h *Hub) Presence() *Presence {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.presence
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "admin stream" }

// Register a connection for a given admin. kinds limits admin events to
// those subject kinds. Fails when limits are exceeded or the hub is shut down.
func (h *Hub) Register(userID uint, conn *websocket.Conn, kinds ...string) (*Client, error) {
	client, presence, err := h.add(userID, conn, kinds)
	if err != nil {
		return nil, err
	}
	// Presence talks to Redis; keep it off the hub lock.
	if presence != nil {
		presence.Join(context.Background(), userID)
	}
	h.logger.LogConnect(context.Background(), userID)
	return client, nil
}

func (h *Hub) add(userID uint, conn *websocket.Conn, kinds []string) (*Client, *Presence, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, nil, errors.New("hub is shut down")
	}
	if h.totalConns >= maxTotalConns {
		return nil, nil, errors.New("server connection limit reached")
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID, kinds...)
	m[client] = struct{}{}
	h.totalConns++
	observability.AdminStreamConnections.Inc()
	return client, h.presence, nil
}

// UnregisterClient removes client and closes its send channel. Safe to call twice.
func (h *Hub) UnregisterClient(client *Client) {
	presence, removed := h.remove(client)
	if !removed {
		return
	}
	if presence != nil {
		presence.Leave(context.Background(), client.UserID)
	}
	h.logger.LogDisconnect(context.Background(), client.UserID, "unregistered")
}

func (h *Hub) remove(client *Client) (*Presence, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.conns[client.UserID]
	if !ok {
		return nil, false
	}
	if _, exists := m[client]; !exists {
		return nil, false
	}
	delete(m, client)
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
	h.totalConns--
	close(client.Send)
	observability.AdminStreamConnections.Dec()
	return h.presence, true
}

// Broadcast sends message to all connections for userID.
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range h.conns[userID] {
		c.TrySend(data)
	}
}

// BroadcastAll sends an admin event to every connected admin whose kind
// filter accepts it.
func (h *Hub) BroadcastAll(message string) {
	var head struct {
		SubjectKind string `json:"subject_kind"`
	}
	// Payloads that are not events carry no kind and reach everyone.
	_ = json.Unmarshal([]byte(message), &head)

	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			if c.Wants(head.SubjectKind) {
				c.TrySend(data)
			}
		}
	}
}

// ConnectionCount returns the number of open admin connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// Dispatch routes one pub/sub message to the matching connections.
func (h *Hub) Dispatch(channel, payload string) {
	if channel == AdminChannel {
		h.BroadcastAll(payload)
		return
	}
	if !strings.HasPrefix(channel, "notifications:user:") {
		observability.GlobalLogger.Warn("invalid notification channel", "channel", channel)
		return
	}
	var userID uint
	if _, err := fmt.Sscanf(channel, "notifications:user:%d", &userID); err != nil {
		observability.GlobalLogger.Warn("invalid notification channel", "channel", channel)
		return
	}
	h.Broadcast(userID, payload)
}

// StartWiring subscribes the hub to the notifier's channels and keeps
// presence fresh until ctx is done.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	if p := h.Presence(); p != nil {
		go p.Run(ctx)
	}
	return n.StartSubscriber(ctx, h.Dispatch)
}

// Shutdown closes every client's send channel; each WritePump then sends
// the close frame and tears its connection down.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true

	var left []uint
	for userID, userConns := range h.conns {
		for client := range userConns {
			close(client.Send)
			observability.AdminStreamConnections.Dec()
			left = append(left, userID)
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	presence := h.presence
	h.mu.Unlock()

	for _, userID := range left {
		if presence != nil {
			presence.Leave(context.Background(), userID)
		}
		h.logger.LogDisconnect(context.Background(), userID, "shutdown")
	}
	return nil
}
