package notifications

import (
	"context"
	"strings"
	"time"

	"warden/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 256
)

var dropNotice = []byte(`{"type":"events_dropped","payload":{"reason":"buffer_full"}}`)

// WSHub is the part of a hub a Client reports back to.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is one admin websocket connection. Send is closed by the hub.
type Client struct {
	Hub    WSHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint

	// kinds restricts admin events to these subject kinds; empty means all.
	kinds map[string]struct{}
}

// NewClient creates a Client. kinds filters admin events by subject kind.
func NewClient(hub WSHub, conn *websocket.Conn, userID uint, kinds ...string) *Client {
	c := &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
	for _, k := range kinds {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			if c.kinds == nil {
				c.kinds = make(map[string]struct{})
			}
			c.kinds[k] = struct{}{}
		}
	}
	return c
}

// Wants reports whether an admin event about kind should reach this client.
// Events without a subject kind always do.
func (c *Client) Wants(kind string) bool {
	if len(c.kinds) == 0 || kind == "" {
		return true
	}
	_, ok := c.kinds[kind]
	return ok
}

// ReadPump discards inbound frames, keeping the read deadline fresh on
// pongs, and unregisters when the peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	extend := func() error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) }
	_ = extend()
	c.Conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, _, err := c.Conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			observability.NewWSLogger(c.Hub.Name()).LogError(context.Background(), c.UserID, err, "read")
		}
		return
	}
}

// WritePump forwards queued messages and keeps the connection alive with
// pings. A closed Send channel ends the stream with a close frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		var err error
		select {
		case message, open := <-c.Send:
			if !open {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			err = c.write(websocket.TextMessage, message)
		case <-ticker.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

// TrySend queues message without blocking. On a full buffer the message is
// dropped and a drop notice is queued if room remains, so the dashboard
// knows to re-fetch.
func (c *Client) TrySend(message []byte) (sent bool) {
	defer func() {
		// Send may already be closed by a concurrent shutdown.
		if recover() != nil {
			observability.AdminStreamDrops.Inc()
			sent = false
		}
	}()

	select {
	case c.Send <- message:
		return true
	default:
	}
	observability.AdminStreamDrops.Inc()
	select {
	case c.Send <- dropNotice:
	default:
	}
	return false
}
