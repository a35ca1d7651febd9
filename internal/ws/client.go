package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Envelope frames every event on the live channel, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Client is one live connection. It implements chat.Conn: the presence
// registry holds it and pushes events through Send. Reads and writes each run
// in their own goroutine so sends from different connections never block one
// another.
type Client struct {
	userID string
	conn   *websocket.Conn

	mu     sync.Mutex
	send   chan outbound
	closed bool

	idleTimeout  time.Duration
	writeTimeout time.Duration
}

func newClient(userID string, conn *websocket.Conn, idleTimeout, writeTimeout time.Duration) *Client {
	return &Client{
		userID:       userID,
		conn:         conn,
		send:         make(chan outbound, 64),
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
	}
}

// UserID returns the authenticated user this connection belongs to.
func (c *Client) UserID() string { return c.userID }

// Send queues an event for delivery. It never blocks; a client whose buffer
// is full is considered too slow and the event is dropped with an error so the
// registry can log it. Sends racing with teardown report the connection as
// closed instead of panicking on the drained channel.
func (c *Client) Send(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- outbound{Event: event, Data: payload}:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// readPump consumes inbound frames and hands them to the handler. The read
// deadline is refreshed by pong responses; a connection silent past the idle
// timeout errors out of ReadMessage and is torn down.
func (c *Client) readPump(h *Handler) {
	defer c.conn.Close()

	c.conn.SetReadLimit(64 << 10)
	c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read error for user %s: %v", c.userID, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("ws: malformed frame from user %s: %v", c.userID, err)
			continue
		}
		c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		h.dispatch(c, env)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	pingInterval := c.idleTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("ws: write error for user %s: %v", c.userID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
