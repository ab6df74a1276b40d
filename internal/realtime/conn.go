package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// Conn is the minimal transport surface the coordinator writes to. Tests
// substitute an in-memory implementation.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// wsConn adapts a websocket connection to Conn, serializing writes.
type wsConn struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

func (w *wsConn) WriteJSON(v interface{}) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if w.writeTimeout > 0 {
		w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	return w.conn.WriteJSON(v)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

// Client is one live connection. A client owns no shared state: application
// identity is assigned on joinApplication and room membership mirrors the
// registry so cleanup knows what to tear down.
type Client struct {
	ID string

	conn  Conn
	mu    sync.RWMutex
	user  string
	app   bool
	rooms map[string]bool
}

// NewClient wraps a transport connection with a fresh connection id.
func NewClient(conn Conn) *Client {
	return &Client{
		ID:    uuid.New().String(),
		conn:  conn,
		rooms: make(map[string]bool),
	}
}

// Send writes one event envelope to the connection.
func (c *Client) Send(event string, payload interface{}) error {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		env.Data = data
	}
	return c.conn.WriteJSON(env)
}

// Close shuts the underlying transport.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Username returns the principal bound at application join, or "".
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// AppJoined reports whether the connection passed joinApplication.
func (c *Client) AppJoined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.app
}

func (c *Client) setApplication(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = username
	c.app = true
}

func (c *Client) clearApplication() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.app = false
}

// InRoom reports whether this connection is joined to the room.
func (c *Client) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[room]
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = true
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

// roomList snapshots the rooms this connection is joined to.
func (c *Client) roomList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
