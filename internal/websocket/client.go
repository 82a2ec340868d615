package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds how long a slow notification client can block a
	// single event delivery before it is dropped.
	writeWait = 10 * time.Second
	// readWait is the idle limit for the ping loop; clients are expected
	// to ping well inside it.
	readWait = 5 * time.Minute
)

// Client wraps one notification connection. gorilla/websocket allows a
// single concurrent writer per connection, and events reach a client
// from several goroutines (hub broadcasts, ping replies), so every
// write goes through the client's mutex.
type Client struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// Send delivers one typed event, serialized against all other writers.
func (c *Client) Send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// SendError delivers a typed ErrorResponse.
func (c *Client) SendError(errMsg string) error {
	return c.Send(ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadRequest decodes the next inbound request envelope. Reads are only
// ever issued by the connection's single read loop, so no mutex here.
func (c *Client) ReadRequest(v interface{}) error {
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	return c.conn.ReadJSON(v)
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	return c.conn.Close()
}
