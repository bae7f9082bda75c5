package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the slice of *websocket.Conn the bus needs. Tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client wraps one live connection. Writes are serialized through a per-client
// mutex so delivery to a single connection stays FIFO even when several
// broadcasts race.
type Client struct {
	conn    Conn
	writeMu sync.Mutex
}

func NewClient(conn Conn) *Client {
	return &Client{conn: conn}
}

// Send writes one encoded message. The error is returned to the caller; the
// hub converts failures into pruning instead of propagating them.
func (c *Client) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendEvent encodes and sends a single event.
func (c *Client) SendEvent(e Event) error {
	data, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	return c.Send(data)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
