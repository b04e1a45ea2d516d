package wire

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"
	"time"
)

// defaultWriteTimeout bounds every frame write. A peer that stops
// reading turns into a write error here instead of a blocked sender.
const defaultWriteTimeout = 5 * time.Second

// Conn is a server-side live channel over a hijacked connection. Writes
// are serialized; the reader side belongs to whoever runs the read loop.
type Conn struct {
	netConn net.Conn
	br      *bufio.Reader

	mu           sync.Mutex
	closed       bool
	writeTimeout time.Duration
}

// SetWriteTimeout overrides the default bound on a single frame write.
func (c *Conn) SetWriteTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeTimeout = d
}

func (c *Conn) SendText(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	return c.write(OpText, payload)
}

func (c *Conn) SendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendText(b)
}

// write applies the deadline and sends one frame. Callers hold mu.
func (c *Conn) write(op byte, payload []byte) error {
	timeout := c.writeTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	_ = c.netConn.SetWriteDeadline(time.Now().Add(timeout))
	err := writeFrame(c.netConn, op, payload)
	_ = c.netConn.SetWriteDeadline(time.Time{})
	return err
}

// ReadFrame blocks for the next client frame. Used to notice close frames
// and disconnects.
func (c *Conn) ReadFrame() (byte, []byte, error) {
	return readFrame(c.br)
}

// Close sends a close frame (best effort) and tears the connection down.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.write(OpClose, nil)
	return c.netConn.Close()
}
