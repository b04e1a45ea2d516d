package wire

import (
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const acceptMagic = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var ErrBadHandshake = errors.New("wire: malformed websocket handshake")

// AcceptKey computes the Sec-WebSocket-Accept value for a client key.
func AcceptKey(key string) string {
	h := sha1.Sum([]byte(key + acceptMagic))
	return base64.StdEncoding.EncodeToString(h[:])
}

// Upgrade validates the handshake headers, hijacks the connection and
// completes the 101 exchange. The caller owns the returned Conn.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") ||
		!strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") {
		return nil, ErrBadHandshake
	}
	if r.Header.Get("Sec-WebSocket-Version") != "13" {
		return nil, ErrBadHandshake
	}
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return nil, ErrBadHandshake
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, errors.New("wire: response writer does not support hijacking")
	}
	netConn, rw, err := hj.Hijack()
	if err != nil {
		return nil, errors.Wrap(err, "wire: hijack")
	}

	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + AcceptKey(key) + "\r\n\r\n"
	if _, err := netConn.Write([]byte(resp)); err != nil {
		netConn.Close()
		return nil, errors.Wrap(err, "wire: write 101")
	}
	return &Conn{netConn: netConn, br: rw.Reader}, nil
}
