package wire

import (
	"bufio"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })
	return &Conn{netConn: server, br: bufio.NewReader(server)}, client
}

func TestConnSendJSON(t *testing.T) {
	conn, client := pipeConn(t)

	done := make(chan error, 1)
	go func() { done <- conn.SendJSON(map[string]string{"status": "pending"}) }()

	op, payload, err := readFrame(client)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, OpText, op)
	assert.JSONEq(t, `{"status":"pending"}`, string(payload))
}

func TestConnCloseSendsCloseFrame(t *testing.T) {
	conn, client := pipeConn(t)

	go conn.Close()
	op, payload, err := readFrame(client)
	require.NoError(t, err)
	assert.Equal(t, OpClose, op)
	assert.Empty(t, payload)

	// Writes after close fail instead of touching a dead conn.
	assert.Error(t, conn.SendText([]byte("late")))
	assert.NoError(t, conn.Close())
}

func TestSendTextStalledPeerTimesOut(t *testing.T) {
	conn, _ := pipeConn(t)
	conn.SetWriteTimeout(50 * time.Millisecond)

	// The peer never reads, so the write can only end via the deadline.
	start := time.Now()
	err := conn.SendText([]byte("nobody is reading this"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConnReadFrame(t *testing.T) {
	conn, client := pipeConn(t)

	go func() {
		_ = writeFrame(client, OpClose, nil)
	}()
	op, _, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, OpClose, op)
}
