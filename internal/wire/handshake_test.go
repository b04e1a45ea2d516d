package wire

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcceptKey(t *testing.T) {
	// Known vector from RFC 6455 section 1.3.
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func upgradeReq(mutate func(h http.Header)) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/orders/execute?orderId=x", nil)
	r.Header.Set("Upgrade", "websocket")
	r.Header.Set("Connection", "Upgrade")
	r.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	r.Header.Set("Sec-WebSocket-Version", "13")
	if mutate != nil {
		mutate(r.Header)
	}
	return r
}

func TestUpgradeRejectsMalformedHandshake(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(h http.Header)
	}{
		{"missing upgrade header", func(h http.Header) { h.Del("Upgrade") }},
		{"wrong upgrade header", func(h http.Header) { h.Set("Upgrade", "h2c") }},
		{"missing connection header", func(h http.Header) { h.Del("Connection") }},
		{"missing key", func(h http.Header) { h.Del("Sec-WebSocket-Key") }},
		{"wrong version", func(h http.Header) { h.Set("Sec-WebSocket-Version", "8") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Upgrade(httptest.NewRecorder(), upgradeReq(tc.mutate))
			assert.ErrorIs(t, err, ErrBadHandshake)
		})
	}
}

func TestUpgradeNeedsHijacker(t *testing.T) {
	// Headers are fine but the recorder cannot hand over the conn.
	_, err := Upgrade(httptest.NewRecorder(), upgradeReq(nil))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadHandshake)
}

func TestConnectionHeaderList(t *testing.T) {
	// Keep-alive clients send a token list.
	r := upgradeReq(func(h http.Header) { h.Set("Connection", "keep-alive, Upgrade") })
	_, err := Upgrade(httptest.NewRecorder(), r)
	assert.NotErrorIs(t, err, ErrBadHandshake)
}
