package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  OrderRequest
		ok   bool
	}{
		{"valid", OrderRequest{"SOL", "USDC", 3}, true},
		{"missing input token", OrderRequest{"", "USDC", 3}, false},
		{"missing output token", OrderRequest{"SOL", "", 3}, false},
		{"zero amount", OrderRequest{"SOL", "USDC", 0}, false},
		{"negative amount", OrderRequest{"SOL", "USDC", -5}, false},
		{"fractional amount", OrderRequest{"SOL", "USDC", 0.25}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestStatusRankForwardOnly(t *testing.T) {
	forward := []Status{Pending, Routing, Building, Submitted, Confirmed}
	for i := 1; i < len(forward); i++ {
		assert.Greater(t, forward[i].Rank(), forward[i-1].Rank())
	}
	// queued is the one backward edge: it sits below pending.
	assert.Less(t, Queued.Rank(), Pending.Rank())
	assert.Equal(t, Confirmed.Rank(), Failed.Rank())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, Confirmed.Terminal())
	assert.True(t, Failed.Terminal())
	for _, s := range []Status{Pending, Queued, Routing, Building, Submitted} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestStatusEventJSONShape(t *testing.T) {
	ev := StatusEvent{OrderID: "abc", Status: Routing, Venue: "Raydium"}
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "abc", m["id"])
	assert.Equal(t, "routing", m["status"])
	assert.Equal(t, "Raydium", m["venue"])
	assert.NotContains(t, m, "price")
	assert.NotContains(t, m, "txHash")
	assert.NotContains(t, m, "orderDetails")
}
