package registry

import (
	"sync"

	"github.com/you/orderflow/internal/wire"
)

// Registry maps order ids to the live channel opened for them. Entries
// belong to the ingress instance that performed the upgrade; all access
// goes through the mutex.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*wire.Conn
}

func New() *Registry {
	return &Registry{conns: make(map[string]*wire.Conn)}
}

func (r *Registry) Put(orderID string, c *wire.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[orderID] = c
}

func (r *Registry) Get(orderID string) (*wire.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[orderID]
	return c, ok
}

// Remove drops the entry only if it still points at c, so a reconnect
// that replaced the conn is not clobbered by the old conn's teardown.
func (r *Registry) Remove(orderID string, c *wire.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[orderID]; ok && cur == c {
		delete(r.conns, orderID)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
