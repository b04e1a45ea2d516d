package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/you/orderflow/internal/wire"
)

func TestPutGetRemove(t *testing.T) {
	reg := New()
	c := &wire.Conn{}

	_, ok := reg.Get("order-1")
	assert.False(t, ok)

	reg.Put("order-1", c)
	got, ok := reg.Get("order-1")
	assert.True(t, ok)
	assert.Same(t, c, got)

	reg.Remove("order-1", c)
	_, ok = reg.Get("order-1")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())
}

func TestRemoveIgnoresStaleConn(t *testing.T) {
	reg := New()
	old := &wire.Conn{}
	replacement := &wire.Conn{}

	reg.Put("order-1", old)
	reg.Put("order-1", replacement)

	// The old conn's teardown must not evict the replacement.
	reg.Remove("order-1", old)
	got, ok := reg.Get("order-1")
	assert.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestConcurrentAccess(t *testing.T) {
	reg := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("order-%d", i)
			c := &wire.Conn{}
			reg.Put(id, c)
			reg.Get(id)
			reg.Remove(id, c)
		}()
	}
	wg.Wait()
	assert.Zero(t, reg.Len())
}
