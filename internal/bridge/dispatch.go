package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/you/orderflow/internal/domain"
	"github.com/you/orderflow/internal/registry"
	"github.com/you/orderflow/internal/wire"
)

type Sink interface {
	InsertIfAbsent(ctx context.Context, ev domain.StatusEvent) error
	MarkTerminal(ctx context.Context, ev domain.StatusEvent) error
}

// Dispatcher consumes relay events on the ingress side: it keeps the
// audit sink current and forwards events to the local live channel, if
// one exists. Anything else is dropped silently.
type Dispatcher struct {
	reg   *registry.Registry
	sink  Sink
	log   *zap.Logger
	grace time.Duration
}

func NewDispatcher(reg *registry.Registry, sink Sink, grace time.Duration, log *zap.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, sink: sink, log: log, grace: grace}
}

func (d *Dispatcher) Handle(ctx context.Context, ev domain.StatusEvent) {
	switch {
	case ev.Status == domain.Pending || ev.Status == domain.Queued:
		if err := d.sink.InsertIfAbsent(ctx, ev); err != nil {
			d.log.Error("audit insert failed", zap.String("order_id", ev.OrderID), zap.Error(err))
		}
	case ev.Status.Terminal():
		if err := d.sink.MarkTerminal(ctx, ev); err != nil {
			d.log.Error("audit update failed", zap.String("order_id", ev.OrderID), zap.Error(err))
		}
	}

	conn, ok := d.reg.Get(ev.OrderID)
	if !ok {
		return
	}

	// Push shape drops the internal order details.
	push := ev
	push.Request = nil
	if err := conn.SendJSON(push); err != nil {
		// A dead channel is a local problem; the worker and queue never
		// hear about it.
		d.log.Warn("push failed", zap.String("order_id", ev.OrderID), zap.Error(err))
		d.reg.Remove(ev.OrderID, conn)
		_ = conn.Close()
		return
	}

	if ev.Status.Terminal() {
		go d.closeAfterGrace(ev.OrderID, conn)
	}
}

// closeAfterGrace gives the client a moment to read the terminal frame,
// then closes and deregisters the channel.
func (d *Dispatcher) closeAfterGrace(orderID string, conn *wire.Conn) {
	time.Sleep(d.grace)
	d.reg.Remove(orderID, conn)
	_ = conn.Close()
}
