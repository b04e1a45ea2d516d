package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/orderflow/internal/domain"
)

// Channel carries every status transition from workers to ingress
// instances. Fire-and-forget: nothing is persisted here.
const Channel = "order-updates"

type Publisher struct {
	rdb *r.Client
}

func NewPublisher(rdb *r.Client) *Publisher { return &Publisher{rdb: rdb} }

func (p *Publisher) Publish(ctx context.Context, ev domain.StatusEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "relay: marshal event")
	}
	return errors.Wrap(p.rdb.Publish(ctx, Channel, b).Err(), "relay: publish")
}

type Subscriber struct {
	rdb *r.Client
	log *zap.Logger
}

func NewSubscriber(rdb *r.Client, log *zap.Logger) *Subscriber {
	return &Subscriber{rdb: rdb, log: log}
}

// Run consumes the channel until ctx is done, invoking handle for every
// decodable event. Undecodable messages are logged and dropped; delivery
// problems never travel back to the worker side.
func (s *Subscriber) Run(ctx context.Context, handle func(context.Context, domain.StatusEvent)) error {
	sub := s.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "relay: subscribe")
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.log.Error("relay: bad event payload", zap.Error(err))
				continue
			}
			handle(ctx, ev)
		}
	}
}
