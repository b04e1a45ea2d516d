package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"

	"github.com/you/orderflow/internal/domain"
)

const (
	readyKey    = "orders:queue"
	delayKey    = "orders:delay"
	leasedKey   = "orders:leased"
	leasePrefix = "orders:lease:"
	orderPrefix = "order:"

	markerTTL = 24 * time.Hour
)

type RedisQ struct {
	rdb         *r.Client
	maxAttempts int
	backoffBase time.Duration
	leaseTTL    time.Duration
}

func New(rdb *r.Client, maxAttempts int, backoffBase, leaseTTL time.Duration) *RedisQ {
	return &RedisQ{rdb: rdb, maxAttempts: maxAttempts, backoffBase: backoffBase, leaseTTL: leaseTTL}
}

// Lease is an exclusively held job. The raw payload is kept so the leased
// zset entry can be removed byte-for-byte on ack or retry.
type Lease struct {
	Job domain.Job
	raw string
}

// Enqueue puts one job on the ready list and marks the order id as
// issued. At-least-once: the marker also lets the ingress authenticate
// upgrade requests against ids that actually exist.
func (q *RedisQ) Enqueue(ctx context.Context, orderID string, req domain.OrderRequest) error {
	job := domain.Job{OrderID: orderID, Request: req, Attempt: 1, MaxAttempts: q.maxAttempts}
	raw, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "queue: marshal job")
	}
	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, orderPrefix+orderID, "1", markerTTL)
	pipe.LPush(ctx, readyKey, raw)
	_, err = pipe.Exec(ctx)
	return errors.Wrap(err, "queue: enqueue")
}

// Known reports whether an order id was ever issued by Enqueue.
func (q *RedisQ) Known(ctx context.Context, orderID string) (bool, error) {
	n, err := q.rdb.Exists(ctx, orderPrefix+orderID).Result()
	return n > 0, errors.Wrap(err, "queue: exists")
}

// Dequeue blocks for up to block and returns the next leased job, or nil
// on timeout. If the order's lease is still held elsewhere the job goes
// back on the list and nil is returned; per-order processing stays
// strictly sequential.
func (q *RedisQ) Dequeue(ctx context.Context, block time.Duration) (*Lease, error) {
	res, err := q.rdb.BRPop(ctx, block, readyKey).Result()
	if err == r.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "queue: brpop")
	}
	raw := res[1]

	var job domain.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, errors.Wrap(err, "queue: unmarshal job")
	}

	ok, err := q.rdb.SetNX(ctx, leasePrefix+job.OrderID, "1", q.leaseTTL).Result()
	if err != nil {
		return nil, errors.Wrap(err, "queue: lease")
	}
	if !ok {
		_ = q.rdb.LPush(ctx, readyKey, raw).Err()
		return nil, nil
	}

	expiry := float64(time.Now().Add(q.leaseTTL).Unix())
	if err := q.rdb.ZAdd(ctx, leasedKey, r.Z{Score: expiry, Member: raw}).Err(); err != nil {
		return nil, errors.Wrap(err, "queue: track lease")
	}
	return &Lease{Job: job, raw: raw}, nil
}

// Ack removes a finished job for good.
func (q *RedisQ) Ack(ctx context.Context, l *Lease) error {
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, leasedKey, l.raw)
	pipe.Del(ctx, leasePrefix+l.Job.OrderID)
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "queue: ack")
}

// Retry releases the lease and reschedules the job with exponential
// backoff, or drops it permanently once attempts are exhausted. The
// returned bool tells the caller whether another attempt will run.
func (q *RedisQ) Retry(ctx context.Context, l *Lease) (bool, error) {
	if err := q.Ack(ctx, l); err != nil {
		return false, err
	}
	next := l.Job
	next.Attempt++
	if next.Attempt > next.MaxAttempts {
		return false, nil
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return false, errors.Wrap(err, "queue: marshal retry")
	}
	runAt := time.Now().Add(q.backoff(l.Job.Attempt))
	err = q.rdb.ZAdd(ctx, delayKey, r.Z{Score: float64(runAt.Unix()), Member: raw}).Err()
	return true, errors.Wrap(err, "queue: schedule retry")
}

// backoff doubles per attempt: base after the first failure, 2x base
// after the second, and so on.
func (q *RedisQ) backoff(attempt int) time.Duration {
	return q.backoffBase << uint(attempt-1)
}

// MoveDue promotes delayed jobs whose run time has passed onto the ready
// list.
func (q *RedisQ) MoveDue(ctx context.Context, now int64, batch int64) error {
	raws, err := q.rdb.ZRangeByScore(ctx, delayKey, &r.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now), Offset: 0, Count: batch}).Result()
	if err != nil || len(raws) == 0 {
		return err
	}
	pipe := q.rdb.TxPipeline()
	for _, raw := range raws {
		pipe.LPush(ctx, readyKey, raw)
		pipe.ZRem(ctx, delayKey, raw)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// ReapExpired requeues jobs whose lease expired, covering worker crashes.
// The per-order lease key has the same TTL, so by the time an entry is
// due here the SETNX guard is already gone.
func (q *RedisQ) ReapExpired(ctx context.Context, now int64, batch int64) error {
	raws, err := q.rdb.ZRangeByScore(ctx, leasedKey, &r.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now), Offset: 0, Count: batch}).Result()
	if err != nil || len(raws) == 0 {
		return err
	}
	pipe := q.rdb.TxPipeline()
	for _, raw := range raws {
		pipe.LPush(ctx, readyKey, raw)
		pipe.ZRem(ctx, leasedKey, raw)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RunScheduler drives the mover and reaper until ctx is done.
func (q *RedisQ) RunScheduler(ctx context.Context, interval time.Duration, onErr func(error)) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			now := time.Now().UTC().Unix()
			if err := q.MoveDue(ctx, now, 200); err != nil && onErr != nil {
				onErr(err)
			}
			if err := q.ReapExpired(ctx, now, 500); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
