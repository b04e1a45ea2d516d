package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/orderflow/internal/domain"
	"github.com/you/orderflow/internal/queue"
	"github.com/you/orderflow/internal/venue"
)

var errSimulated = errors.New("engine: simulated upstream failure")

type Publisher interface {
	Publish(ctx context.Context, ev domain.StatusEvent) error
}

type Queue interface {
	Dequeue(ctx context.Context, block time.Duration) (*queue.Lease, error)
	Ack(ctx context.Context, l *queue.Lease) error
	Retry(ctx context.Context, l *queue.Lease) (bool, error)
}

// FlatRate is the default failure curve: the same injection probability
// on every attempt.
func FlatRate(p float64) func(attempt int) float64 {
	return func(int) float64 { return p }
}

type Params struct {
	Queue     Queue
	Publisher Publisher
	Router    *venue.Router
	Log       *zap.Logger

	StepDelay time.Duration
	// FailureRate maps attempt index to injection probability. Nil means
	// a flat 20%.
	FailureRate func(attempt int) float64
	// Rand supplies the draw compared against FailureRate. Nil means
	// math/rand; tests pin it to force either branch.
	Rand func() float64
}

// Worker drives leased jobs through the lifecycle and publishes one event
// per transition. One worker owns a job end-to-end, so per-order events
// are strictly sequential.
type Worker struct {
	q     Queue
	pub   Publisher
	rtr   *venue.Router
	log   *zap.Logger
	delay time.Duration
	rate  func(int) float64
	rnd   func() float64
}

func New(p Params) *Worker {
	if p.FailureRate == nil {
		p.FailureRate = FlatRate(0.2)
	}
	if p.Rand == nil {
		p.Rand = rand.Float64
	}
	return &Worker{
		q:     p.Queue,
		pub:   p.Publisher,
		rtr:   p.Router,
		log:   p.Log,
		delay: p.StepDelay,
		rate:  p.FailureRate,
		rnd:   p.Rand,
	}
}

// Run pulls jobs with n concurrent workers until ctx is done.
func (w *Worker) Run(ctx context.Context, n int) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error { return w.loop(ctx) })
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		lease, err := w.q.Dequeue(ctx, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if lease == nil {
			continue
		}
		w.process(ctx, lease)
	}
}

// process runs one attempt to a terminal or queued state. A canceled
// context leaves the lease alone; the reaper requeues it.
func (w *Worker) process(ctx context.Context, lease *queue.Lease) {
	job := lease.Job
	state, err := w.attempt(ctx, job)
	if err == nil {
		if err := w.q.Ack(ctx, lease); err != nil {
			w.log.Error("ack failed", zap.String("order_id", job.OrderID), zap.Error(err))
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	w.log.Warn("attempt failed",
		zap.String("order_id", job.OrderID),
		zap.Int("attempt", job.Attempt),
		zap.Error(err))

	outcome := Fail
	if job.Attempt >= job.MaxAttempts {
		outcome = Exhaust
	}

	if next := Next(state, outcome); next == domain.Queued {
		w.emit(ctx, job, next, func(ev *domain.StatusEvent) { ev.Request = &job.Request })
		if _, rerr := w.q.Retry(ctx, lease); rerr != nil {
			w.log.Error("retry failed", zap.String("order_id", job.OrderID), zap.Error(rerr))
		}
	} else {
		// Remove the job before the terminal event so nothing can run
		// another attempt for this order afterwards.
		if _, rerr := w.q.Retry(ctx, lease); rerr != nil {
			w.log.Error("drop failed", zap.String("order_id", job.OrderID), zap.Error(rerr))
			return
		}
		w.emit(ctx, job, next, nil)
	}
}

// attempt executes the forward pipeline for one delivery, emitting one
// event per transition, and returns the state it stopped in. The
// injection check runs before the swap so no terminal event precedes it.
func (w *Worker) attempt(ctx context.Context, job domain.Job) (domain.Status, error) {
	state := Next(domain.Queued, Advance) // pending
	w.emit(ctx, job, state, func(ev *domain.StatusEvent) { ev.Request = &job.Request })

	if err := w.sleep(ctx); err != nil {
		return state, err
	}
	quote, err := w.rtr.BestRoute(ctx, job.Request)
	if err != nil {
		return state, err
	}
	state = Next(state, Advance) // routing
	w.emit(ctx, job, state, func(ev *domain.StatusEvent) { ev.Venue = quote.Venue })

	if err := w.sleep(ctx); err != nil {
		return state, err
	}
	state = Next(state, Advance) // building
	w.emit(ctx, job, state, nil)

	if err := w.sleep(ctx); err != nil {
		return state, err
	}
	state = Next(state, Advance) // submitted
	w.emit(ctx, job, state, nil)

	if w.rnd() < w.rate(job.Attempt) {
		return state, errSimulated
	}

	swap, err := w.rtr.ExecuteSwap(ctx, quote, job.Request)
	if err != nil {
		return state, err
	}
	state = Next(state, Advance) // confirmed
	w.emit(ctx, job, state, func(ev *domain.StatusEvent) {
		ev.Venue = quote.Venue
		ev.Price = swap.ExecutedPrice
		ev.TxHash = swap.TxHash
	})
	return state, nil
}

func (w *Worker) emit(ctx context.Context, job domain.Job, status domain.Status, fill func(*domain.StatusEvent)) {
	ev := domain.StatusEvent{
		OrderID:   job.OrderID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
	if fill != nil {
		fill(&ev)
	}
	if err := w.pub.Publish(ctx, ev); err != nil {
		// Delivery is best-effort; the audit store catches up from the
		// next published transition.
		w.log.Error("publish failed",
			zap.String("order_id", job.OrderID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func (w *Worker) sleep(ctx context.Context) error {
	if w.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(w.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
