package venue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/you/orderflow/internal/domain"
)

// Venues in declaration order. Equal quotes resolve to the earliest
// declared venue, so ties always go to Raydium.
var venues = []string{"Raydium", "Meteora"}

const (
	basePrice = 150.0
	swapFee   = 0.003
)

type Quote struct {
	Venue string  `json:"venue"`
	Price float64 `json:"price"`
	Fee   float64 `json:"fee"`
}

type Swap struct {
	TxHash        string  `json:"txHash"`
	ExecutedPrice float64 `json:"executedPrice"`
}

// Router simulates DEX price discovery and swap execution. Latency and
// randomness are injected so tests run instantly and deterministically.
type Router struct {
	delay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRouter(delay time.Duration, rng *rand.Rand) *Router {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Router{delay: delay, rng: rng}
}

func (r *Router) quote(ctx context.Context, name string) (Quote, error) {
	if err := sleep(ctx, r.delay); err != nil {
		return Quote{}, err
	}
	return Quote{Venue: name, Price: basePrice * (0.98 + r.float()*0.04), Fee: swapFee}, nil
}

// BestRoute queries every venue concurrently and picks the highest price.
func (r *Router) BestRoute(ctx context.Context, req domain.OrderRequest) (Quote, error) {
	quotes := make([]Quote, len(venues))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range venues {
		i, name := i, name
		g.Go(func() error {
			q, err := r.quote(gctx, name)
			if err != nil {
				return err
			}
			quotes[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Quote{}, err
	}
	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.Price > best.Price {
			best = q
		}
	}
	return best, nil
}

// ExecuteSwap simulates settlement on the chosen venue and returns the
// reference hash plus the executed price (quote price x amount).
func (r *Router) ExecuteSwap(ctx context.Context, q Quote, req domain.OrderRequest) (Swap, error) {
	if err := sleep(ctx, 2*r.delay); err != nil {
		return Swap{}, err
	}
	return Swap{
		TxHash:        fmt.Sprintf("0x%013x%x", r.bits(), time.Now().UnixNano()),
		ExecutedPrice: q.Price * req.Amount,
	}, nil
}

func (r *Router) float() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

func (r *Router) bits() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Uint64() & (1<<52 - 1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
