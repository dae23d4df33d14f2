package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Pool bounds outbound request concurrency per source so adapters
// respect upstream rate limits regardless of caller concurrency. It
// does not retry; backoff policy belongs to the adapters.
type Pool interface {
	// WithPermit acquires one of the source's permits, runs fn, and
	// releases the permit on completion or failure. Blocks until a
	// permit is free or ctx is done.
	WithPermit(ctx context.Context, sourceKey string, fn func() error) error
}

// PermitPool is an in-memory Pool with a fixed permit count per source.
type PermitPool struct {
	permits int64
	mu      sync.Mutex
	sources map[string]*semaphore.Weighted
}

// NewPermitPool creates a pool granting at most permits concurrent
// in-flight calls per source key.
func NewPermitPool(permits int) *PermitPool {
	if permits <= 0 {
		permits = 1
	}
	return &PermitPool{
		permits: int64(permits),
		sources: make(map[string]*semaphore.Weighted),
	}
}

var _ Pool = (*PermitPool)(nil)

func (p *PermitPool) WithPermit(ctx context.Context, sourceKey string, fn func() error) error {
	sem := p.source(sourceKey)
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer sem.Release(1)
	return fn()
}

func (p *PermitPool) source(key string) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()

	sem, ok := p.sources[key]
	if !ok {
		sem = semaphore.NewWeighted(p.permits)
		p.sources[key] = sem
	}
	return sem
}

// Pacer spaces out successive paginated calls to one upstream. A 10/s
// limiter reproduces the polite ~100ms gap between comment pages.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows callsPerSecond sustained calls with a burst of one.
func NewPacer(callsPerSecond float64) *Pacer {
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(callsPerSecond), 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
