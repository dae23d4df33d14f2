package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPermitPool_BoundsConcurrencyPerSource(t *testing.T) {
	const permits = 3
	const callers = 20

	pool := NewPermitPool(permits)

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.WithPermit(context.Background(), "reddit", func() error {
				n := atomic.AddInt64(&inFlight, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > permits {
		t.Errorf("peak concurrency = %d, want <= %d", got, permits)
	}
}

func TestPermitPool_SourcesAreIndependent(t *testing.T) {
	pool := NewPermitPool(1)

	// Hold reddit's single permit.
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = pool.WithPermit(context.Background(), "reddit", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	// YouTube has its own permit and must not block.
	done := make(chan struct{})
	go func() {
		_ = pool.WithPermit(context.Background(), "youtube", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("independent source blocked on another source's permit")
	}
	close(release)
}

func TestPermitPool_ContextCancelWhileWaiting(t *testing.T) {
	pool := NewPermitPool(1)

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = pool.WithPermit(context.Background(), "reddit", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.WithPermit(ctx, "reddit", func() error {
		t.Error("fn must not run after ctx cancellation")
		return nil
	})
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestPermitPool_ZeroPermitsDefaultsToOne(t *testing.T) {
	pool := NewPermitPool(0)
	if err := pool.WithPermit(context.Background(), "x", func() error { return nil }); err != nil {
		t.Fatalf("WithPermit: %v", err)
	}
}

func TestPacer_Wait(t *testing.T) {
	p := NewPacer(1000)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
}
