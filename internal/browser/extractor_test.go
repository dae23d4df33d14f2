package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orgball2608/comment-pulse/pkg/logger"
)

// fakeScroller plays back a scripted sequence of content heights.
type fakeScroller struct {
	heights []int
	calls   int
	scrolls int
}

func (f *fakeScroller) ContentHeight() (int, error) {
	if f.calls >= len(f.heights) {
		return f.heights[len(f.heights)-1], nil
	}
	h := f.heights[f.calls]
	f.calls++
	return h, nil
}

func (f *fakeScroller) ScrollBy(px int) error {
	f.scrolls++
	return nil
}

func TestWaitForPaginationRequest_TerminatesOnHeightStall(t *testing.T) {
	drv := &fakeScroller{heights: []int{1000, 2000, 2000}}
	requests := make(chan *CapturedRequest, 1)

	captured, err := waitForPaginationRequest(context.Background(), drv, requests, logger.New(logger.Opts{}))
	if err != nil {
		t.Fatalf("waitForPaginationRequest: %v", err)
	}
	if captured != nil {
		t.Errorf("captured = %+v, want nil on stall", captured)
	}
	if drv.scrolls != 2 {
		t.Errorf("scrolled %d times, want 2 (growth then stall)", drv.scrolls)
	}
}

func TestWaitForPaginationRequest_ReturnsObservedRequest(t *testing.T) {
	drv := &fakeScroller{heights: []int{1000, 2000, 3000, 4000}}
	requests := make(chan *CapturedRequest, 1)
	requests <- &CapturedRequest{URL: "https://graph.test/api"}

	captured, err := waitForPaginationRequest(context.Background(), drv, requests, logger.New(logger.Opts{}))
	if err != nil {
		t.Fatalf("waitForPaginationRequest: %v", err)
	}
	if captured == nil || captured.URL != "https://graph.test/api" {
		t.Errorf("captured = %+v", captured)
	}
}

func TestWaitForPaginationRequest_ContextCancellation(t *testing.T) {
	// Heights keep growing so only ctx can stop the loop.
	drv := &fakeScroller{heights: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}}
	requests := make(chan *CapturedRequest)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := waitForPaginationRequest(ctx, drv, requests, logger.New(logger.Opts{}))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestToInt(t *testing.T) {
	if toInt(float64(42.9)) != 42 {
		t.Error("float64 conversion")
	}
	if toInt(7) != 7 {
		t.Error("int passthrough")
	}
	if toInt("nope") != 0 {
		t.Error("unknown type should map to zero")
	}
}
