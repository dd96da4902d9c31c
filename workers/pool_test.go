package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitReturnsResult(t *testing.T) {
	p := NewPool(1)
	got, err := Submit(context.Background(), p, func(context.Context) (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Errorf("Submit = %d, %v", got, err)
	}
}

func TestSubmitRecoversPanic(t *testing.T) {
	p := NewPool(1)
	_, err := Submit(context.Background(), p, func(context.Context) (string, error) { panic("boom") })
	if err == nil {
		t.Fatal("expected error from panicking call")
	}
	// The slot must have been released.
	if _, err := Submit(context.Background(), p, func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Errorf("pool unusable after panic: %v", err)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var running, peak int32
	done := make(chan struct{})

	for i := 0; i < 6; i++ {
		go func() {
			Submit(context.Background(), p, func(context.Context) (struct{}, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return struct{}{}, nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestSubmitHonorsContext(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	go Submit(context.Background(), p, func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	defer close(release)

	// Wait until the slot is taken.
	for len(p.slots) == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := Submit(ctx, p, func(context.Context) (int, error) { return 1, nil }); err != context.DeadlineExceeded {
		t.Errorf("Submit error = %v, want DeadlineExceeded", err)
	}
}

func TestNewPoolMinimumCapacity(t *testing.T) {
	if got := NewPool(0).Cap(); got != 1 {
		t.Errorf("Cap = %d, want 1", got)
	}
}
