package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFIFO(t *testing.T) {
	q := New[string](0)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "A"); err != nil {
		t.Fatalf("Enqueue A: %v", err)
	}
	if err := q.Enqueue(ctx, "B"); err != nil {
		t.Fatalf("Enqueue B: %v", err)
	}

	for _, want := range []string{"A", "B"} {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if got != want {
			t.Errorf("Dequeue = %q, want %q", got, want)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New[int](0)
	got := make(chan int, 1)

	go func() {
		v, err := q.Dequeue(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("Dequeue returned before any item was enqueued")
	case <-time.After(50 * time.Millisecond):
	}

	if err := q.Enqueue(context.Background(), 7); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case v := <-got:
		if v != 7 {
			t.Errorf("Dequeue = %d, want 7", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake up")
	}
}

func TestDequeueContextCancel(t *testing.T) {
	q := New[int](0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dequeue error = %v, want deadline exceeded", err)
	}
}

func TestBoundedEnqueueBlocks(t *testing.T) {
	q := New[int](1)
	ctx := context.Background()

	if err := q.Enqueue(ctx, 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(short, 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Enqueue on full queue = %v, want deadline exceeded", err)
	}

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(ctx, 3) }()

	if v, _ := q.Dequeue(ctx); v != 1 {
		t.Errorf("Dequeue = %d, want 1", v)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked Enqueue: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Enqueue did not unblock after Dequeue")
	}
	if v, _ := q.Dequeue(ctx); v != 3 {
		t.Errorf("Dequeue = %d, want 3", v)
	}
}

func TestCloseDrainsThenErrors(t *testing.T) {
	q := New[int](0)
	ctx := context.Background()
	_ = q.Enqueue(ctx, 1)
	q.Close()
	q.Close()

	if err := q.Enqueue(ctx, 2); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue after Close = %v, want ErrClosed", err)
	}
	if v, err := q.Dequeue(ctx); err != nil || v != 1 {
		t.Errorf("Dequeue = %d, %v; want 1, nil", v, err)
	}
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Dequeue on drained queue = %v, want ErrClosed", err)
	}
}

func TestCloseWakesWaitingConsumer(t *testing.T) {
	q := New[int](0)
	errc := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Dequeue = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake consumer")
	}
}

func TestConcurrentProducersNoLossNoDuplicates(t *testing.T) {
	q := New[int](4)
	ctx := context.Background()
	const producers, perProducer = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Enqueue(ctx, base+i); err != nil {
					t.Errorf("Enqueue: %v", err)
					return
				}
			}
		}(p * perProducer)
	}

	seen := make(map[int]bool)
	for i := 0; i < producers*perProducer; i++ {
		v, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if seen[v] {
			t.Fatalf("duplicate delivery of %d", v)
		}
		seen[v] = true
	}
	wg.Wait()
}
