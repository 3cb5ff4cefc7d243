package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var now = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	req := NewRefreshRequest("manual", now)
	if req.ID == "" {
		t.Fatal("expected a request id")
	}
	if err := q.Enqueue(ctx, req); err != nil {
		t.Fatalf("expected enqueue to succeed: %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got != req {
		t.Errorf("expected %+v, got %+v", req, got)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, NewRefreshRequest("tick", now)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	if err := q.Enqueue(ctx, NewRefreshRequest("tick", now)); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
}

func TestInMemoryQueue_IDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewRefreshRequest("x", now).ID
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, NewRefreshRequest("late", now)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(64))
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 128; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.Enqueue(ctx, NewRefreshRequest("burst", now)) == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 64 {
		t.Errorf("expected 64 accepted requests, got %d", accepted)
	}
	if l := q.Len(ctx); l != 64 {
		t.Errorf("expected length 64, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	_ = q.Enqueue(ctx, NewRefreshRequest("pending", now))
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Enqueue(ctx, NewRefreshRequest("after", now)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	var drained []RefreshRequest
	for r := range q.Dequeue(ctx) {
		drained = append(drained, r)
	}
	if len(drained) != 1 || drained[0].Reason != "pending" {
		t.Errorf("expected the pending request to drain, got %+v", drained)
	}
}
