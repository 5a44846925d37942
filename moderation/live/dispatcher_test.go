package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDispatcherSerializesTasks(t *testing.T) {
	d := NewDispatcher(16)
	d.Start()
	defer d.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		err := d.Async("test", func(ctx context.Context) error {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Async returned error: %v", err)
		}
	}
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("task %d executed out of order: got position of %d", i, got)
		}
	}
}

func TestDispatcherCallReturnsTaskError(t *testing.T) {
	d := NewDispatcher(4)
	d.Start()
	defer d.Stop()

	want := errors.New("game server unreachable")
	err := d.Call(context.Background(), "test", func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Call error = %v, want %v", err, want)
	}

	if err := d.Call(context.Background(), "test", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Call returned error for successful task: %v", err)
	}
}

func TestDispatcherCallRespectsContext(t *testing.T) {
	d := NewDispatcher(4)
	d.Start()
	defer d.Stop()

	block := make(chan struct{})
	defer close(block)
	_ = d.Async("block", func(ctx context.Context) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Call(ctx, "waits", func(ctx context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Call error = %v, want context deadline", err)
	}
}

func TestDispatcherStopDrainsQueue(t *testing.T) {
	d := NewDispatcher(16)
	d.Start()

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		if err := d.Async("drain", func(ctx context.Context) error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("Async returned error: %v", err)
		}
	}
	d.Stop()

	mu.Lock()
	defer mu.Unlock()
	if ran != 5 {
		t.Fatalf("ran = %d tasks after Stop, want 5", ran)
	}

	if err := d.Async("late", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrDispatcherStopped) {
		t.Fatalf("Async after Stop = %v, want ErrDispatcherStopped", err)
	}
}
