package sweep

import (
	"context"
	"sync"
	"testing"
)

func TestFlightGuardSingleFlight(t *testing.T) {
	guard := NewFlightGuard()
	ctx := context.Background()

	ok, err := guard.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v, want true", ok, err)
	}
	ok, err = guard.TryAcquire(ctx)
	if err != nil || ok {
		t.Fatalf("second acquire = %v, %v, want false", ok, err)
	}
	if err := guard.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = guard.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release = %v, %v, want true", ok, err)
	}
}

func TestFlightGuardConcurrentAcquire(t *testing.T) {
	guard := NewFlightGuard()
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	acquired := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := guard.TryAcquire(ctx); ok {
				acquired <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(acquired)

	count := 0
	for range acquired {
		count++
	}
	if count != 1 {
		t.Fatalf("%d goroutines acquired the guard, want exactly 1", count)
	}
}
