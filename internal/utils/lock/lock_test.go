package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalAcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	ok, err := l.Acquire(ctx, "batch", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first Acquire() = %v, %v, want true, nil", ok, err)
	}

	ok, err = l.Acquire(ctx, "batch", time.Minute)
	if err != nil || ok {
		t.Fatalf("second Acquire() = %v, %v, want false, nil", ok, err)
	}

	// an unrelated key is not blocked
	ok, err = l.Acquire(ctx, "other", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire(other) = %v, %v, want true, nil", ok, err)
	}

	if err := l.Release(ctx, "batch"); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	ok, err = l.Acquire(ctx, "batch", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Acquire() after release = %v, %v, want true, nil", ok, err)
	}
}

func TestLocalSingleWinner(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners int

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Acquire(ctx, "batch", time.Minute)
			if err != nil {
				t.Errorf("Acquire() = %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want 1", winners)
	}
}
