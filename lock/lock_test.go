package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalSerialisesSameKey(t *testing.T) {
	l := NewLocal(time.Second)
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, RoomKey(1), time.Second)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxInside)
	}
}

func TestLocalDistinctKeysDoNotBlock(t *testing.T) {
	l := NewLocal(50 * time.Millisecond)
	ctx := context.Background()

	r1, err := l.Acquire(ctx, RoomKey(1), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer r1()

	r2, err := l.Acquire(ctx, RoomKey(2), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("room 2 should be free: %v", err)
	}
	r2()
}

func TestLocalTimesOut(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	_, err = l.Acquire(ctx, "k", time.Second)
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
}

// The wait bound decides how long a contender blocks, not the lock ttl.
func TestLocalWaitIsIndependentOfTTL(t *testing.T) {
	l := NewLocal(30 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	start := time.Now()
	_, err = l.Acquire(ctx, "k", time.Minute)
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("contender waited %s, the ttl instead of the wait bound", waited)
	}

	// a holder that releases inside the wait bound hands the key over
	l2 := NewLocal(time.Second)
	first, err := l2.Acquire(ctx, "k", 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		first()
	}()
	second, err := l2.Acquire(ctx, "k", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("waiter gave up before the wait bound: %v", err)
	}
	second()
}

func TestLocalReleaseTwiceIsSafe(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	release, err := l.Acquire(context.Background(), "k", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	release()
	release()

	again, err := l.Acquire(context.Background(), "k", 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	again()
}
