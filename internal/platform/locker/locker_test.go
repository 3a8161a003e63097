package locker

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryLocker_SecondAcquireBlockedUntilRelease(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, acquired, err := l.TryAcquire(ctx, "trk_1", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("first acquire: acquired=%v err=%v", acquired, err)
	}

	_, again, err := l.TryAcquire(ctx, "trk_1", time.Minute)
	if err != nil {
		t.Fatalf("second acquire errored: %v", err)
	}
	if again {
		t.Fatalf("held lock must not be acquired twice")
	}

	// A different key is independent.
	rel2, other, err := l.TryAcquire(ctx, "trk_2", time.Minute)
	if err != nil || !other {
		t.Fatalf("independent key acquire: acquired=%v err=%v", other, err)
	}
	rel2()

	release()
	rel3, reacquired, err := l.TryAcquire(ctx, "trk_1", time.Minute)
	if err != nil || !reacquired {
		t.Fatalf("acquire after release: acquired=%v err=%v", reacquired, err)
	}
	rel3()
}

func TestMemoryLocker_ConcurrentSingleWinner(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan func(), callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, acquired, err := l.TryAcquire(ctx, "trk_1", time.Minute)
			if err != nil {
				t.Errorf("acquire errored: %v", err)
				return
			}
			if acquired {
				wins <- release
			}
		}()
	}
	wg.Wait()
	close(wins)

	var count int
	for release := range wins {
		count++
		release()
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}
