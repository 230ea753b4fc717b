package api

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNextTimestampStrictlyIncreasing(t *testing.T) {
	t.Cleanup(func() {
		atomic.StoreInt64(&lastTimestamp, 0)
	})
	atomic.StoreInt64(&lastTimestamp, 0)

	prev := nextTimestamp()
	for i := 0; i < 100; i++ {
		next := nextTimestamp()
		if next <= prev {
			t.Fatalf("expected strictly increasing timestamps, got %d then %d", prev, next)
		}
		prev = next
	}
}

func TestNextTimestampAdvancesPastFutureLast(t *testing.T) {
	t.Cleanup(func() {
		atomic.StoreInt64(&lastTimestamp, 0)
	})

	future := time.Now().Add(time.Second).UnixNano()
	atomic.StoreInt64(&lastTimestamp, future)

	if got := nextTimestamp(); got != future+1 {
		t.Fatalf("expected %d got %d", future+1, got)
	}
}

func TestNextTimestampConcurrent(t *testing.T) {
	t.Cleanup(func() {
		atomic.StoreInt64(&lastTimestamp, 0)
	})

	const goroutines = 8
	const perGoroutine = 200

	var mu sync.Mutex
	seen := make(map[int64]struct{}, goroutines*perGoroutine)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				ts := nextTimestamp()
				mu.Lock()
				if _, dup := seen[ts]; dup {
					mu.Unlock()
					t.Errorf("duplicate timestamp %d", ts)
					return
				}
				seen[ts] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
