package router

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLaneLock_SameConversationIsSerial(t *testing.T) {
	t.Parallel()
	ll := NewLaneLock()

	var (
		inside atomic.Int32
		peak   atomic.Int32
		wg     sync.WaitGroup
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ll.Acquire("telegram:1")
			defer ll.Release("telegram:1")

			cur := inside.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	if p := peak.Load(); p != 1 {
		t.Errorf("peak concurrency = %d, want 1", p)
	}
	if n := ll.Len(); n != 0 {
		t.Errorf("lanes left = %d, want 0", n)
	}
}

func TestLaneLock_DifferentConversationsRunInParallel(t *testing.T) {
	t.Parallel()
	ll := NewLaneLock()

	ll.Acquire("a")
	done := make(chan struct{})
	go func() {
		ll.Acquire("b")
		ll.Release("b")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lane b blocked behind lane a")
	}
	ll.Release("a")
}

func TestLaneLock_ReleaseUnknownIsNoop(t *testing.T) {
	t.Parallel()
	ll := NewLaneLock()
	ll.Release("missing")
	if ll.Len() != 0 {
		t.Error("release created a lane")
	}
}
