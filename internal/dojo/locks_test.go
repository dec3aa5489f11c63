package dojo

import (
	"sync"
	"testing"
)

func TestKeyedLocksSerializeSameKey(t *testing.T) {
	locks := newKeyedLocks()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.lock("session-a")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestKeyedLocksCleanUpAfterRelease(t *testing.T) {
	locks := newKeyedLocks()

	release := locks.lock("session-a")
	releaseB := locks.lock("session-b")

	locks.mu.Lock()
	entries := len(locks.entries)
	locks.mu.Unlock()
	if entries != 2 {
		t.Fatalf("entries = %d while held, want 2", entries)
	}

	release()
	releaseB()

	locks.mu.Lock()
	entries = len(locks.entries)
	locks.mu.Unlock()
	if entries != 0 {
		t.Errorf("entries = %d after release, want 0", entries)
	}
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	locks := newKeyedLocks()

	releaseA := locks.lock("session-a")
	defer releaseA()

	// A different key must not block while session-a is held.
	acquired := make(chan struct{})
	go func() {
		release := locks.lock("session-b")
		release()
		close(acquired)
	}()
	<-acquired
}
