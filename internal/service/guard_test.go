package service

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGuardRejectsWhileInFlight(t *testing.T) {
	guard := NewCommitGuard(500 * time.Millisecond)
	now := time.Now()

	if err := guard.TryAcquire("session-a", now); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := guard.TryAcquire("session-a", now.Add(2*time.Second)); !errors.Is(err, ErrCommitInFlight) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}

	guard.Release("session-a", StateCommitted)
	if got := guard.State("session-a"); got != StateCommitted {
		t.Fatalf("expected state %s, got %s", StateCommitted, got)
	}
}

func TestGuardDebouncesWithinWindow(t *testing.T) {
	guard := NewCommitGuard(500 * time.Millisecond)
	base := time.Now()

	if err := guard.TryAcquire("session-a", base); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	guard.Release("session-a", StateCommitted)

	// 200ms later: released but still inside the debounce window.
	if err := guard.TryAcquire("session-a", base.Add(200*time.Millisecond)); !errors.Is(err, ErrCommitInFlight) {
		t.Fatalf("expected debounce rejection, got %v", err)
	}

	// Past the window the session is usable again.
	if err := guard.TryAcquire("session-a", base.Add(600*time.Millisecond)); err != nil {
		t.Fatalf("acquire after window failed: %v", err)
	}
	guard.Release("session-a", StateCommitted)
}

func TestGuardSessionsAreIndependent(t *testing.T) {
	guard := NewCommitGuard(500 * time.Millisecond)
	now := time.Now()

	if err := guard.TryAcquire("session-a", now); err != nil {
		t.Fatalf("session-a acquire failed: %v", err)
	}
	if err := guard.TryAcquire("session-b", now); err != nil {
		t.Fatalf("session-b acquire failed: %v", err)
	}
}

func TestGuardEvictsIdleSessions(t *testing.T) {
	guard := NewCommitGuard(500 * time.Millisecond)
	base := time.Now()

	if err := guard.TryAcquire("session-old", base); err != nil {
		t.Fatalf("acquire session-old: %v", err)
	}
	guard.Release("session-old", StateCommitted)

	// Still inside the window: the gate must survive so the debounce holds.
	if err := guard.TryAcquire("session-old", base.Add(200*time.Millisecond)); !errors.Is(err, ErrCommitInFlight) {
		t.Fatalf("expected debounce rejection, got %v", err)
	}

	// A later trigger on another session sweeps the idle gate out.
	if err := guard.TryAcquire("session-new", base.Add(time.Second)); err != nil {
		t.Fatalf("acquire session-new: %v", err)
	}
	guard.Release("session-new", StateCommitted)

	guard.mu.Lock()
	_, oldKept := guard.sessions["session-old"]
	size := len(guard.sessions)
	guard.mu.Unlock()
	if oldKept {
		t.Fatalf("expected idle session gate to be evicted")
	}
	if size != 1 {
		t.Fatalf("expected one tracked session, got %d", size)
	}
}

func TestGuardAdmitsExactlyOneConcurrentTrigger(t *testing.T) {
	guard := NewCommitGuard(500 * time.Millisecond)
	now := time.Now()

	const triggers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := guard.TryAcquire("session-a", now); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly one accepted trigger, got %d", accepted)
	}
}
