package service

import (
	"errors"
	"sync"
	"time"
)

// ErrCommitInFlight is returned when a session triggers a commit while an
// earlier one is still running, or inside the debounce window after an
// accepted trigger. It is an operational signal, not a business failure.
var ErrCommitInFlight = errors.New("commit already in flight")

// Commit states tracked per session, for logging and introspection.
const (
	StateIdle       = "idle"
	StateValidating = "validating"
	StateCommitting = "committing"
	StateCommitted  = "committed"
	StateFailed     = "failed"
	StateRejected   = "rejected"
)

type sessionGate struct {
	inFlight     bool
	lastAccepted time.Time
	state        string
}

// CommitGuard serializes commit attempts per session. A trigger is accepted
// only when no commit is in flight for the session AND the previous accepted
// trigger is older than the debounce window. Check and set happen under one
// lock so two near-simultaneous triggers can never both pass.
type CommitGuard struct {
	mu       sync.Mutex
	window   time.Duration
	sessions map[string]*sessionGate
}

func NewCommitGuard(window time.Duration) *CommitGuard {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	return &CommitGuard{
		window:   window,
		sessions: make(map[string]*sessionGate),
	}
}

// TryAcquire admits at most one commit attempt per session at a time.
func (g *CommitGuard) TryAcquire(sessionID string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pruneLocked(now)

	gate, ok := g.sessions[sessionID]
	if !ok {
		gate = &sessionGate{state: StateIdle}
		g.sessions[sessionID] = gate
	}

	if gate.inFlight {
		gate.state = StateRejected
		return ErrCommitInFlight
	}
	if !gate.lastAccepted.IsZero() && now.Sub(gate.lastAccepted) < g.window {
		gate.state = StateRejected
		return ErrCommitInFlight
	}

	gate.inFlight = true
	gate.lastAccepted = now
	gate.state = StateValidating
	return nil
}

// MarkCommitting records that the session passed validation and entered the
// store transaction.
func (g *CommitGuard) MarkCommitting(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gate, ok := g.sessions[sessionID]; ok && gate.inFlight {
		gate.state = StateCommitting
	}
}

// Release ends the in-flight attempt and records its outcome. It must run on
// every exit path of a commit, success or failure.
func (g *CommitGuard) Release(sessionID string, outcome string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate, ok := g.sessions[sessionID]
	if !ok {
		return
	}
	gate.inFlight = false
	gate.state = outcome
}

// pruneLocked evicts gates that are idle and past the debounce window, so the
// map does not retain an entry for every session id ever seen. Gates still
// inside the window stay, otherwise the debounce would forget them.
func (g *CommitGuard) pruneLocked(now time.Time) {
	for id, gate := range g.sessions {
		if !gate.inFlight && now.Sub(gate.lastAccepted) >= g.window {
			delete(g.sessions, id)
		}
	}
}

// State reports the last observed state for a session.
func (g *CommitGuard) State(sessionID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gate, ok := g.sessions[sessionID]; ok {
		return gate.state
	}
	return StateIdle
}
