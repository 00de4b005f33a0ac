// Package wallet tracks the single global wallet balance and the
// single-session lock gate: a mutex-guarded aggregate mutated from session
// goroutines after confirmed swap results, read by the orchestrator to gate
// new work.
package wallet

import (
	"sync"
)

// Tracker holds the process-wide lamport balance and the active-session
// registry used to enforce the single-slot policy.
type Tracker struct {
	mu sync.Mutex

	lamports uint64

	singleLock bool
	active     map[string]bool // mint -> holding a session
}

// New constructs a Tracker. When singleLock is true, TryAcquireSession
// refuses a new session while any other session is active.
func New(singleLock bool) *Tracker {
	return &Tracker{
		singleLock: singleLock,
		active:     make(map[string]bool),
	}
}

// SetBalance overwrites the tracked balance, e.g. after a fresh
// balance_of_wallet() read at startup.
func (t *Tracker) SetBalance(lamports uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lamports = lamports
}

// Balance returns the last-known lamport balance.
func (t *Tracker) Balance() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lamports
}

// Debit reduces the tracked balance by the given amount (clamped at zero)
// when a buy is submitted; sell proceeds go through Credit. Together they keep
// the in-memory figure roughly in sync between periodic reconciliations
// against balance_of_wallet().
func (t *Tracker) Debit(lamports uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if lamports > t.lamports {
		t.lamports = 0
		return
	}
	t.lamports -= lamports
}

// Credit adds lamports back to the tracked balance.
func (t *Tracker) Credit(lamports uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lamports += lamports
}

// HasSufficientBalance reports whether the tracked balance covers the given
// spend (lamports + fee budget).
func (t *Tracker) HasSufficientBalance(lamports uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lamports >= lamports
}

// TryAcquireSession attempts to register mint as holding the single session
// slot. It returns false if single-lock is enabled and another mint already
// holds it.
func (t *Tracker) TryAcquireSession(mint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.singleLock && len(t.active) > 0 {
		return false
	}
	t.active[mint] = true
	return true
}

// ReleaseSession releases the slot held by mint.
func (t *Tracker) ReleaseSession(mint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, mint)
}

// AnyActive reports whether any session currently holds a position — used by
// the Orchestrator to defer the Leaderboard refresh.
func (t *Tracker) AnyActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active) > 0
}

// ActiveMints returns a snapshot of mints with a currently active session.
func (t *Tracker) ActiveMints() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.active))
	for m := range t.active {
		out = append(out, m)
	}
	return out
}
