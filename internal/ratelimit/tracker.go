package ratelimit

import (
	"sync"
	"time"
)

// Lockout policy.
const (
	// FailureThreshold locks a client id after this many failures
	// inside FailureWindow.
	FailureThreshold = 5

	// FailureWindow is how far back failures count toward the threshold.
	FailureWindow = 15 * time.Minute

	// LockoutDuration is how long a locked-out client id stays locked.
	LockoutDuration = 15 * time.Minute

	// cleanupInterval is how often stale entries are dropped.
	cleanupInterval = 5 * time.Minute
)

type entry struct {
	failures    []time.Time
	lockedUntil time.Time
}

// Tracker records failed login attempts per client identifier and
// reports lockout state. All state is in-memory; a restart forgives
// everyone, which is acceptable for a login throttle.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	stopCh  chan struct{}
}

// NewTracker creates a Tracker and starts its background cleanup loop.
func NewTracker() *Tracker {
	t := &Tracker{
		entries: make(map[string]*entry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

// NewTrackerWithClock creates a Tracker without a cleanup loop, using
// the given time source. Tests use this for deterministic lockouts.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{
		entries: make(map[string]*entry),
		now:     now,
	}
}

// Stop terminates the background cleanup loop.
func (t *Tracker) Stop() {
	if t.stopCh != nil {
		close(t.stopCh)
	}
}

// RecordFailure notes a failed login for clientID. Crossing the
// threshold inside the window starts a lockout.
func (t *Tracker) RecordFailure(clientID string) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[clientID]
	if !ok {
		e = &entry{}
		t.entries[clientID] = e
	}

	cutoff := now.Add(-FailureWindow)
	recent := e.failures[:0]
	for _, ts := range e.failures {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	e.failures = append(recent, now)

	if len(e.failures) >= FailureThreshold {
		e.lockedUntil = now.Add(LockoutDuration)
	}
}

// RecordSuccess clears all failure state for clientID.
func (t *Tracker) RecordSuccess(clientID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, clientID)
}

// IsLockedOut reports whether clientID is currently locked out.
func (t *Tracker) IsLockedOut(clientID string) bool {
	return t.RemainingLockout(clientID) > 0
}

// RemainingLockout returns how long clientID remains locked out, or
// zero if it is not.
func (t *Tracker) RemainingLockout(clientID string) time.Duration {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[clientID]
	if !ok || !e.lockedUntil.After(now) {
		return 0
	}
	return e.lockedUntil.Sub(now)
}

func (t *Tracker) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanup()
		case <-t.stopCh:
			return
		}
	}
}

// cleanup drops entries with no recent failures and no active lockout.
func (t *Tracker) cleanup() {
	now := t.now()
	cutoff := now.Add(-FailureWindow)

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, e := range t.entries {
		if e.lockedUntil.After(now) {
			continue
		}
		stale := true
		for _, ts := range e.failures {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(t.entries, id)
		}
	}
}
