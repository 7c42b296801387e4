package reset

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrCodeCollision is returned when a code is already persisted for
	// a different user. The 6-digit space is small enough that this can
	// genuinely happen under load; overwriting would silently invalidate
	// another user's reset.
	ErrCodeCollision = errors.New("reset: code already in use")
)

// generateAttempts bounds collision-retry in Generate. Five draws over
// a 900k space fail together only when the store is pathologically full.
const generateAttempts = 5

// CodeSource mints reset codes.
type CodeSource interface {
	ResetCode() (string, error)
}

// Sink is the durable side channel: every mutation flushes the full
// code→username mapping, and Load restores the last snapshot on start.
type Sink interface {
	Save(tokens map[string]string) error
	Load() (map[string]string, error)
}

// Store maps one-time reset codes to usernames.
//
// Codes follow a two-phase lifecycle: Generate hands a code to the
// caller without storing it; Persist commits it once the caller has
// confirmed delivery (the email-first workflow). A code that was never
// persisted is never consumable.
type Store struct {
	mu     sync.Mutex
	tokens map[string]string

	codes CodeSource
	sink  Sink
}

// NewStore creates a Store, restoring any previous snapshot from sink.
// A missing snapshot is not an error; a corrupt one is.
func NewStore(codes CodeSource, sink Sink) (*Store, error) {
	s := &Store{
		tokens: make(map[string]string),
		codes:  codes,
		sink:   sink,
	}
	if sink != nil {
		loaded, err := sink.Load()
		if err != nil {
			return nil, fmt.Errorf("reset: load snapshot: %w", err)
		}
		if loaded != nil {
			s.tokens = loaded
		}
	}
	return s, nil
}

// Generate produces a code for username without storing it. The code
// only becomes consumable after Persist. Codes colliding with a
// currently-persisted one are redrawn.
func (s *Store) Generate(username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < generateAttempts; i++ {
		code, err := s.codes.ResetCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.tokens[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("reset: could not generate unique code after %d attempts", generateAttempts)
}

// Persist commits a previously generated code. Callers invoke it only
// after the code was successfully delivered. Persisting a code already
// mapped to a different user fails with ErrCodeCollision; re-persisting
// the same mapping is idempotent.
func (s *Store) Persist(code, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, taken := s.tokens[code]; taken && existing != username {
		return ErrCodeCollision
	}
	s.tokens[code] = username
	s.flushLocked()
	return nil
}

// IssueAndPersist generates and immediately commits a code, for flows
// with no delivery-confirmation gate.
func (s *Store) IssueAndPersist(username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < generateAttempts; i++ {
		code, err := s.codes.ResetCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.tokens[code]; taken {
			continue
		}
		s.tokens[code] = username
		s.flushLocked()
		return code, nil
	}
	return "", fmt.Errorf("reset: could not generate unique code after %d attempts", generateAttempts)
}

// Consume atomically removes code and returns the mapped username.
// A code is consumable exactly once; a second Consume returns false.
func (s *Store) Consume(code string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username, ok := s.tokens[code]
	if !ok {
		return "", false
	}
	delete(s.tokens, code)
	s.flushLocked()
	return username, true
}

// InvalidateAllForUser removes every code issued to username.
func (s *Store) InvalidateAllForUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for code, u := range s.tokens {
		if u == username {
			delete(s.tokens, code)
			changed = true
		}
	}
	if changed {
		s.flushLocked()
	}
}

// Len reports the number of currently persisted codes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// flushLocked writes the full mapping to the sink. A flush failure is
// logged but the in-memory mutation stands: these are short-lived,
// low-value codes and availability wins over durability here.
func (s *Store) flushLocked() {
	if s.sink == nil {
		return
	}
	snapshot := make(map[string]string, len(s.tokens))
	for k, v := range s.tokens {
		snapshot[k] = v
	}
	if err := s.sink.Save(snapshot); err != nil {
		slog.Error("reset token snapshot failed",
			slog.String("error", err.Error()),
		)
	}
}
