package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout is the sliding-expiry window applied when no timeout
// is configured.
const DefaultTimeout = 30 * time.Minute

// Session represents an authenticated user session held by the registry.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenSource mints session tokens for the registry.
type TokenSource interface {
	SessionToken() (string, error)
}

// Sink receives best-effort notifications of session changes so an
// external store (e.g. Redis) can mirror them. Sink failures never
// affect registry state.
type Sink interface {
	Put(ctx context.Context, s Session) error
	Remove(ctx context.Context, token string) error
}

// Registry is the in-memory session store. Every session uses sliding
// expiry: each successful validation pushes ExpiresAt forward by the
// configured timeout, so an idle session dies exactly one timeout after
// its last use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Session

	tokens  TokenSource
	timeout time.Duration
	sink    Sink
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout overrides the sliding-expiry window.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithSink attaches an external persistence sink.
func WithSink(s Sink) Option {
	return func(r *Registry) { r.sink = s }
}

// WithClock overrides the time source. Tests use this for
// deterministic expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty session registry.
func NewRegistry(tokens TokenSource, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]Session),
		tokens:   tokens,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create mints a token and stores a session for username expiring one
// timeout from now. Multiple sessions per user are allowed; each login
// gets its own token.
func (r *Registry) Create(username string) (string, error) {
	tok, err := r.tokens.SessionToken()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	s := Session{
		Token:     tok,
		Username:  username,
		ExpiresAt: r.now().Add(r.timeout),
	}
	r.sessions[tok] = s
	r.mu.Unlock()

	r.notifyPut(s)
	return tok, nil
}

// ValidateAndExtend reports whether the token names a live session. A
// live session has its expiry pushed forward by the timeout; an expired
// one is removed. The check and the extension happen under one lock so
// a session can never be read as valid and then expire before the
// extension lands.
func (r *Registry) ValidateAndExtend(tok string) bool {
	r.mu.Lock()
	s, ok := r.sessions[tok]
	if !ok {
		r.mu.Unlock()
		return false
	}
	now := r.now()
	if !s.ExpiresAt.After(now) {
		delete(r.sessions, tok)
		r.mu.Unlock()
		r.notifyRemove(tok)
		return false
	}
	s.ExpiresAt = now.Add(r.timeout)
	r.sessions[tok] = s
	r.mu.Unlock()

	r.notifyPut(s)
	return true
}

// UsernameFor returns the username owning a live session. Unlike
// ValidateAndExtend it is a pure lookup: the expiry is neither checked
// forward nor extended.
func (r *Registry) UsernameFor(tok string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[tok]
	if !ok || !s.ExpiresAt.After(r.now()) {
		return "", false
	}
	return s.Username, true
}

// Invalidate removes the session for tok. Removing an unknown token is
// a no-op.
func (r *Registry) Invalidate(tok string) {
	r.mu.Lock()
	_, ok := r.sessions[tok]
	delete(r.sessions, tok)
	r.mu.Unlock()

	if ok {
		r.notifyRemove(tok)
	}
}

// InvalidateAllForUser removes every session belonging to username.
// Logout uses this "logout everywhere" semantic rather than killing a
// single token.
func (r *Registry) InvalidateAllForUser(username string) {
	var removed []string

	r.mu.Lock()
	for tok, s := range r.sessions {
		if s.Username == username {
			delete(r.sessions, tok)
			removed = append(removed, tok)
		}
	}
	r.mu.Unlock()

	for _, tok := range removed {
		r.notifyRemove(tok)
	}
}

// SweepExpired removes every session whose expiry is before now and
// returns the number removed. It is a garbage-collection pass only;
// ValidateAndExtend is correct without it.
func (r *Registry) SweepExpired(now time.Time) int {
	var removed []string

	r.mu.Lock()
	for tok, s := range r.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, tok)
			removed = append(removed, tok)
		}
	}
	r.mu.Unlock()

	for _, tok := range removed {
		r.notifyRemove(tok)
	}
	return len(removed)
}

// Len reports the number of live entries, expired or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) notifyPut(s Session) {
	if r.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.sink.Put(ctx, s); err != nil {
			slog.Warn("session sink put failed",
				slog.String("username", s.Username),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (r *Registry) notifyRemove(tok string) {
	if r.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.sink.Remove(ctx, tok); err != nil {
			slog.Warn("session sink remove failed",
				slog.String("error", err.Error()),
			)
		}
	}()
}
