package auth

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors collaborator implementations return so the service
// can map failures to result categories without knowing the backend.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyExists      = errors.New("account already exists")
	ErrNotFound           = errors.New("not found")
)

// CredentialStore owns durable accounts: verification, creation and
// mutation of username/password/email records. Hashing and the
// recording of failed attempts live behind this interface.
type CredentialStore interface {
	// Authenticate verifies the pair and returns the canonical
	// username. Failures are reported against clientID for rate
	// limiting. Returns ErrInvalidCredentials on a bad pair.
	Authenticate(ctx context.Context, username, password, clientID string) (string, error)

	// CreateUser creates an account. An empty password marks the
	// account OAuth-only; password login never succeeds against it.
	// Returns ErrAlreadyExists when username or email is taken.
	CreateUser(ctx context.Context, username, password, email string) error

	ChangePassword(ctx context.Context, username, newPassword string) error

	// ChangeUsername renames an account. Returns ErrAlreadyExists when
	// the new name is taken, ErrNotFound when the old one is unknown.
	ChangeUsername(ctx context.Context, oldName, newName string) error

	// FindByEmail returns the username owning email, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (string, error)

	// FindByUsername returns the identity for username, or ErrNotFound.
	FindByUsername(ctx context.Context, username string) (Identity, error)
}

// RateLimiter reports login lockout state per client identifier. The
// credential store records the failures; this only answers queries.
type RateLimiter interface {
	IsLockedOut(clientID string) bool
	RemainingLockout(clientID string) time.Duration
}

// Validator checks user-supplied fields, returning a reason-carrying
// error when a field is malformed.
type Validator interface {
	Username(s string) error
	Email(s string) error
	Password(s string) error
}

// Mailer dispatches mail. Reset codes are only persisted after Send
// returns nil.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// OAuthFlow runs an external sign-in and returns the verified email
// plus a username suggestion derived from it. It fails on user
// cancellation or transport errors.
type OAuthFlow interface {
	Authenticate(ctx context.Context) (email, suggestedUsername string, err error)
}

// SessionRegistry is the session surface the service drives. The
// concrete registry lives in internal/session.
type SessionRegistry interface {
	Create(username string) (string, error)
	ValidateAndExtend(token string) bool
	UsernameFor(token string) (string, bool)
	Invalidate(token string)
	InvalidateAllForUser(username string)
	SweepExpired(now time.Time) int
}

// ResetTokenStore is the reset-code surface the service drives. The
// concrete store lives in internal/reset.
type ResetTokenStore interface {
	Generate(username string) (string, error)
	Persist(code, username string) error
	IssueAndPersist(username string) (string, error)
	Consume(code string) (string, bool)
	InvalidateAllForUser(username string)
}
