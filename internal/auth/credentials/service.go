package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"gradeauth/internal/auth"
	"gradeauth/internal/db"
)

// FailureRecorder receives login outcomes per client identifier so the
// rate limiter can track lockout state. The credential store owns the
// recording because it is the component that knows the outcome.
type FailureRecorder interface {
	RecordFailure(clientID string)
	RecordSuccess(clientID string)
}

// Service is the postgres-backed credential store.
type Service struct {
	db       *db.DB
	failures FailureRecorder
}

// NewService creates a credential store. failures may be nil, in which
// case login outcomes are not recorded.
func NewService(db *db.DB, failures FailureRecorder) *Service {
	return &Service{db: db, failures: failures}
}

// Authenticate verifies a username/password pair and reports the
// outcome against clientID. Accounts created through OAuth carry an
// empty password hash and always fail password authentication.
func (s *Service) Authenticate(
	ctx context.Context,
	username string,
	password string,
	clientID string,
) (string, error) {

	var (
		canonical    string
		passwordHash string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username).Scan(&canonical, &passwordHash)

	if err == sql.ErrNoRows {
		// hide whether the user exists
		s.recordFailure(clientID)
		return "", auth.ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("credentials: lookup: %w", err)
	}

	// OAuth-only sentinel: no hash, no password login.
	if passwordHash == "" {
		s.recordFailure(clientID)
		return "", auth.ErrInvalidCredentials
	}

	if err := VerifyPassword(passwordHash, password); err != nil {
		s.recordFailure(clientID)
		return "", auth.ErrInvalidCredentials
	}

	if s.failures != nil && clientID != "" {
		s.failures.RecordSuccess(clientID)
	}
	return canonical, nil
}

// CreateUser creates an account. An empty password stores an empty
// hash, marking the account OAuth-only.
func (s *Service) CreateUser(
	ctx context.Context,
	username string,
	password string,
	email string,
) error {

	var (
		hash string
		err  error
	)
	if password != "" {
		hash, err = HashPassword(password)
		if err != nil {
			return fmt.Errorf("credentials: hash password: %w", err)
		}
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id
	`, username, email, hash).Scan(&id)

	if isUniqueViolation(err) {
		return auth.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("credentials: create user: %w", err)
	}
	return nil
}

// ChangePassword replaces the stored hash for username.
func (s *Service) ChangePassword(
	ctx context.Context,
	username string,
	newPassword string,
) error {

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("credentials: hash password: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE LOWER(username) = LOWER($1)
	`, username, hash)
	if err != nil {
		return fmt.Errorf("credentials: change password: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credentials: change password: %w", err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// ChangeUsername renames an account and stamps last_username_change.
func (s *Service) ChangeUsername(
	ctx context.Context,
	oldName string,
	newName string,
) error {

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = $2, last_username_change = NOW(), updated_at = NOW()
		WHERE LOWER(username) = LOWER($1)
	`, oldName, newName)

	if isUniqueViolation(err) {
		return auth.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("credentials: change username: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credentials: change username: %w", err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// FindByEmail returns the username owning email.
func (s *Service) FindByEmail(ctx context.Context, email string) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx, `
		SELECT username FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&username)

	if err == sql.ErrNoRows {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("credentials: find by email: %w", err)
	}
	return username, nil
}

// FindByUsername returns the identity stored for username.
func (s *Service) FindByUsername(ctx context.Context, username string) (auth.Identity, error) {
	var (
		ident   auth.Identity
		changed sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT username, email, last_username_change
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username).Scan(&ident.Username, &ident.Email, &changed)

	if err == sql.ErrNoRows {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("credentials: find by username: %w", err)
	}

	if changed.Valid {
		ident.LastUsernameChange = changed.Time
	}
	return ident, nil
}

func (s *Service) recordFailure(clientID string) {
	// Re-auth paths pass an empty client id; those don't count toward
	// lockout.
	if s.failures != nil && clientID != "" {
		s.failures.RecordFailure(clientID)
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
