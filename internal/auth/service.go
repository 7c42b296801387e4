package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// UsernameCooldown is the minimum time between username changes.
const UsernameCooldown = 15 * 24 * time.Hour

// User-facing messages. Login failures stay generic so the response
// never reveals which field was wrong or whether the account exists.
const (
	msgInvalidLogin  = "invalid username or password"
	msgDuplicate     = "username or email already in use"
	msgUsernameTaken = "username already taken"
	msgNotLoggedIn   = "not logged in"
	msgWrongPassword = "current password incorrect"
	msgInvalidReset  = "invalid or expired reset code"
	msgNoAccount     = "no account found for that email"
	msgUnavailable   = "service unavailable, please try again later"
	msgMailerFailed  = "could not send reset email, please try again later"
	msgGoogleFailed  = "google sign-in failed, please try again"
	msgLoggedOut     = "logged out"
	msgResetCodeSent = "reset code sent"
	msgPasswordReset = "password updated"
	msgUsernameSet   = "username updated"
	msgSignedUp      = "account created"
	msgLoggedIn      = "logged in"
)

// Service orchestrates login, signup, Google sign-in, logout and the
// password/username maintenance flows. Every operation returns a
// Result; no collaborator error escapes this boundary.
type Service struct {
	creds    CredentialStore
	limiter  RateLimiter
	sessions SessionRegistry
	resets   ResetTokenStore
	mailer   Mailer
	oauth    OAuthFlow
	validate Validator
	now      func() time.Time

	mu      sync.Mutex
	current *Identity
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used for cooldowns and sweeps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires the service to its collaborators. oauth may be nil
// when Google sign-in is not configured.
func NewService(
	creds CredentialStore,
	limiter RateLimiter,
	sessions SessionRegistry,
	resets ResetTokenStore,
	mailer Mailer,
	oauth OAuthFlow,
	validate Validator,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		creds:    creds,
		limiter:  limiter,
		sessions: sessions,
		resets:   resets,
		mailer:   mailer,
		oauth:    oauth,
		validate: validate,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies a username/password pair for the given client id and
// issues a session on success.
func (s *Service) Login(ctx context.Context, username, password, clientID string) Result {
	if s.limiter.IsLockedOut(clientID) {
		mins := int(s.limiter.RemainingLockout(clientID).Seconds()) / 60
		return fail(CategoryAuth, fmt.Sprintf(
			"too many failed attempts, try again in %d minute(s)", mins))
	}

	canonical, err := s.creds.Authenticate(ctx, username, password, clientID)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return fail(CategoryAuth, msgInvalidLogin)
		}
		slog.Error("login failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}

	return s.startSession(ctx, canonical)
}

// Signup validates the fields, creates the account and logs the new
// user in. Duplicate username or email collapses into one message so
// the response cannot be used to enumerate accounts.
func (s *Service) Signup(ctx context.Context, username, email, password string) Result {
	if err := s.validate.Username(username); err != nil {
		return fail(CategoryValidation, err.Error())
	}
	if err := s.validate.Email(email); err != nil {
		return fail(CategoryValidation, err.Error())
	}
	if err := s.validate.Password(password); err != nil {
		return fail(CategoryValidation, err.Error())
	}

	if err := s.creds.CreateUser(ctx, username, password, email); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return fail(CategoryValidation, msgDuplicate)
		}
		slog.Error("signup failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}

	res := s.startSession(ctx, username)
	if res.Success {
		res.Message = msgSignedUp
	}
	return res
}

// GoogleSignIn runs the external OAuth flow and signs the verified
// email in, creating an OAuth-only account on first sight.
func (s *Service) GoogleSignIn(ctx context.Context) Result {
	if s.oauth == nil {
		return fail(CategoryService, msgGoogleFailed)
	}
	email, suggested, err := s.oauth.Authenticate(ctx)
	if err != nil {
		slog.Warn("google sign-in failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgGoogleFailed)
	}
	return s.CompleteGoogleSignIn(ctx, email, suggested)
}

// CompleteGoogleSignIn finishes a Google sign-in once the provider has
// verified the email. The HTTP callback calls this directly since the
// browser redirect happens outside the service.
func (s *Service) CompleteGoogleSignIn(ctx context.Context, email, suggestedUsername string) Result {
	username, err := s.creds.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		username, err = s.provisionOAuthAccount(ctx, email, suggestedUsername)
	}
	if err != nil {
		slog.Error("google account resolve failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}

	return s.startSession(ctx, username)
}

// provisionOAuthAccount creates an account with the empty-password
// sentinel, retrying with numeric suffixes when the suggested name is
// taken.
func (s *Service) provisionOAuthAccount(ctx context.Context, email, suggested string) (string, error) {
	if s.validate.Username(suggested) != nil {
		suggested = "user"
	}

	candidate := suggested
	for i := 0; i < 5; i++ {
		err := s.creds.CreateUser(ctx, candidate, "", email)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, ErrAlreadyExists) {
			return "", err
		}
		candidate = fmt.Sprintf("%s%d", suggested, i+1)
	}
	return "", fmt.Errorf("could not find free username for %s", suggested)
}

// Logout invalidates every session of the current user, not just the
// one in hand, and clears the current identity. Calling it while not
// logged in is a no-op.
func (s *Service) Logout() Result {
	s.mu.Lock()
	ident := s.current
	s.current = nil
	s.mu.Unlock()

	if ident != nil {
		s.sessions.InvalidateAllForUser(ident.Username)
	}
	return ok(msgLoggedOut)
}

// LogoutSession logs out whoever owns token, killing every one of
// their sessions. An unknown or expired token is a no-op.
func (s *Service) LogoutSession(token string) Result {
	username, found := s.sessions.UsernameFor(token)
	if !found {
		return ok(msgLoggedOut)
	}
	s.sessions.InvalidateAllForUser(username)

	s.mu.Lock()
	if s.current != nil && s.current.Username == username {
		s.current = nil
	}
	s.mu.Unlock()

	return ok(msgLoggedOut)
}

// RequestPasswordReset generates a reset code for the account owning
// email and dispatches it. The code is persisted only after the mailer
// confirms delivery, so a code nobody received can never be consumed.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) Result {
	username, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fail(CategoryAuth, msgNoAccount)
		}
		slog.Error("reset lookup failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}

	code, err := s.resets.Generate(username)
	if err != nil {
		slog.Error("reset code generation failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}

	body := fmt.Sprintf(
		"Your password reset code is %s. It can be used once.", code)
	if err := s.mailer.Send(ctx, email, "Password reset code", body); err != nil {
		slog.Warn("reset email dispatch failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return fail(CategoryService, msgMailerFailed)
	}

	if err := s.resets.Persist(code, username); err != nil {
		slog.Error("reset code persist failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}

	return ok(msgResetCodeSent)
}

// ResetPassword consumes a reset code and sets the new password. Every
// other session and outstanding code of the user dies with it.
func (s *Service) ResetPassword(ctx context.Context, code, newPassword string) Result {
	if err := s.validate.Password(newPassword); err != nil {
		return fail(CategoryValidation, err.Error())
	}

	username, consumed := s.resets.Consume(code)
	if !consumed {
		return fail(CategoryAuth, msgInvalidReset)
	}

	if err := s.creds.ChangePassword(ctx, username, newPassword); err != nil {
		slog.Error("password reset failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return fail(CategoryService, msgUnavailable)
	}

	s.resets.InvalidateAllForUser(username)
	s.sessions.InvalidateAllForUser(username)
	return ok(msgPasswordReset)
}

// ChangePasswordAs re-authenticates username's current password
// before committing the new one. HTTP handlers resolve username from
// the presented session; the session-less surface goes through
// ChangePassword.
func (s *Service) ChangePasswordAs(ctx context.Context, username, current, newPassword string) Result {
	if err := s.validate.Password(newPassword); err != nil {
		return fail(CategoryValidation, err.Error())
	}

	if _, err := s.creds.Authenticate(ctx, username, current, ""); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return fail(CategoryAuth, msgWrongPassword)
		}
		slog.Error("password re-auth failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}

	if err := s.creds.ChangePassword(ctx, username, newPassword); err != nil {
		slog.Error("password change failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}
	return ok(msgPasswordReset)
}

// ChangePassword is ChangePasswordAs for the current identity.
// Requires an active login.
func (s *Service) ChangePassword(ctx context.Context, current, newPassword string) Result {
	ident, logged := s.CurrentIdentity()
	if !logged {
		return fail(CategoryState, msgNotLoggedIn)
	}
	return s.ChangePasswordAs(ctx, ident.Username, current, newPassword)
}

// ChangeUsernameAs renames username, enforcing the 15-day cooldown
// recorded in the credential store. Old-name sessions die and a fresh
// session token for the new name is returned.
func (s *Service) ChangeUsernameAs(ctx context.Context, username, newUsername string) Result {
	ident, err := s.creds.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fail(CategoryState, msgNotLoggedIn)
		}
		slog.Error("identity load failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}

	if !ident.LastUsernameChange.IsZero() {
		elapsed := s.now().Sub(ident.LastUsernameChange)
		if elapsed < UsernameCooldown {
			days := int((UsernameCooldown - elapsed + 24*time.Hour - 1) / (24 * time.Hour))
			return fail(CategoryState, fmt.Sprintf(
				"username can be changed again in %d day(s)", days))
		}
	}

	if err := s.validate.Username(newUsername); err != nil {
		return fail(CategoryValidation, err.Error())
	}

	if err := s.creds.ChangeUsername(ctx, ident.Username, newUsername); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return fail(CategoryValidation, msgUsernameTaken)
		}
		slog.Error("username change failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}

	// Sessions are keyed by username; the old-name ones are now stale.
	s.sessions.InvalidateAllForUser(ident.Username)

	tok, err := s.sessions.Create(newUsername)
	if err != nil {
		slog.Error("session create failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}

	s.mu.Lock()
	if s.current != nil && s.current.Username == ident.Username {
		s.current = &Identity{
			Username:           newUsername,
			Email:              ident.Email,
			LastUsernameChange: s.now(),
		}
	}
	s.mu.Unlock()

	return okSession(msgUsernameSet, tok)
}

// ChangeUsername is ChangeUsernameAs for the current identity.
// Requires an active login.
func (s *Service) ChangeUsername(ctx context.Context, newUsername string) Result {
	ident, logged := s.CurrentIdentity()
	if !logged {
		return fail(CategoryState, msgNotLoggedIn)
	}
	return s.ChangeUsernameAs(ctx, ident.Username, newUsername)
}

// IsLoggedIn reports whether a current identity is held.
func (s *Service) IsLoggedIn() bool {
	_, logged := s.CurrentIdentity()
	return logged
}

// CurrentUsername returns the logged-in username, or empty.
func (s *Service) CurrentUsername() string {
	ident, logged := s.CurrentIdentity()
	if !logged {
		return ""
	}
	return ident.Username
}

// CurrentIdentity returns a copy of the current identity.
func (s *Service) CurrentIdentity() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Identity{}, false
	}
	return *s.current, true
}

// UsernameForSession resolves the user owning a live session token
// without extending it.
func (s *Service) UsernameForSession(token string) (string, bool) {
	return s.sessions.UsernameFor(token)
}

// ValidateSession reports whether token names a live session,
// extending its expiry when it does.
func (s *Service) ValidateSession(token string) bool {
	return s.sessions.ValidateAndExtend(token)
}

// InvalidateSession removes a single session token.
func (s *Service) InvalidateSession(token string) {
	s.sessions.Invalidate(token)
}

// CleanupExpiredSessions sweeps expired sessions and returns the count
// removed.
func (s *Service) CleanupExpiredSessions() int {
	return s.sessions.SweepExpired(s.now())
}

// startSession loads the identity for username, stores it as current
// and mints a session token.
func (s *Service) startSession(ctx context.Context, username string) Result {
	ident, err := s.creds.FindByUsername(ctx, username)
	if err != nil {
		slog.Error("identity load failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return fail(CategoryService, msgUnavailable)
	}

	tok, err := s.sessions.Create(ident.Username)
	if err != nil {
		slog.Error("session create failed", slog.String("error", err.Error()))
		return fail(CategoryService, msgUnavailable)
	}

	s.mu.Lock()
	s.current = &ident
	s.mu.Unlock()

	return okSession(msgLoggedIn, tok)
}
