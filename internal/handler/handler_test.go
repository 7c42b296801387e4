package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradeauth/internal/auth"
	"gradeauth/internal/auth/provider"
	"gradeauth/internal/auth/validate"
	"gradeauth/internal/handler"
	"gradeauth/internal/middleware"
	"gradeauth/internal/reset"
	"gradeauth/internal/session"
	"gradeauth/internal/token"
)

// memCreds is an in-memory credential store for HTTP tests.
type memCreds struct {
	users   map[string]string // username -> password
	email   map[string]string // email -> username
	renamed map[string]time.Time
}

func (m *memCreds) Authenticate(_ context.Context, username, password, _ string) (string, error) {
	if pw, ok := m.users[username]; ok && pw != "" && pw == password {
		return username, nil
	}
	return "", auth.ErrInvalidCredentials
}

func (m *memCreds) CreateUser(_ context.Context, username, password, email string) error {
	if _, ok := m.users[username]; ok {
		return auth.ErrAlreadyExists
	}
	if _, ok := m.email[email]; ok {
		return auth.ErrAlreadyExists
	}
	m.users[username] = password
	m.email[email] = username
	return nil
}

func (m *memCreds) ChangePassword(_ context.Context, username, newPassword string) error {
	m.users[username] = newPassword
	return nil
}

func (m *memCreds) ChangeUsername(_ context.Context, oldName, newName string) error {
	if _, ok := m.users[newName]; ok {
		return auth.ErrAlreadyExists
	}
	m.users[newName] = m.users[oldName]
	delete(m.users, oldName)
	m.renamed[newName] = time.Now()
	return nil
}

func (m *memCreds) FindByEmail(_ context.Context, email string) (string, error) {
	if u, ok := m.email[email]; ok {
		return u, nil
	}
	return "", auth.ErrNotFound
}

func (m *memCreds) FindByUsername(_ context.Context, username string) (auth.Identity, error) {
	if _, ok := m.users[username]; !ok {
		return auth.Identity{}, auth.ErrNotFound
	}
	return auth.Identity{
		Username:           username,
		LastUsernameChange: m.renamed[username],
	}, nil
}

type openLimiter struct{}

func (openLimiter) IsLockedOut(string) bool               { return false }
func (openLimiter) RemainingLockout(string) time.Duration { return 0 }

type noopMailer struct{}

func (noopMailer) Send(context.Context, string, string, string) error { return nil }

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := session.NewRegistry(token.NewGenerator())
	resets, err := reset.NewStore(token.NewGenerator(), nil)
	require.NoError(t, err)

	svc := auth.NewService(
		&memCreds{
			users:   map[string]string{},
			email:   map[string]string{},
			renamed: map[string]time.Time{},
		},
		openLimiter{},
		sessions,
		resets,
		noopMailer{},
		nil,
		validate.NewRules(),
	)

	h := handler.NewHandler(svc, provider.NewRegistry(), 30*time.Minute)

	r := gin.New()
	h.RegisterRoutes(r, nil)

	api := r.Group("/api")
	api.Use(middleware.RequireAuth(svc))
	h.RegisterProtectedRoutes(api)

	return r
}

func doJSON(r *gin.Engine, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == handler.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func TestSignupIssuesSessionCookie(t *testing.T) {
	r := newRouter(t)

	w := doJSON(r, http.MethodPost, "/auth/signup",
		`{"username":"alice","email":"a@x.com","password":"Secret123!"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	c := sessionCookie(t, w)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.HttpOnly)
}

func TestLoginStatuses(t *testing.T) {
	r := newRouter(t)
	doJSON(r, http.MethodPost, "/auth/signup",
		`{"username":"alice","email":"a@x.com","password":"Secret123!"}`)

	t.Run("bad credentials are 401", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/auth/login",
			`{"username":"alice","password":"wrong1234"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/auth/login", `{notjson`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("valid login is 200 with cookie", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/auth/login",
			`{"username":"alice","password":"Secret123!"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		sessionCookie(t, w)
	})
}

func TestValidationStatus(t *testing.T) {
	r := newRouter(t)

	w := doJSON(r, http.MethodPost, "/auth/signup",
		`{"username":"al","email":"a@x.com","password":"Secret123!"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProtectedRoutes(t *testing.T) {
	r := newRouter(t)

	t.Run("rejects without a session", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("accepts a live session cookie", func(t *testing.T) {
		signup := doJSON(r, http.MethodPost, "/auth/signup",
			`{"username":"alice","email":"a@x.com","password":"Secret123!"}`)
		require.Equal(t, http.StatusOK, signup.Code)

		w := doJSON(r, http.MethodGet, "/api/me", "", sessionCookie(t, signup))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "alice")
	})
}

func TestLogoutIsIdempotent(t *testing.T) {
	r := newRouter(t)

	w := doJSON(r, http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	// cookie cleared
	for _, c := range w.Result().Cookies() {
		if c.Name == handler.CookieName {
			assert.Equal(t, -1, c.MaxAge)
		}
	}
}

func TestProtectedRoutesActOnCookieOwner(t *testing.T) {
	r := newRouter(t)

	alice := doJSON(r, http.MethodPost, "/auth/signup",
		`{"username":"alice","email":"a@x.com","password":"Secret123!"}`)
	require.Equal(t, http.StatusOK, alice.Code)
	aliceCookie := sessionCookie(t, alice)

	// bob signs up last, so the process-wide identity is his.
	bob := doJSON(r, http.MethodPost, "/auth/signup",
		`{"username":"bob","email":"b@x.com","password":"Hunter456!"}`)
	require.Equal(t, http.StatusOK, bob.Code)
	bobCookie := sessionCookie(t, bob)

	t.Run("me reports the cookie's user, not the last login", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/me", "", aliceCookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "alice")
		assert.NotContains(t, w.Body.String(), "bob")
	})

	t.Run("password change applies to the cookie's user", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/auth/password/change",
			`{"current_password":"Hunter456!","new_password":"NewHunter456"}`, bobCookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		// alice's password is untouched
		aliceLogin := doJSON(r, http.MethodPost, "/auth/login",
			`{"username":"alice","password":"Secret123!"}`)
		assert.Equal(t, http.StatusOK, aliceLogin.Code)
		bobLogin := doJSON(r, http.MethodPost, "/auth/login",
			`{"username":"bob","password":"NewHunter456"}`)
		assert.Equal(t, http.StatusOK, bobLogin.Code)
	})

	t.Run("username change renames the cookie's user", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/auth/username/change",
			`{"username":"mallory"}`, aliceCookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		aliceCookie = sessionCookie(t, w)

		// bob keeps his name; alice's old name is gone
		bobLogin := doJSON(r, http.MethodPost, "/auth/login",
			`{"username":"bob","password":"NewHunter456"}`)
		assert.Equal(t, http.StatusOK, bobLogin.Code)
		oldName := doJSON(r, http.MethodPost, "/auth/login",
			`{"username":"alice","password":"Secret123!"}`)
		assert.Equal(t, http.StatusUnauthorized, oldName.Code)
		newName := doJSON(r, http.MethodPost, "/auth/login",
			`{"username":"mallory","password":"Secret123!"}`)
		assert.Equal(t, http.StatusOK, newName.Code)
	})

	t.Run("logout kills only the cookie's user sessions", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/auth/logout", "", aliceCookie)
		require.Equal(t, http.StatusNoContent, w.Code)

		gone := doJSON(r, http.MethodGet, "/api/me", "", aliceCookie)
		assert.Equal(t, http.StatusUnauthorized, gone.Code)
		kept := doJSON(r, http.MethodGet, "/api/me", "", bobCookie)
		assert.Equal(t, http.StatusOK, kept.Code)
	})
}

func TestChangeUsernameCooldownStatus(t *testing.T) {
	r := newRouter(t)

	signup := doJSON(r, http.MethodPost, "/auth/signup",
		`{"username":"alice","email":"a@x.com","password":"Secret123!"}`)
	require.Equal(t, http.StatusOK, signup.Code)
	cookie := sessionCookie(t, signup)

	first := doJSON(r, http.MethodPost, "/api/auth/username/change",
		`{"username":"alice_two"}`, cookie)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	// The rename invalidated the old session; use the fresh cookie.
	cookie = sessionCookie(t, first)

	second := doJSON(r, http.MethodPost, "/api/auth/username/change",
		`{"username":"alice_three"}`, cookie)
	assert.Equal(t, http.StatusConflict, second.Code)
}
