package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gradeauth/internal/auth"
	"gradeauth/internal/auth/provider"
)

// SessionTokenKey is the gin context key the auth middleware stores
// the validated session token under; protected handlers resolve the
// acting user from it.
const SessionTokenKey = "sessionToken"

// Handler exposes the authentication service over HTTP.
type Handler struct {
	svc            *auth.Service
	providers      *provider.Registry
	sessionTimeout time.Duration
}

// NewHandler creates the HTTP handler. sessionTimeout controls the
// session cookie lifetime and must match the registry's timeout.
func NewHandler(
	svc *auth.Service,
	providers *provider.Registry,
	sessionTimeout time.Duration,
) *Handler {
	return &Handler{
		svc:            svc,
		providers:      providers,
		sessionTimeout: sessionTimeout,
	}
}

// RegisterRoutes mounts the public authentication routes. loginGuard
// is applied to the credential-guessing endpoints.
func (h *Handler) RegisterRoutes(r *gin.Engine, loginGuard gin.HandlerFunc) {
	guarded := r.Group("/")
	if loginGuard != nil {
		guarded.Use(loginGuard)
	}
	guarded.POST("/auth/login", h.Login)
	guarded.POST("/auth/password-reset/request", h.RequestReset)
	guarded.POST("/auth/password-reset/complete", h.CompleteReset)

	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/logout", h.Logout)

	r.GET("/oauth/login/:provider", h.oauthLogin)
	r.GET("/oauth/callback/:provider", h.oauthCallback)
}

// RegisterProtectedRoutes mounts routes requiring a live session.
func (h *Handler) RegisterProtectedRoutes(g *gin.RouterGroup) {
	g.POST("/auth/password/change", h.ChangePassword)
	g.POST("/auth/username/change", h.ChangeUsername)
	g.GET("/me", h.Me)
}

// actingUser resolves the user owning the session the middleware
// validated. Protected operations act on this user, never on whoever
// authenticated last elsewhere in the process. A false return aborts
// the request; the session died between middleware and handler.
func (h *Handler) actingUser(c *gin.Context) (string, bool) {
	username, ok := h.svc.UsernameForSession(c.GetString(SessionTokenKey))
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return username, ok
}

// statusFor maps a result category to an HTTP status.
func statusFor(res auth.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Category {
	case auth.CategoryValidation:
		return http.StatusBadRequest
	case auth.CategoryAuth:
		return http.StatusUnauthorized
	case auth.CategoryState:
		return http.StatusConflict
	case auth.CategoryService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respond writes the result as JSON. A session-carrying success also
// issues the session cookie; the token itself never appears in the
// body.
func (h *Handler) respond(c *gin.Context, res auth.Result) {
	if res.Success && res.SessionToken != "" {
		SetSessionCookie(c.Writer, res.SessionToken, time.Now().Add(h.sessionTimeout))
	}

	if res.Success {
		c.JSON(http.StatusOK, gin.H{"status": res.Message})
		return
	}
	c.JSON(statusFor(res), gin.H{"error": res.Message})
}
