package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gradeauth/internal/handler"
)

// SessionValidator validates (and slides) a session token.
type SessionValidator interface {
	ValidateSession(token string) bool
}

// RequireAuth rejects requests without a live session cookie. A valid
// request has its session expiry extended as a side effect, so
// activity keeps a session alive.
func RequireAuth(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Request.Cookie(handler.CookieName)
		if err != nil || cookie.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if !sessions.ValidateSession(cookie.Value) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(handler.SessionTokenKey, cookie.Value)
		c.Next()
	}
}
