package handler

import (
	"net/http"
	"time"
)

// CookieName is the session cookie. The __Host- prefix pins it to the
// issuing host, Secure, Path=/.
const CookieName = "__Host-session"

// SetSessionCookie issues the session cookie. The policy is fixed:
// HttpOnly, Secure, SameSite=Lax, host-wide path.
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
