package handler

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// The browser OAuth flow spans two requests. The state nonce and the
// PKCE verifier are minted on /oauth/login and carried to the callback
// in short-lived cookies; the callback must present both.
const (
	oauthStateCookie    = "__oauth_state"
	oauthVerifierCookie = "__oauth_pkce"
	oauthFlowTTL        = 5 * time.Minute
)

// oauthTicket holds the values embedded in the authorization URL.
type oauthTicket struct {
	State     string
	Challenge string // S256 challenge for the cookie-held verifier
}

// newOAuthTicket mints state and PKCE material for one flow and sets
// the flow cookies on the response.
func newOAuthTicket(c *gin.Context) oauthTicket {
	state := randomURLToken()
	verifier := randomURLToken()
	sum := sha256.Sum256([]byte(verifier))

	setFlowCookie(c, oauthStateCookie, state)
	setFlowCookie(c, oauthVerifierCookie, verifier)

	return oauthTicket{
		State:     state,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
	}
}

// matchOAuthState reports whether the callback's state parameter
// matches the cookie set when the flow started.
func matchOAuthState(c *gin.Context) bool {
	state := c.Query("state")
	if state == "" {
		return false
	}
	cookie, err := c.Request.Cookie(oauthStateCookie)
	return err == nil && cookie.Value == state
}

// oauthVerifier returns the PKCE verifier carried by the flow cookie,
// or empty if the cookie is missing.
func oauthVerifier(c *gin.Context) string {
	cookie, err := c.Request.Cookie(oauthVerifierCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func randomURLToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func setFlowCookie(c *gin.Context, name, value string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthFlowTTL.Seconds()),
	})
}
