package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) oauthLogin(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "unknown oauth provider",
			"available": h.providers.Names(),
		})
		return
	}

	ticket := newOAuthTicket(c)
	c.Redirect(http.StatusFound, p.AuthCodeURL(ticket.State, ticket.Challenge))
}

func (h *Handler) oauthCallback(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	if !matchOAuthState(c) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "invalid state",
		})
		return
	}

	// The provider can bounce back an error instead of a code, e.g.
	// when the user cancels the consent screen.
	if errParam := c.Query("error"); errParam != "" {
		slog.Warn("oauth callback returned error",
			slog.String("provider", providerName),
			slog.String("error", errParam),
			slog.String("desc", c.Query("error_description")),
		)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "sign-in was cancelled",
		})
		return
	}

	code := c.Query("code")
	if code == "" {
		slog.Error("oauth callback missing code and error")
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	codeVerifier := oauthVerifier(c)
	if codeVerifier == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "missing pkce verifier",
		})
		return
	}

	identity, err := p.ExchangeCode(
		c.Request.Context(),
		code,
		codeVerifier,
	)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "authentication failed",
		})
		return
	}

	res := h.svc.CompleteGoogleSignIn(
		c.Request.Context(),
		identity.Email,
		identity.SuggestedUsername,
	)
	h.respond(c, res)
}
