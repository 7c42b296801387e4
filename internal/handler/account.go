package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res := h.svc.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	h.respond(c, res)
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res := h.svc.Signup(c.Request.Context(), req.Username, req.Email, req.Password)
	h.respond(c, res)
}

func (h *Handler) Logout(c *gin.Context) {
	// Logout everywhere for whoever the presented cookie belongs to.
	if cookie, err := c.Request.Cookie(CookieName); err == nil && cookie.Value != "" {
		h.svc.LogoutSession(cookie.Value)
	}

	ClearSessionCookie(c.Writer)

	// Idempotent: logging out while logged out is fine.
	c.Status(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	username, ok := h.actingUser(c)
	if !ok {
		return
	}

	res := h.svc.ChangePasswordAs(c.Request.Context(), username, req.CurrentPassword, req.NewPassword)
	h.respond(c, res)
}

type changeUsernameRequest struct {
	Username string `json:"username"`
}

func (h *Handler) ChangeUsername(c *gin.Context) {
	var req changeUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	username, ok := h.actingUser(c)
	if !ok {
		return
	}

	res := h.svc.ChangeUsernameAs(c.Request.Context(), username, req.Username)
	h.respond(c, res)
}

func (h *Handler) Me(c *gin.Context) {
	username, ok := h.actingUser(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username": username,
	})
}
