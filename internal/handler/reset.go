package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type resetRequest struct {
	Email string `json:"email"`
}

func (h *Handler) RequestReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res := h.svc.RequestPasswordReset(c.Request.Context(), req.Email)
	h.respond(c, res)
}

type resetCompleteRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) CompleteReset(c *gin.Context) {
	var req resetCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res := h.svc.ResetPassword(c.Request.Context(), req.Code, req.NewPassword)
	h.respond(c, res)
}
