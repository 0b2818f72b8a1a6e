package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/chatsync/internal/handlers/dto"
	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/models"
	"github.com/thereayou/chatsync/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile := models.User{FirstName: &req.FirstName, ImageURL: req.ImageURL}
	if req.LastName != "" {
		profile.LastName = &req.LastName
	}

	sess, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, profile)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAuthResponse(sess))
}

// Login выдаёт JWT и обновляет lastSeen
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuthResponse(sess))
}

// Logout ставит токен в черный список до истечения
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), c.GetString(middleware.TokenKey)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func toAuthResponse(sess *services.Session) dto.AuthResponse {
	return dto.AuthResponse{UID: sess.UserID, Token: sess.Token, TokenExpiresAt: sess.ExpiresAt}
}
