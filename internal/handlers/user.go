package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/services"
)

type UserHandler struct {
	chats *ChatFactory
	auth  *services.AuthService
}

func NewUserHandler(chats *ChatFactory, authService *services.AuthService) *UserHandler {
	return &UserHandler{chats: chats, auth: authService}
}

// GetMe возвращает профиль текущего пользователя
func (h *UserHandler) GetMe(c *gin.Context) {
	h.respondUser(c, middleware.UserID(c))
}

// GetUser возвращает профиль по ID
func (h *UserHandler) GetUser(c *gin.Context) {
	h.respondUser(c, c.Param("id"))
}

func (h *UserHandler) respondUser(c *gin.Context, id string) {
	client, ok := h.chats.forRequest(c)
	if !ok {
		return
	}
	defer client.Close()

	user, err := client.FetchUser(c.Request.Context(), id, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser удаляет свою учётную запись; чужую удалить нельзя
func (h *UserHandler) DeleteUser(c *gin.Context) {
	uid := middleware.UserID(c)
	if c.Param("id") != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "can only delete your own account"})
		return
	}

	ctx := c.Request.Context()
	if err := h.auth.DeleteAccount(ctx, uid); err != nil {
		writeError(c, err)
		return
	}
	if err := h.auth.Logout(ctx, c.GetString(middleware.TokenKey)); err != nil {
		_ = c.Error(err)
	}
	c.Status(http.StatusNoContent)
}
