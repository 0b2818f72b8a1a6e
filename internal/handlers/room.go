package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/thereayou/chatsync/internal/chat"
	"github.com/thereayou/chatsync/internal/handlers/dto"
	"github.com/thereayou/chatsync/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type RoomHandler struct {
	chats *ChatFactory
}

func NewRoomHandler(chats *ChatFactory) *RoomHandler {
	return &RoomHandler{chats: chats}
}

// CreateDirectRoom находит или создаёт личную комнату с пользователем
func (h *RoomHandler) CreateDirectRoom(c *gin.Context) {
	var req dto.CreateDirectRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := h.chats.forRequest(c)
	if !ok {
		return
	}
	defer client.Close()

	ctx := c.Request.Context()
	other, err := client.FetchUser(ctx, req.UserID, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	room, err := client.CreateDirectRoom(ctx, other, req.Metadata)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) CreateGroupRoom(c *gin.Context) {
	var req dto.CreateGroupRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := h.chats.forRequest(c)
	if !ok {
		return
	}
	defer client.Close()

	ctx := c.Request.Context()
	users := make([]models.User, len(req.UserIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range req.UserIDs {
		i, id := i, id
		g.Go(func() error {
			u, err := client.FetchUser(gctx, id, nil)
			if err != nil {
				return err
			}
			users[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeError(c, err)
		return
	}

	room, err := client.CreateGroupRoom(ctx, req.Name, users, req.ImageURL, req.Metadata)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// GetRoom комната с разрешёнными участниками; только для участников
func (h *RoomHandler) GetRoom(c *gin.Context) {
	client, ok := h.chats.forRequest(c)
	if !ok {
		return
	}
	defer client.Close()

	room, err := client.FetchRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// GetRoomMessages последние сообщения комнаты, новые первыми
func (h *RoomHandler) GetRoomMessages(c *gin.Context) {
	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxHistoryLimit {
			limit = parsed
		}
	}

	client, ok := h.chats.forRequest(c)
	if !ok {
		return
	}
	defer client.Close()

	ctx := c.Request.Context()
	room, err := client.FetchRoom(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	messages, err := client.FetchMessages(ctx, room, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"has_more": len(messages) == limit,
	})
}

// roomOf общая проверка членства для обработчиков сообщений
func roomOf(c *gin.Context, client *chat.Client) (models.Room, bool) {
	room, err := client.FetchRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return models.Room{}, false
	}
	return room, true
}
