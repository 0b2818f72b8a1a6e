package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/chatsync/internal/handlers/dto"
	"github.com/thereayou/chatsync/internal/models"
)

type HTTPMessageHandler struct {
	chats *ChatFactory
}

func NewHTTPMessageHandler(chats *ChatFactory) *HTTPMessageHandler {
	return &HTTPMessageHandler{chats: chats}
}

// SendMessage отправляет сообщение через HTTP; подписчики получат его снимком
func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	var req models.PartialMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := h.chats.forRequest(c)
	if !ok {
		return
	}
	defer client.Close()

	room, ok := roomOf(c, client)
	if !ok {
		return
	}
	id, err := client.SendMessage(c.Request.Context(), room, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.SendMessageResponse{ID: id})
}

// UpdateMessage правит своё сообщение
func (h *HTTPMessageHandler) UpdateMessage(c *gin.Context) {
	var req dto.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := h.chats.forRequest(c)
	if !ok {
		return
	}
	defer client.Close()

	room, ok := roomOf(c, client)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	msg, err := client.FetchMessage(ctx, room, c.Param("messageId"))
	if err != nil {
		writeError(c, err)
		return
	}

	if req.Text != nil {
		msg.Text = *req.Text
	}
	if req.Status != nil {
		status, ok := models.ParseMessageStatus(*req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		msg.Status = &status
	}
	if req.Metadata != nil {
		msg.Metadata = req.Metadata
	}
	if req.PreviewData != nil {
		msg.PreviewData = req.PreviewData
	}

	updated, err := client.UpdateMessage(ctx, room, msg)
	if err != nil {
		writeError(c, err)
		return
	}
	if !updated {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the author can edit a message"})
		return
	}
	c.Status(http.StatusNoContent)
}
