package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/thereayou/chatsync/internal/chat"
	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/services"
	"github.com/thereayou/chatsync/pkg/auth"
)

// ChatFactory создаёт chat.Client поверх общего хранилища
type ChatFactory struct {
	store docstore.Store
	cfg   chat.Config
	log   zerolog.Logger
}

func NewChatFactory(store docstore.Store, cfg chat.Config, logger zerolog.Logger) *ChatFactory {
	return &ChatFactory{store: store, cfg: cfg, log: logger}
}

func (f *ChatFactory) New(provider identity.Provider) (*chat.Client, error) {
	return chat.New(f.store, provider, f.cfg, chat.WithLogger(f.log))
}

// forRequest клиент от имени пользователя запроса; вызывающий закрывает его
func (f *ChatFactory) forRequest(c *gin.Context) (*chat.Client, bool) {
	client, err := f.New(identity.Fixed(middleware.UserID(c)))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return client, true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrNotMember), errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrUnauthenticated),
		errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrTokenRevoked),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrInvalidMessage),
		errors.Is(err, chat.ErrEmptyRoomName),
		errors.Is(err, chat.ErrEmptyUserID),
		errors.Is(err, chat.ErrSelfDirectRoom):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError отвечает JSON-ошибкой; внутренние подробности не уходят клиенту
func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
