package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/middleware"
	ws "github.com/thereayou/chatsync/internal/websocket"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub      *ws.Hub
	chats    *ChatFactory
	authn    middleware.Authenticator
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler создает новый WebSocket handler. checkOrigin nil
// пропускает любой origin.
func NewWebSocketHandler(hub *ws.Hub, chats *ChatFactory, authn middleware.Authenticator, logger zerolog.Logger, checkOrigin func(*http.Request) bool) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		hub:   hub,
		chats: chats,
		authn: authn,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleWebSocket открывает соединение. Без токена оно анонимное:
// подписки на пользовательские данные отдают пустые снимки до кадра auth.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := middleware.UserID(c)

	session := identity.NewSession()
	if userID != "" {
		if err := session.SignIn(userID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
	}
	chatClient, err := h.chats.New(session)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		chatClient.Close()
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	client.OnClose(chatClient.Close)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(&connection{
		hub:     h.hub,
		client:  client,
		session: session,
		chat:    chatClient,
		authn:   h.authn,
	})
}
