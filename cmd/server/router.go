package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/thereayou/chatsync/internal/handlers"
	"github.com/thereayou/chatsync/internal/middleware"
)

type routes struct {
	auth     *handlers.AuthHandler
	users    *handlers.UserHandler
	rooms    *handlers.RoomHandler
	messages *handlers.HTTPMessageHandler
	ws       *handlers.WebSocketHandler
	authn    middleware.Authenticator
	health   gin.HandlerFunc
}

func APIEndpoints(r *gin.Engine, logger zerolog.Logger, h routes) {
	r.Use(gin.Recovery(), middleware.Logger(logger), middleware.Metrics())

	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", middleware.WSAuthMiddleware(h.authn), h.ws.HandleWebSocket)

	// Auth endpoints
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.auth.Register)
		auth.POST("/login", h.auth.Login)
		auth.POST("/logout", middleware.AuthMiddleware(h.authn), h.auth.Logout)
	}

	// API endpoints
	api := r.Group("/api/v1", middleware.AuthMiddleware(h.authn))
	{
		api.GET("/users/me", h.users.GetMe)
		api.GET("/users/:id", h.users.GetUser)
		api.DELETE("/users/:id", h.users.DeleteUser)

		api.POST("/rooms/direct", h.rooms.CreateDirectRoom)
		api.POST("/rooms/group", h.rooms.CreateGroupRoom)
		api.GET("/rooms/:id", h.rooms.GetRoom)
		api.GET("/rooms/:id/messages", h.rooms.GetRoomMessages)
		api.POST("/rooms/:id/messages", h.messages.SendMessage)
		api.PATCH("/rooms/:id/messages/:messageId", h.messages.UpdateMessage)
	}
}

// healthCheck пингует базу и, если настроен, Redis
func healthCheck(sqlDB func() (*sql.DB, error), rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"database": "ok"}
		healthy := true
		if db, err := sqlDB(); err != nil || db.PingContext(ctx) != nil {
			status["database"] = "unavailable"
			healthy = false
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				status["redis"] = "unavailable"
				healthy = false
			}
		}

		if !healthy {
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
