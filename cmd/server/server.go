package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/thereayou/chatsync/internal/chat"
	"github.com/thereayou/chatsync/internal/config"
	"github.com/thereayou/chatsync/internal/database"
	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/handlers"
	"github.com/thereayou/chatsync/internal/services"
	ws "github.com/thereayou/chatsync/internal/websocket"
	"github.com/thereayou/chatsync/pkg/auth"
)

const shutdownTimeout = 30 * time.Second

type Server struct {
	Config     *config.Config
	Log        zerolog.Logger
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Hub        *ws.Hub
}

// NewLogger консольный вывод в development, JSON в остальных окружениях
func NewLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func NewServer(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	gormDB, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connect failed: %w", err)
	}

	var (
		rdb      *redis.Client
		notifier docstore.Notifier
		revoker  services.TokenRevoker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis connect failed: %w", err)
		}
		notifier = database.NewRedisNotifier(rdb, logger)
		revoker = services.NewRedisRevoker(rdb)
	} else {
		logger.Warn().Msg("REDIS_URL not set: change notifications and token blacklist stay in process")
		revoker = services.NewMemoryRevoker()
	}

	db := database.NewDatabase(gormDB, notifier, database.WithLogger(logger.With().Str("component", "store").Logger()))

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn().Msg("JWT_SECRET not set, using development secret")
		secret = "dev-secret"
	}
	jwtMgr := auth.NewJWTManager(secret, cfg.TokenTTL)

	chatLog := logger.With().Str("component", "chat").Logger()
	users := chat.NewUserRepository(db, cfg.Chat)
	authService := services.NewAuthService(db, users, jwtMgr, revoker, logger.With().Str("component", "auth").Logger())
	chats := handlers.NewChatFactory(db, cfg.Chat, chatLog)

	// последнее закрытое соединение пользователя обновляет lastSeen
	hub := ws.NewHub(logger.With().Str("component", "hub").Logger(), ws.WithOfflineHook(func(userID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		authService.Touch(ctx, userID)
	}))

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	APIEndpoints(router, logger, routes{
		auth:     handlers.NewAuthHandler(authService),
		users:    handlers.NewUserHandler(chats, authService),
		rooms:    handlers.NewRoomHandler(chats),
		messages: handlers.NewHTTPMessageHandler(chats),
		ws:       handlers.NewWebSocketHandler(hub, chats, authService, logger.With().Str("component", "ws").Logger(), nil),
		authn:    authService,
		health:   healthCheck(gormDB.DB, rdb),
	})

	return &Server{
		Config:     cfg,
		Log:        logger,
		Router:     router,
		DB:         db,
		Redis:      rdb,
		JWTManager: jwtMgr,
		Hub:        hub,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем завершает работу
func (s *Server) Run(ctx context.Context) error {
	go s.Hub.Run()

	srv := &http.Server{
		Addr:         ":" + s.Config.Port,
		Handler:      s.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info().Str("port", s.Config.Port).Str("env", s.Config.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server run error: %w", err)
		}
	case <-ctx.Done():
	}

	s.Log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.Hub.Stop()
	err := srv.Shutdown(shutdownCtx)
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if sqlDB, dbErr := s.DB.DB().DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.Log.Info().Msg("server stopped")
	return nil
}
