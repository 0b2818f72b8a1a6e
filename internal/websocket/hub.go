package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thereayou/chatsync/internal/metrics"
)

// MessageType определяет типы кадров
type MessageType string

const (
	// Кадры клиента
	TypeSubscribe MessageType = "subscribe"
	TypeRelease   MessageType = "release"
	TypeAuth      MessageType = "auth"
	TypePong      MessageType = "pong"

	// Кадры сервера
	TypeSnapshot MessageType = "snapshot"
	TypeReleased MessageType = "released"
	TypeError    MessageType = "error"
	TypeIdentity MessageType = "identity"

	// Присутствие
	TypeUserOnline  MessageType = "user_online"
	TypeUserOffline MessageType = "user_offline"
)

// Message один кадр в обе стороны. ID выбирает клиент при subscribe,
// сервер повторяет его во всех кадрах этой подписки.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type Hub struct {
	clients map[string]*Client

	// Клиенты по UserID (один пользователь может иметь несколько соединений)
	userClients map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client

	mu  sync.RWMutex
	log zerolog.Logger

	// вызывается, когда у пользователя закрылось последнее соединение
	onOffline func(userID string)

	ctx    context.Context
	cancel context.CancelFunc
}

type HubOption func(*Hub)

func WithOfflineHook(fn func(userID string)) HubOption {
	return func(h *Hub) {
		h.onOffline = fn
	}
}

func NewHub(logger zerolog.Logger, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:     make(map[string]*Client),
		userClients: make(map[string]map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		log:         logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run запускает hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Stop останавливает hub и закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.Close()
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.Close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	userID := client.UserID()
	online := h.attachUnsafe(client, userID)
	h.mu.Unlock()

	metrics.WebsocketConnections.Inc()
	h.log.Debug().Str("client_id", client.ID).Str("user_id", userID).Msg("client registered")
	if online {
		h.notifyUserStatus(userID, TypeUserOnline)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	userID := client.UserID()
	offline := h.detachUnsafe(client, userID)
	h.mu.Unlock()

	client.Close()
	metrics.WebsocketConnections.Dec()
	h.log.Debug().Str("client_id", client.ID).Str("user_id", userID).Msg("client unregistered")
	if offline {
		h.wentOffline(userID)
	}
}

// Rebind переносит соединение к другому пользователю после кадра auth
func (h *Hub) Rebind(client *Client, userID string) {
	h.mu.Lock()
	prev := client.UserID()
	if prev == userID {
		h.mu.Unlock()
		return
	}
	_, registered := h.clients[client.ID]
	var offline, online bool
	if registered {
		offline = h.detachUnsafe(client, prev)
	}
	client.setUserID(userID)
	if registered {
		online = h.attachUnsafe(client, userID)
	}
	h.mu.Unlock()

	if offline {
		h.wentOffline(prev)
	}
	if online {
		h.notifyUserStatus(userID, TypeUserOnline)
	}
}

// attachUnsafe возвращает true, если это первое соединение пользователя
func (h *Hub) attachUnsafe(client *Client, userID string) bool {
	if userID == "" {
		return false
	}
	set, ok := h.userClients[userID]
	if !ok {
		set = make(map[string]*Client)
		h.userClients[userID] = set
	}
	set[client.ID] = client
	return !ok
}

// detachUnsafe возвращает true, если это было последнее соединение пользователя
func (h *Hub) detachUnsafe(client *Client, userID string) bool {
	set, ok := h.userClients[userID]
	if !ok {
		return false
	}
	delete(set, client.ID)
	if len(set) > 0 {
		return false
	}
	delete(h.userClients, userID)
	return true
}

func (h *Hub) wentOffline(userID string) {
	h.notifyUserStatus(userID, TypeUserOffline)
	if h.onOffline != nil {
		go h.onOffline(userID)
	}
}

// SendToUser отправляет кадр во все соединения пользователя
func (h *Hub) SendToUser(userID string, msg Message, data any) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.userClients[userID]))
	for _, client := range h.userClients[userID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.SendMessage(msg, data); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("send to user failed")
		}
	}
}

// notifyUserStatus рассылает присутствие всем вошедшим клиентам
func (h *Hub) notifyUserStatus(userID string, status MessageType) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		if client.UserID() != "" {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	msg := Message{Type: status, UserID: userID}
	for _, client := range targets {
		_ = client.SendMessage(msg, nil)
	}
}

// OnlineUsers пользователи, у которых есть хотя бы одно соединение
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.userClients))
	for userID := range h.userClients {
		users = append(users, userID)
	}
	return users
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.userClients[userID]
	return ok
}
