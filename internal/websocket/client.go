package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер кадра
	maxMessageSize = 512 * 1024 // 512KB

	sendBuffer = 256
)

type ClientMessageHandler interface {
	HandleMessage(client *Client, msg *Message) error
}

// Releaser подписка, которую соединение держит до release или закрытия
type Releaser interface {
	Release()
}

type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub

	log       zerolog.Logger
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	userID   string
	subs     map[string]Releaser
	closers  []func()
	released bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		Hub:    hub,
		log:    hub.log.With().Str("client_id", id).Logger(),
		done:   make(chan struct{}),
		userID: userID,
		subs:   make(map[string]Releaser),
	}
}

func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) setUserID(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// OnClose регистрирует действие при закрытии соединения
func (c *Client) OnClose(fn func()) {
	c.mu.Lock()
	c.closers = append(c.closers, fn)
	c.mu.Unlock()
}

// Track запоминает подписку под id, выбранным клиентом
func (c *Client) Track(id string, sub Releaser) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrClientClosed
	}
	if _, ok := c.subs[id]; ok {
		return ErrDuplicateSubscription
	}
	c.subs[id] = sub
	return nil
}

func (c *Client) Tracking(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[id]
	return ok
}

// Release освобождает подписку; false, если такой нет
func (c *Client) Release(id string) bool {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()

	if ok {
		sub.Release()
	}
	return ok
}

func (c *Client) releaseAll() {
	c.mu.Lock()
	c.released = true
	subs := c.subs
	c.subs = make(map[string]Releaser)
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Release()
	}
	for _, fn := range closers {
		fn()
	}
}

// Close закрывает соединение; pumps завершатся сами
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.Conn.Close()
	})
}

// ReadPump читает кадры клиента
func (c *Client) ReadPump(handler ClientMessageHandler) {
	defer func() {
		c.releaseAll()
		c.Hub.Unregister(c)
		c.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		err := c.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		if msg.Type == TypePong {
			continue
		}

		if handler != nil {
			if err := handler.HandleMessage(c, &msg); err != nil {
				c.log.Debug().Err(err).Str("type", string(msg.Type)).Str("id", msg.ID).Msg("frame rejected")
				c.SendError(msg.ID, msg.Kind, err)
			}
		}
	}
}

// WritePump отправляет кадры клиенту по одному на websocket-сообщение
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage ставит кадр в очередь. Переполненная очередь значит, что
// клиент не успевает читать: соединение закрывается.
func (c *Client) SendMessage(msg Message, data any) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	msg.Timestamp = time.Now()
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		msg.Data = raw
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.Send <- frame:
		return nil
	default:
		c.log.Warn().Msg("send queue full, closing connection")
		c.Close()
		return ErrClientQueueFull
	}
}

func (c *Client) SendError(id, kind string, err error) {
	_ = c.SendMessage(Message{Type: TypeError, ID: id, Kind: kind, Error: err.Error()}, nil)
}
