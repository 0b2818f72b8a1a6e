package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thereayou/chatsync/internal/chat"
	"github.com/thereayou/chatsync/internal/handlers/dto"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/models"
	ws "github.com/thereayou/chatsync/internal/websocket"
)

const (
	kindRooms    = "rooms"
	kindRoom     = "room"
	kindMessages = "messages"
	kindUsers    = "users"
)

// connection разбирает кадры одного WebSocket соединения. Подписки живут
// до release, закрытия соединения или терминальной ошибки.
type connection struct {
	hub     *ws.Hub
	client  *ws.Client
	session *identity.Session
	chat    *chat.Client
	authn   middleware.Authenticator
}

func (h *connection) HandleMessage(client *ws.Client, msg *ws.Message) error {
	switch msg.Type {
	case ws.TypeSubscribe:
		return h.subscribe(msg)
	case ws.TypeRelease:
		return h.release(msg)
	case ws.TypeAuth:
		return h.auth(msg)
	default:
		return fmt.Errorf("%w: unknown frame type %q", ws.ErrInvalidMessage, msg.Type)
	}
}

func (h *connection) subscribe(msg *ws.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("%w: subscription id is required", ws.ErrInvalidMessage)
	}
	if h.client.Tracking(msg.ID) {
		return ws.ErrDuplicateSubscription
	}

	var params dto.SubscribeParams
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &params); err != nil {
			return fmt.Errorf("%w: %v", ws.ErrInvalidMessage, err)
		}
	}

	id, kind := msg.ID, msg.Kind
	onError := chat.OnError(func(err error) {
		h.client.SendError(id, kind, err)
	})

	// контекст подписки не связан с кадром: её завершают release или Close
	ctx := context.Background()
	var (
		sub ws.Releaser
		err error
	)
	switch kind {
	case kindRooms:
		sub, err = asReleaser(h.chat.SubscribeRooms(ctx, params.OrderByRecency, snapshot[[]models.Room](h.client, id, kind), onError))
	case kindRoom:
		if params.RoomID == "" {
			return fmt.Errorf("%w: roomId is required", ws.ErrInvalidMessage)
		}
		sub, err = asReleaser(h.chat.SubscribeRoom(ctx, params.RoomID, snapshot[*models.Room](h.client, id, kind), onError))
	case kindMessages:
		if params.RoomID == "" {
			return fmt.Errorf("%w: roomId is required", ws.ErrInvalidMessage)
		}
		room, ferr := h.chat.FetchRoom(ctx, params.RoomID)
		if ferr != nil {
			return ferr
		}
		sub, err = asReleaser(h.chat.SubscribeMessages(ctx, room, snapshot[[]models.Message](h.client, id, kind), onError))
	case kindUsers:
		sub, err = asReleaser(h.chat.SubscribeUsers(ctx, snapshot[[]models.User](h.client, id, kind), onError))
	default:
		return fmt.Errorf("%w: %q", ws.ErrUnknownSubscriptionKind, kind)
	}
	if err != nil {
		return err
	}

	if err := h.client.Track(id, sub); err != nil {
		sub.Release()
		return err
	}
	return nil
}

func (h *connection) release(msg *ws.Message) error {
	if !h.client.Release(msg.ID) {
		return ws.ErrUnknownSubscription
	}
	return h.client.SendMessage(ws.Message{Type: ws.TypeReleased, ID: msg.ID}, nil)
}

// auth меняет пользователя соединения; пользовательские подписки
// перезапускаются клиентом чата сами
func (h *connection) auth(msg *ws.Message) error {
	var params dto.AuthParams
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &params); err != nil {
			return fmt.Errorf("%w: %v", ws.ErrInvalidMessage, err)
		}
	}

	if params.Token == "" {
		h.session.SignOut()
		h.hub.Rebind(h.client, "")
		return h.client.SendMessage(ws.Message{Type: ws.TypeIdentity}, nil)
	}

	userID, err := h.session.SignInWithToken(context.Background(), h.authn, params.Token)
	if err != nil {
		return err
	}
	h.hub.Rebind(h.client, userID)
	return h.client.SendMessage(ws.Message{Type: ws.TypeIdentity, UserID: userID}, nil)
}

// snapshot колбэк подписки, отправляющий снимок кадром
func snapshot[T any](client *ws.Client, id, kind string) func(T) {
	return func(v T) {
		_ = client.SendMessage(ws.Message{Type: ws.TypeSnapshot, ID: id, Kind: kind}, v)
	}
}

// asReleaser не даёт nil-указателю подписки превратиться в не-nil интерфейс
func asReleaser[T any](sub *chat.Subscription[T], err error) (ws.Releaser, error) {
	if err != nil {
		return nil, err
	}
	return sub, nil
}
