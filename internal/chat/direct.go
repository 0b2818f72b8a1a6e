package chat

import (
	"context"
	"fmt"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/metrics"
	"github.com/thereayou/chatsync/internal/models"
)

// CreateDirectRoom возвращает direct-комнату текущего пользователя с other,
// создавая её, если такой ещё нет. Без вошедшего пользователя вернёт nil, nil.
//
// Проверка и создание не атомарны: два одновременных вызова для одной пары
// могут создать две комнаты.
func (c *Client) CreateDirectRoom(ctx context.Context, other models.User, metadata map[string]any) (*models.Room, error) {
	uid, ok := c.identity.CurrentUser()
	if !ok {
		c.log.Debug().Err(ErrUnauthenticated).Msg("create direct room skipped")
		return nil, nil
	}
	if other.ID == "" {
		return nil, ErrEmptyUserID
	}
	if other.ID == uid {
		return nil, ErrSelfDirectRoom
	}

	docs, err := c.store.Query(ctx, docstore.Collection(c.cfg.RoomsCollection).
		Where("userIds", docstore.OpArrayContains, uid))
	if err != nil {
		return nil, fmt.Errorf("list rooms of %s: %w", uid, err)
	}
	for _, room := range MaterializeRooms(ctx, c.resolver, docs, uid) {
		if room.Type == models.RoomDirect && room.HasExactUsers(uid, other.ID) {
			metrics.DirectRoomResolutions.WithLabelValues("existing").Inc()
			return &room, nil
		}
	}

	current, err := c.users.FetchUser(ctx, uid, nil)
	if err != nil {
		return nil, err
	}

	fields := docstore.Fields{
		"type":      string(models.RoomDirect),
		"userIds":   []any{uid, other.ID},
		"createdAt": docstore.ServerTimestamp(),
		"updatedAt": docstore.ServerTimestamp(),
	}
	if metadata != nil {
		fields["metadata"] = metadata
	}
	id, err := c.store.Add(ctx, c.cfg.RoomsCollection, fields)
	if err != nil {
		return nil, fmt.Errorf("create direct room: %w", err)
	}
	metrics.DirectRoomResolutions.WithLabelValues("created").Inc()
	c.log.Info().Str("room_id", id).Str("user_id", uid).Str("other_id", other.ID).Msg("direct room created")

	room := models.Room{
		ID:       id,
		Type:     models.RoomDirect,
		Users:    []models.User{current, other},
		Metadata: metadata,
	}
	applyDirectIdentity(&room, uid)
	return &room, nil
}
