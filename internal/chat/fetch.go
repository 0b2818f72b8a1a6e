package chat

import (
	"context"
	"fmt"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/models"
)

// FetchRoom разовое чтение комнаты с разрешёнными участниками.
// Комната доступна только своим участникам.
func (c *Client) FetchRoom(ctx context.Context, roomID string) (models.Room, error) {
	uid, ok := c.identity.CurrentUser()
	if !ok {
		return models.Room{}, ErrUnauthenticated
	}

	doc, err := c.store.Get(ctx, c.cfg.RoomsCollection, roomID)
	if err != nil {
		return models.Room{}, fmt.Errorf("fetch room %s: %w", roomID, err)
	}
	room, err := MaterializeRoom(ctx, c.resolver, &doc, uid)
	if err != nil {
		return models.Room{}, err
	}
	if _, member := room.FindUser(uid); !member {
		return models.Room{}, ErrNotMember
	}
	return room, nil
}

// FetchMessage сообщение комнаты; автор берётся из room.Users
func (c *Client) FetchMessage(ctx context.Context, room models.Room, messageID string) (models.Message, error) {
	doc, err := c.store.Get(ctx, c.cfg.MessagesCollection(room.ID), messageID)
	if err != nil {
		return models.Message{}, fmt.Errorf("fetch message %s: %w", messageID, err)
	}
	return decodeMessage(doc.ID, doc.Fields, authorOf(doc.Fields, room.Users)), nil
}

// FetchMessages последние limit сообщений комнаты, новые первыми
func (c *Client) FetchMessages(ctx context.Context, room models.Room, limit int) ([]models.Message, error) {
	q := docstore.Collection(c.cfg.MessagesCollection(room.ID)).Order("createdAt", true)
	if limit > 0 {
		q = q.WithLimit(limit)
	}
	docs, err := c.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch messages of room %s: %w", room.ID, err)
	}
	return MaterializeMessages(docs, room.Users), nil
}
