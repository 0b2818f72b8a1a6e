package chat

import (
	"context"
	"fmt"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/metrics"
	"github.com/thereayou/chatsync/internal/models"
)

// MaterializeMessages строит полный список сообщений из batch'а в порядке
// хранилища (новые первыми). Автор ищется только среди участников комнаты.
func MaterializeMessages(docs []docstore.Document, participants []models.User) []models.Message {
	out := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeMessage(doc.ID, doc.Fields, authorOf(doc.Fields, participants)))
	}
	return out
}

// SendMessage пишет новое сообщение от текущего пользователя и возвращает его id.
// Без вошедшего пользователя ничего не делает и возвращает пустой id.
func (c *Client) SendMessage(ctx context.Context, room models.Room, partial models.PartialMessage) (string, error) {
	uid, ok := c.identity.CurrentUser()
	if !ok {
		c.log.Debug().Err(ErrUnauthenticated).Str("room_id", room.ID).Msg("send message skipped")
		return "", nil
	}

	fields, err := encodePayload(partial)
	if err != nil {
		return "", err
	}
	fields["authorId"] = uid
	fields["createdAt"] = docstore.ServerTimestamp()
	fields["updatedAt"] = docstore.ServerTimestamp()

	id, err := c.store.Add(ctx, c.cfg.MessagesCollection(room.ID), fields)
	if err != nil {
		return "", fmt.Errorf("send message to room %s: %w", room.ID, err)
	}
	metrics.MessagesWritten.WithLabelValues("send", string(partial.Type)).Inc()
	return id, nil
}

// UpdateMessage перезаписывает сообщение, если текущий пользователь его автор.
// id, author и createdAt не пишутся, updatedAt ставит хранилище.
// Возвращает false, если запись не выполнялась.
func (c *Client) UpdateMessage(ctx context.Context, room models.Room, msg models.Message) (bool, error) {
	uid, ok := c.identity.CurrentUser()
	if !ok {
		c.log.Debug().Err(ErrUnauthenticated).Str("message_id", msg.ID).Msg("update message skipped")
		return false, nil
	}
	if msg.Author.ID != uid {
		c.log.Debug().Err(ErrForbidden).Str("message_id", msg.ID).Str("author_id", msg.Author.ID).Msg("update message skipped")
		return false, nil
	}

	fields, err := encodePayload(partialOf(msg))
	if err != nil {
		return false, err
	}
	if msg.Status != nil {
		fields["status"] = string(*msg.Status)
	}
	if msg.RoomID != nil {
		fields["roomId"] = *msg.RoomID
	}
	fields["authorId"] = uid
	fields["updatedAt"] = docstore.ServerTimestamp()

	if err := c.store.Update(ctx, c.cfg.MessagesCollection(room.ID), msg.ID, fields); err != nil {
		return false, fmt.Errorf("update message %s: %w", msg.ID, err)
	}
	metrics.MessagesWritten.WithLabelValues("update", string(msg.Type)).Inc()
	return true, nil
}
