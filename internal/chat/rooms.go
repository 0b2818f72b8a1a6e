package chat

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/models"
)

// MaterializeRoom собирает Room из сырого документа: участники разрешаются
// через resolver (промах превращается в заглушку с id), у direct-комнат имя и
// картинка берутся у собеседника, lastMessages получают авторов из участников.
// nil doc значит документ удалён раньше, чем его успели прочитать.
func MaterializeRoom(ctx context.Context, resolver *Resolver, doc *docstore.Document, currentUserID string) (models.Room, error) {
	if doc == nil {
		return models.Room{}, ErrRecordAbsent
	}
	raw := decodeRawRoom(*doc)

	resolved := resolver.Resolve(ctx, raw.userIDs, raw.userRoles)
	users := make([]models.User, 0, len(raw.userIDs))
	seen := make(map[string]bool, len(raw.userIDs))
	for _, id := range raw.userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := resolved[id]; ok {
			users = append(users, u)
			continue
		}
		users = append(users, placeholder(id, raw.userRoles))
	}

	room := models.Room{
		ID:        raw.id,
		Type:      raw.typ,
		Users:     users,
		Name:      raw.name,
		ImageURL:  raw.imageURL,
		Metadata:  raw.metadata,
		CreatedAt: raw.createdAt,
		UpdatedAt: raw.updatedAt,
	}
	applyDirectIdentity(&room, currentUserID)

	if raw.lastMessages != nil {
		room.LastMessages = make([]models.Message, 0, len(raw.lastMessages))
		for _, f := range raw.lastMessages {
			id := ""
			if s := fieldString(f, "id"); s != nil {
				id = *s
			}
			room.LastMessages = append(room.LastMessages, decodeMessage(id, f, authorOf(f, users)))
		}
	}
	return room, nil
}

// MaterializeRooms обрабатывает комнаты параллельно, порядок сохраняется
func MaterializeRooms(ctx context.Context, resolver *Resolver, docs []docstore.Document, currentUserID string) []models.Room {
	rooms := make([]models.Room, len(docs))
	var g errgroup.Group
	for i := range docs {
		i := i
		g.Go(func() error {
			room, err := MaterializeRoom(ctx, resolver, &docs[i], currentUserID)
			if err != nil {
				return err
			}
			rooms[i] = room
			return nil
		})
	}
	// MaterializeRoom ошибается только на nil doc
	_ = g.Wait()
	return rooms
}

// applyDirectIdentity у direct-комнаты имя и картинка всегда от собеседника
func applyDirectIdentity(room *models.Room, currentUserID string) {
	if room.Type != models.RoomDirect {
		return
	}
	for _, u := range room.Users {
		if u.ID == currentUserID {
			continue
		}
		name := u.DisplayName()
		room.Name = &name
		room.ImageURL = u.ImageURL
		return
	}
}

func placeholder(id string, roles map[string]models.Role) models.User {
	u := models.Placeholder(id)
	if role, ok := roles[id]; ok {
		u.Role = &role
	}
	return u
}

// authorOf ищет автора среди уже известных участников
func authorOf(f map[string]any, participants []models.User) models.User {
	id := ""
	if s := fieldString(f, "authorId"); s != nil {
		id = *s
	}
	for _, u := range participants {
		if u.ID == id {
			return u
		}
	}
	return models.Placeholder(id)
}
