package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/models"
)

// CreateGroupRoom создаёт групповую комнату; создатель становится первым
// участником. Без вошедшего пользователя вернёт nil, nil.
func (c *Client) CreateGroupRoom(ctx context.Context, name string, users []models.User, imageURL *string, metadata map[string]any) (*models.Room, error) {
	uid, ok := c.identity.CurrentUser()
	if !ok {
		c.log.Debug().Err(ErrUnauthenticated).Msg("create group room skipped")
		return nil, nil
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyRoomName
	}

	current, err := c.users.FetchUser(ctx, uid, nil)
	if err != nil {
		return nil, err
	}

	members := []models.User{current}
	seen := map[string]bool{uid: true}
	for _, u := range users {
		if u.ID == "" || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		members = append(members, u)
	}

	userIDs := make([]any, len(members))
	userRoles := make(map[string]any)
	for i, u := range members {
		userIDs[i] = u.ID
		if u.Role != nil {
			userRoles[u.ID] = string(*u.Role)
		}
	}

	fields := docstore.Fields{
		"type":      string(models.RoomGroup),
		"name":      name,
		"userIds":   userIDs,
		"userRoles": userRoles,
		"createdAt": docstore.ServerTimestamp(),
		"updatedAt": docstore.ServerTimestamp(),
	}
	putString(fields, "imageUrl", imageURL)
	if metadata != nil {
		fields["metadata"] = metadata
	}

	id, err := c.store.Add(ctx, c.cfg.RoomsCollection, fields)
	if err != nil {
		return nil, fmt.Errorf("create group room: %w", err)
	}
	c.log.Info().Str("room_id", id).Str("user_id", uid).Int("members", len(members)).Msg("group room created")

	return &models.Room{
		ID:       id,
		Type:     models.RoomGroup,
		Users:    members,
		Name:     &name,
		ImageURL: imageURL,
		Metadata: metadata,
	}, nil
}

// FetchUser, CreateUser и DeleteUser доступны и напрямую через клиент

func (c *Client) FetchUser(ctx context.Context, id string, role *models.Role) (models.User, error) {
	return c.users.FetchUser(ctx, id, role)
}

func (c *Client) CreateUser(ctx context.Context, user models.User) error {
	return c.users.CreateUser(ctx, user)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.users.DeleteUser(ctx, id)
}

func (c *Client) UpdateLastSeen(ctx context.Context, id string) error {
	return c.users.UpdateLastSeen(ctx, id)
}
