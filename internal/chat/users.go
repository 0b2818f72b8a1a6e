package chat

import (
	"context"
	"fmt"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/models"
)

// UserRepository чтение и запись пользователей в коллекции users
type UserRepository struct {
	store docstore.Store
	cfg   Config
}

func NewUserRepository(store docstore.Store, cfg Config) *UserRepository {
	return &UserRepository{store: store, cfg: cfg}
}

// FetchUser получает пользователя по id; role, если задана, заменяет сохранённую
func (r *UserRepository) FetchUser(ctx context.Context, id string, role *models.Role) (models.User, error) {
	doc, err := r.store.Get(ctx, r.cfg.UsersCollection, id)
	if err != nil {
		return models.User{}, fmt.Errorf("fetch user %s: %w", id, err)
	}
	return decodeUser(doc, role), nil
}

// CreateUser записывает пользователя с его id; createdAt и updatedAt ставит хранилище
func (r *UserRepository) CreateUser(ctx context.Context, user models.User) error {
	if user.ID == "" {
		return ErrEmptyUserID
	}
	fields := docstore.Fields{
		"createdAt": docstore.ServerTimestamp(),
		"updatedAt": docstore.ServerTimestamp(),
	}
	putString(fields, "firstName", user.FirstName)
	putString(fields, "lastName", user.LastName)
	putString(fields, "imageUrl", user.ImageURL)
	if user.Role != nil {
		fields["role"] = string(*user.Role)
	}
	if user.Metadata != nil {
		fields["metadata"] = user.Metadata
	}
	if user.LastSeen != nil {
		fields["lastSeen"] = *user.LastSeen
	}
	if err := r.store.Set(ctx, r.cfg.UsersCollection, user.ID, fields); err != nil {
		return fmt.Errorf("create user %s: %w", user.ID, err)
	}
	return nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.cfg.UsersCollection, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// UpdateLastSeen обновляет время последнего визита пользователя
func (r *UserRepository) UpdateLastSeen(ctx context.Context, id string) error {
	err := r.store.Update(ctx, r.cfg.UsersCollection, id, docstore.Fields{
		"lastSeen": docstore.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("update last seen %s: %w", id, err)
	}
	return nil
}
