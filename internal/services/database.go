package services

import (
	"context"

	"github.com/thereayou/chatsync/internal/database"
	"github.com/thereayou/chatsync/internal/models"
)

// CredentialStore хранилище email и хешей паролей
type CredentialStore interface {
	SaveCredential(ctx context.Context, cred *database.Credential) error
	FindCredentialByEmail(ctx context.Context, email string) (*database.Credential, error)
	DeleteCredential(ctx context.Context, userID string) error
}

// UserDirectory профили пользователей в документном хранилище
type UserDirectory interface {
	CreateUser(ctx context.Context, user models.User) error
	DeleteUser(ctx context.Context, id string) error
	UpdateLastSeen(ctx context.Context, id string) error
}
