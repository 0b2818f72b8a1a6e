package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrCredentialNotFound = errors.New("credential not found")

// Credential данные для входа. Профиль пользователя живёт в документе users,
// здесь только email и хеш пароля.
type Credential struct {
	UserID       string    `gorm:"primaryKey;size:64"`
	Email        string    `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time
}

func (d *Database) SaveCredential(ctx context.Context, cred *Credential) error {
	return d.db.WithContext(ctx).Create(cred).Error
}

func (d *Database) FindCredentialByEmail(ctx context.Context, email string) (*Credential, error) {
	var cred Credential
	err := d.db.WithContext(ctx).Where("email = ?", email).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (d *Database) DeleteCredential(ctx context.Context, userID string) error {
	return d.db.WithContext(ctx).Delete(&Credential{}, "user_id = ?", userID).Error
}
