package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/thereayou/chatsync/internal/database"
	"github.com/thereayou/chatsync/internal/models"
	"github.com/thereayou/chatsync/pkg/auth"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenRevoked       = errors.New("token is blacklisted")
)

// Session выданный токен
type Session struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	creds   CredentialStore
	users   UserDirectory
	jwt     *auth.JWTManager
	revoker TokenRevoker
	log     zerolog.Logger
}

func NewAuthService(creds CredentialStore, users UserDirectory, jwt *auth.JWTManager, revoker TokenRevoker, logger zerolog.Logger) *AuthService {
	return &AuthService{creds: creds, users: users, jwt: jwt, revoker: revoker, log: logger}
}

// Register создаёт учётную запись и профиль; id пользователя генерируется здесь
func (s *AuthService) Register(ctx context.Context, email, password string, profile models.User) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.creds.FindCredentialByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, database.ErrCredentialNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	profile.ID = uuid.NewString()
	if profile.Role == nil {
		role := models.RoleUser
		profile.Role = &role
	}
	if err := s.users.CreateUser(ctx, profile); err != nil {
		return nil, err
	}
	cred := &database.Credential{UserID: profile.ID, Email: email, PasswordHash: string(hash)}
	if err := s.creds.SaveCredential(ctx, cred); err != nil {
		_ = s.users.DeleteUser(ctx, profile.ID)
		return nil, fmt.Errorf("save credential: %w", err)
	}

	s.log.Info().Str("user_id", profile.ID).Msg("user registered")
	return s.issue(profile.ID)
}

// Login выдаёт JWT и обновляет lastSeen
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	cred, err := s.creds.FindCredentialByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, database.ErrCredentialNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastSeen(ctx, cred.UserID); err != nil {
		return nil, fmt.Errorf("update last seen: %w", err)
	}
	return s.issue(cred.UserID)
}

// Logout ставит токен в чёрный список до истечения
func (s *AuthService) Logout(ctx context.Context, token string) error {
	exp, err := s.jwt.Expiry(token)
	if err != nil {
		return err
	}
	return s.revoker.Revoke(ctx, token, time.Until(exp))
}

// Authenticate проверяет подпись, срок и чёрный список; возвращает id пользователя
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	revoked, err := s.revoker.IsRevoked(ctx, token)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", ErrTokenRevoked
	}
	claims, err := s.jwt.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// DeleteAccount удаляет профиль и данные для входа
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.creds.DeleteCredential(ctx, userID); err != nil {
		return err
	}
	return s.users.DeleteUser(ctx, userID)
}

// Touch отмечает пользователя как недавно активного
func (s *AuthService) Touch(ctx context.Context, userID string) {
	if err := s.users.UpdateLastSeen(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("could not update last seen")
	}
}

func (s *AuthService) issue(userID string) (*Session, error) {
	token, exp, err := s.jwt.Generate(userID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{UserID: userID, Token: token, ExpiresAt: exp}, nil
}
