package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleAgent     Role = "agent"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// ParseRole возвращает роль только для известных значений
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleAdmin, RoleAgent, RoleModerator, RoleUser:
		return r, true
	}
	return "", false
}

type User struct {
	ID        string         `json:"id"`
	FirstName *string        `json:"firstName,omitempty"`
	LastName  *string        `json:"lastName,omitempty"`
	ImageURL  *string        `json:"imageUrl,omitempty"`
	Role      *Role          `json:"role,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
	LastSeen  *time.Time     `json:"lastSeen,omitempty"`
}

// Placeholder пользователь, о котором известен только id
func Placeholder(id string) User {
	return User{ID: id}
}

// DisplayName собирает "имя фамилия" без лишних пробелов
func (u User) DisplayName() string {
	var first, last string
	if u.FirstName != nil {
		first = *u.FirstName
	}
	if u.LastName != nil {
		last = *u.LastName
	}
	return strings.TrimSpace(first + " " + last)
}
