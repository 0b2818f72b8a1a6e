package chat

import (
	"fmt"
	"strings"
)

const (
	DefaultRoomsCollection = "rooms"
	DefaultUsersCollection = "users"
)

// Config имена коллекций. Передаётся в New, глобального состояния нет.
// Сообщения комнаты живут в {RoomsCollection}/{roomID}/messages.
type Config struct {
	RoomsCollection string `yaml:"rooms_collection"`
	UsersCollection string `yaml:"users_collection"`
}

func DefaultConfig() Config {
	return Config{
		RoomsCollection: DefaultRoomsCollection,
		UsersCollection: DefaultUsersCollection,
	}
}

// NewConfig задаёт свои имена коллекций вместо rooms и users
func NewConfig(roomsCollection, usersCollection string) (Config, error) {
	cfg := Config{RoomsCollection: roomsCollection, UsersCollection: usersCollection}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	for name, value := range map[string]string{
		"rooms collection": c.RoomsCollection,
		"users collection": c.UsersCollection,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidConfig, name)
		}
		if strings.Contains(value, "/") {
			return fmt.Errorf("%w: %s %q must not contain '/'", ErrInvalidConfig, name, value)
		}
	}
	if c.RoomsCollection == c.UsersCollection {
		return fmt.Errorf("%w: rooms and users share collection %q", ErrInvalidConfig, c.RoomsCollection)
	}
	return nil
}

func (c Config) MessagesCollection(roomID string) string {
	return c.RoomsCollection + "/" + roomID + "/messages"
}
