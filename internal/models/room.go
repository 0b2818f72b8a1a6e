package models

import "time"

type RoomType string

const (
	RoomDirect      RoomType = "direct"
	RoomGroup       RoomType = "group"
	RoomChannel     RoomType = "channel"
	RoomUnsupported RoomType = "unsupported"
)

// ParseRoomType неизвестные значения превращаются в unsupported
func ParseRoomType(s string) RoomType {
	switch t := RoomType(s); t {
	case RoomDirect, RoomGroup, RoomChannel:
		return t
	}
	return RoomUnsupported
}

type Room struct {
	ID           string         `json:"id"`
	Type         RoomType       `json:"type"`
	Users        []User         `json:"users"`
	Name         *string        `json:"name,omitempty"`
	ImageURL     *string        `json:"imageUrl,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	LastMessages []Message      `json:"lastMessages,omitempty"`
	CreatedAt    *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time     `json:"updatedAt,omitempty"`
}

// UserIDs id участников в порядке загрузки
func (r Room) UserIDs() []string {
	ids := make([]string, len(r.Users))
	for i, u := range r.Users {
		ids[i] = u.ID
	}
	return ids
}

// HasExactUsers сравнивает участников как множество
func (r Room) HasExactUsers(ids ...string) bool {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	got := make(map[string]bool, len(r.Users))
	for _, u := range r.Users {
		if !want[u.ID] {
			return false
		}
		got[u.ID] = true
	}
	return len(got) == len(want)
}

// FindUser ищет участника по id
func (r Room) FindUser(id string) (User, bool) {
	for _, u := range r.Users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}
