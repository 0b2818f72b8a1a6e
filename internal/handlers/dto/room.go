package dto

type CreateDirectRoomRequest struct {
	UserID   string         `json:"userId" binding:"required"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type CreateGroupRoomRequest struct {
	Name     string         `json:"name" binding:"required"`
	UserIDs  []string       `json:"userIds"`
	ImageURL *string        `json:"imageUrl,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
