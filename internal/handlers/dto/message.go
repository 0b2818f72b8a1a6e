package dto

import "github.com/thereayou/chatsync/internal/models"

// UpdateMessageRequest меняет только переданные поля
type UpdateMessageRequest struct {
	Text        *string             `json:"text,omitempty"`
	Status      *string             `json:"status,omitempty"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
	PreviewData *models.PreviewData `json:"previewData,omitempty"`
}

type SendMessageResponse struct {
	ID string `json:"id"`
}
