package models

import "time"

type MessageType string

const (
	MessageText        MessageType = "text"
	MessageImage       MessageType = "image"
	MessageFile        MessageType = "file"
	MessageCustom      MessageType = "custom"
	MessageUnsupported MessageType = "unsupported"
)

type MessageStatus string

const (
	StatusDelivered MessageStatus = "delivered"
	StatusError     MessageStatus = "error"
	StatusSeen      MessageStatus = "seen"
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
)

func ParseMessageStatus(s string) (MessageStatus, bool) {
	switch st := MessageStatus(s); st {
	case StatusDelivered, StatusError, StatusSeen, StatusSending, StatusSent:
		return st, true
	}
	return "", false
}

type PreviewDataImage struct {
	URL    string  `json:"url"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type PreviewData struct {
	Description *string           `json:"description,omitempty"`
	Title       *string           `json:"title,omitempty"`
	Link        *string           `json:"link,omitempty"`
	Image       *PreviewDataImage `json:"image,omitempty"`
}

// Message общий вид для всех типов сообщений.
// Поля полезной нагрузки заполнены только для соответствующего Type:
// text - Text и PreviewData, image - URI/Name/Size/Width/Height,
// file - URI/Name/Size/MimeType.
type Message struct {
	ID        string         `json:"id"`
	Type      MessageType    `json:"type"`
	Author    User           `json:"author"`
	CreatedAt *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
	Status    *MessageStatus `json:"status,omitempty"`
	RoomID    *string        `json:"roomId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	Text        string       `json:"text,omitempty"`
	PreviewData *PreviewData `json:"previewData,omitempty"`

	URI      string   `json:"uri,omitempty"`
	Name     string   `json:"name,omitempty"`
	Size     int64    `json:"size,omitempty"`
	MimeType *string  `json:"mimeType,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
}

// PartialMessage то, что отправляет клиент: без id, автора и времени
type PartialMessage struct {
	Type     MessageType    `json:"type" binding:"required,oneof=text image file custom"`
	Metadata map[string]any `json:"metadata,omitempty"`

	Text        string       `json:"text,omitempty"`
	PreviewData *PreviewData `json:"previewData,omitempty"`

	URI      string   `json:"uri,omitempty"`
	Name     string   `json:"name,omitempty"`
	Size     int64    `json:"size,omitempty"`
	MimeType *string  `json:"mimeType,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
}

func NewText(text string) PartialMessage {
	return PartialMessage{Type: MessageText, Text: text}
}

func NewImage(uri, name string, size int64) PartialMessage {
	return PartialMessage{Type: MessageImage, URI: uri, Name: name, Size: size}
}

func NewFile(uri, name string, size int64) PartialMessage {
	return PartialMessage{Type: MessageFile, URI: uri, Name: name, Size: size}
}
