package chat

import (
	"math"
	"time"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/models"
)

// Декодирование сырых документов. Отсутствующее поле даёт nil, а не нулевое
// значение; поле неверного типа считается отсутствующим.

func fieldString(f map[string]any, key string) *string {
	s, ok := f[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func fieldInt(f map[string]any, key string) (int64, bool) {
	switch v := f[key].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}

func fieldFloat(f map[string]any, key string) *float64 {
	var out float64
	switch v := f[key].(type) {
	case float64:
		out = v
	case float32:
		out = float64(v)
	case int:
		out = float64(v)
	case int64:
		out = float64(v)
	case uint64:
		out = float64(v)
	default:
		return nil
	}
	return &out
}

// fieldTime принимает time.Time и строку RFC3339 (так время приходит из JSON)
func fieldTime(f map[string]any, key string) *time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return &v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil
		}
		return &t
	}
	return nil
}

func fieldMap(f map[string]any, key string) map[string]any {
	switch v := f[key].(type) {
	case map[string]any:
		return v
	case docstore.Fields:
		return v
	}
	return nil
}

func fieldStrings(f map[string]any, key string) []string {
	switch v := f[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func fieldRole(f map[string]any, key string) *models.Role {
	s, ok := f[key].(string)
	if !ok {
		return nil
	}
	role, ok := models.ParseRole(s)
	if !ok {
		return nil
	}
	return &role
}

// fieldRoles читает userRoles: id -> роль, неизвестные роли пропускаются
func fieldRoles(f map[string]any, key string) map[string]models.Role {
	raw := fieldMap(f, key)
	if raw == nil {
		return nil
	}
	roles := make(map[string]models.Role, len(raw))
	for id := range raw {
		if role := fieldRole(raw, id); role != nil {
			roles[id] = *role
		}
	}
	return roles
}

// decodeUser role, если не nil, заменяет сохранённую роль
func decodeUser(doc docstore.Document, role *models.Role) models.User {
	f := doc.Fields
	user := models.User{
		ID:        doc.ID,
		FirstName: fieldString(f, "firstName"),
		LastName:  fieldString(f, "lastName"),
		ImageURL:  fieldString(f, "imageUrl"),
		Role:      fieldRole(f, "role"),
		Metadata:  fieldMap(f, "metadata"),
		CreatedAt: fieldTime(f, "createdAt"),
		UpdatedAt: fieldTime(f, "updatedAt"),
		LastSeen:  fieldTime(f, "lastSeen"),
	}
	if role != nil {
		r := *role
		user.Role = &r
	}
	return user
}

type rawRoom struct {
	id           string
	typ          models.RoomType
	name         *string
	imageURL     *string
	metadata     map[string]any
	userIDs      []string
	userRoles    map[string]models.Role
	lastMessages []map[string]any
	createdAt    *time.Time
	updatedAt    *time.Time
}

func decodeRawRoom(doc docstore.Document) rawRoom {
	f := doc.Fields
	room := rawRoom{
		id:        doc.ID,
		typ:       models.RoomUnsupported,
		name:      fieldString(f, "name"),
		imageURL:  fieldString(f, "imageUrl"),
		metadata:  fieldMap(f, "metadata"),
		userIDs:   fieldStrings(f, "userIds"),
		userRoles: fieldRoles(f, "userRoles"),
		createdAt: fieldTime(f, "createdAt"),
		updatedAt: fieldTime(f, "updatedAt"),
	}
	if t := fieldString(f, "type"); t != nil {
		room.typ = models.ParseRoomType(*t)
	}
	if items, ok := f["lastMessages"].([]any); ok {
		room.lastMessages = make([]map[string]any, 0, len(items))
		for _, item := range items {
			switch m := item.(type) {
			case map[string]any:
				room.lastMessages = append(room.lastMessages, m)
			case docstore.Fields:
				room.lastMessages = append(room.lastMessages, m)
			}
		}
	}
	return room
}

// decodeMessage собирает сообщение; author уже разрешён вызывающим.
// Неизвестный тип или нехватка обязательных полей дают unsupported.
func decodeMessage(id string, f map[string]any, author models.User) models.Message {
	msg := models.Message{
		ID:        id,
		Type:      models.MessageUnsupported,
		Author:    author,
		CreatedAt: fieldTime(f, "createdAt"),
		UpdatedAt: fieldTime(f, "updatedAt"),
		RoomID:    fieldString(f, "roomId"),
		Metadata:  fieldMap(f, "metadata"),
	}
	if s := fieldString(f, "status"); s != nil {
		if status, ok := models.ParseMessageStatus(*s); ok {
			msg.Status = &status
		}
	}

	typ := fieldString(f, "type")
	if typ == nil {
		return msg
	}
	switch models.MessageType(*typ) {
	case models.MessageText:
		text := fieldString(f, "text")
		if text == nil {
			return msg
		}
		msg.Type = models.MessageText
		msg.Text = *text
		msg.PreviewData = decodePreviewData(fieldMap(f, "previewData"))
	case models.MessageImage, models.MessageFile:
		uri, name := fieldString(f, "uri"), fieldString(f, "name")
		size, ok := fieldInt(f, "size")
		if uri == nil || name == nil || !ok {
			return msg
		}
		msg.Type = models.MessageType(*typ)
		msg.URI, msg.Name, msg.Size = *uri, *name, size
		if msg.Type == models.MessageImage {
			msg.Width = fieldFloat(f, "width")
			msg.Height = fieldFloat(f, "height")
		} else {
			msg.MimeType = fieldString(f, "mimeType")
		}
	case models.MessageCustom:
		msg.Type = models.MessageCustom
	}
	return msg
}

func decodePreviewData(f map[string]any) *models.PreviewData {
	if f == nil {
		return nil
	}
	pd := &models.PreviewData{
		Description: fieldString(f, "description"),
		Title:       fieldString(f, "title"),
		Link:        fieldString(f, "link"),
	}
	if img := fieldMap(f, "image"); img != nil {
		if url := fieldString(img, "url"); url != nil {
			pd.Image = &models.PreviewDataImage{URL: *url}
			if w := fieldFloat(img, "width"); w != nil {
				pd.Image.Width = *w
			}
			if h := fieldFloat(img, "height"); h != nil {
				pd.Image.Height = *h
			}
		}
	}
	return pd
}

func encodePreviewData(pd *models.PreviewData) map[string]any {
	out := map[string]any{}
	putString(out, "description", pd.Description)
	putString(out, "title", pd.Title)
	putString(out, "link", pd.Link)
	if pd.Image != nil {
		out["image"] = map[string]any{
			"url":    pd.Image.URL,
			"width":  pd.Image.Width,
			"height": pd.Image.Height,
		}
	}
	return out
}

func putString(f map[string]any, key string, v *string) {
	if v != nil {
		f[key] = *v
	}
}

func putFloat(f map[string]any, key string, v *float64) {
	if v != nil {
		f[key] = *v
	}
}

// encodePayload общие поля записи сообщения: тип, полезная нагрузка, metadata
func encodePayload(p models.PartialMessage) (docstore.Fields, error) {
	if err := validatePartial(p); err != nil {
		return nil, err
	}
	f := docstore.Fields{"type": string(p.Type)}
	if p.Metadata != nil {
		f["metadata"] = p.Metadata
	}
	switch p.Type {
	case models.MessageText:
		f["text"] = p.Text
		if p.PreviewData != nil {
			f["previewData"] = encodePreviewData(p.PreviewData)
		}
	case models.MessageImage:
		f["uri"], f["name"], f["size"] = p.URI, p.Name, p.Size
		putFloat(f, "width", p.Width)
		putFloat(f, "height", p.Height)
	case models.MessageFile:
		f["uri"], f["name"], f["size"] = p.URI, p.Name, p.Size
		putString(f, "mimeType", p.MimeType)
	}
	return f, nil
}

func validatePartial(p models.PartialMessage) error {
	switch p.Type {
	case models.MessageText:
		if p.Text == "" {
			return errInvalid("text message without text")
		}
	case models.MessageImage, models.MessageFile:
		if p.URI == "" || p.Name == "" {
			return errInvalid(string(p.Type) + " message without uri or name")
		}
		if p.Size < 0 {
			return errInvalid("negative size")
		}
	case models.MessageCustom:
	default:
		return errInvalid("unknown type " + string(p.Type))
	}
	return nil
}

// partialOf отбрасывает у сообщения id, автора и время
func partialOf(m models.Message) models.PartialMessage {
	return models.PartialMessage{
		Type:        m.Type,
		Metadata:    m.Metadata,
		Text:        m.Text,
		PreviewData: m.PreviewData,
		URI:         m.URI,
		Name:        m.Name,
		Size:        m.Size,
		MimeType:    m.MimeType,
		Width:       m.Width,
		Height:      m.Height,
	}
}
