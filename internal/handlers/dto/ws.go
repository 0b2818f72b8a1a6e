package dto

// SubscribeParams data кадра subscribe
type SubscribeParams struct {
	RoomID         string `json:"roomId,omitempty"`
	OrderByRecency bool   `json:"orderByRecency,omitempty"`
}

// AuthParams data кадра auth; пустой токен означает выход
type AuthParams struct {
	Token string `json:"token"`
}
