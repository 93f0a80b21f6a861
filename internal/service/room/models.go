package room

import "github.com/sharetube/cowatch/internal/domain"

// SyncState is a snapshot as delivered to members: the stored snapshot plus
// the media it refers to and who produced it.
type SyncState struct {
	domain.SyncSnapshot
	MediaId string `json:"media_id"`
	FromId  string `json:"from_id"`
}

type RoomState struct {
	SelfId         string               `json:"self_id"`
	RoomId         string               `json:"room_id"`
	ControllerId   string               `json:"controller_id"`
	Members        []domain.Member      `json:"members"`
	Media          *domain.Media        `json:"media"`
	SyncState      SyncState            `json:"sync_state"`
	ChatHistory    []domain.ChatMessage `json:"chat_history"`
	DanmakuHistory []domain.Danmaku     `json:"danmaku_history"`
	ServerTime     int64                `json:"server_time"`
}

type MembersUpdate struct {
	RoomId       string          `json:"room_id"`
	ControllerId string          `json:"controller_id"`
	Members      []domain.Member `json:"members"`
}

type MediaUpdate struct {
	Media     domain.Media `json:"media"`
	SyncState SyncState    `json:"sync_state"`
}

type LobbyRoom struct {
	RoomId       string `json:"room_id"`
	OnlineCount  int    `json:"online_count"`
	ControllerId string `json:"controller_id"`
	HasMedia     bool   `json:"has_media"`
	MediaName    string `json:"media_name"`
	UpdatedAt    int64  `json:"updated_at"`
}
