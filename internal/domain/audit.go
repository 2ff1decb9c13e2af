package domain

import (
	"time"
)

type AuditLog struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID int64                  `json:"actor_user_id"`
	ActorRole   string                 `json:"actor_role"`
	RoomID      string                 `json:"room_id"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

const (
	ActorRoleOwner  = "owner"
	ActorRoleAuthor = "author"
)

const (
	EventTypeChatMessageDeleted = "CHAT_MESSAGE_DELETED"
	EventTypeChatAllDeleted     = "CHAT_ALL_DELETED"
)
