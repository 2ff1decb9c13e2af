package realtime

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"collab_editor/internal/domain"
)

// EventKind - входящие события от клиента. Набор закрыт: каждому виду
// соответствует обработчик в таблице Relay.
type EventKind int

const (
	EventJoin EventKind = iota
	EventLeave
	EventCodeChange
	EventSyncCode
	EventCursorPosition
	EventUserTyping
	EventChatMessage
	EventChatHistory
	EventChatDeleteMessage
	EventChatDeleteAll

	eventKindCount
)

var eventNames = [eventKindCount]string{
	EventJoin:              "join",
	EventLeave:             "leave",
	EventCodeChange:        "code-change",
	EventSyncCode:          "sync-code",
	EventCursorPosition:    "cursor-position",
	EventUserTyping:        "user-typing",
	EventChatMessage:       "chat-message",
	EventChatHistory:       "chat-history",
	EventChatDeleteMessage: "chat-delete-message",
	EventChatDeleteAll:     "chat-delete-all",
}

var eventsByName = func() map[string]EventKind {
	m := make(map[string]EventKind, eventKindCount)
	for kind, name := range eventNames {
		m[name] = EventKind(kind)
	}
	return m
}()

// ParseEventKind возвращает false для неизвестных имен
func ParseEventKind(name string) (EventKind, bool) {
	kind, ok := eventsByName[name]
	return kind, ok
}

func (k EventKind) String() string {
	if k < 0 || k >= eventKindCount {
		return "unknown"
	}
	return eventNames[k]
}

// Исходящие события
const (
	OutJoined             = "joined"
	OutDisconnected       = "disconnected"
	OutCodeChange         = "code-change"
	OutCursorUpdate       = "cursor-update"
	OutUserTyping         = "user-typing"
	OutChatMessage        = "chat-message"
	OutChatHistory        = "chat-history"
	OutChatMessageDeleted = "chat-message-deleted"
	OutChatAllDeleted     = "chat-all-deleted"
	OutError              = "error"
)

// Envelope - кадр протокола: {"event": "...", "data": {...}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope кодирует payload; nil дает событие без данных
func NewEnvelope(event string, payload any) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Data = data
	return env, nil
}

// Входящие payload

type JoinRequest struct {
	RoomID      string `json:"roomId" validate:"required"`
	DisplayName string `json:"displayName"`
}

type LeaveRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

type CodeChangeRequest struct {
	RoomID string `json:"roomId" validate:"required"`
	Code   string `json:"code"`
}

type SyncCodeRequest struct {
	TargetConnectionID string `json:"targetConnectionId" validate:"required"`
	Code               string `json:"code"`
}

// Position не интерпретируется сервером ({line, ch} у клиента)
type CursorPositionRequest struct {
	RoomID   string          `json:"roomId" validate:"required"`
	Position json.RawMessage `json:"position"`
}

type UserTypingRequest struct {
	RoomID      string `json:"roomId" validate:"required"`
	DisplayName string `json:"displayName"`
	IsTyping    bool   `json:"isTyping"`
}

// ClientTimestamp только для отображения, сервер его не использует
type ChatMessageRequest struct {
	RoomID          string `json:"roomId" validate:"required"`
	DisplayName     string `json:"displayName"`
	UserID          int64  `json:"userId"`
	Body            string `json:"body"`
	ClientTimestamp string `json:"clientTimestamp,omitempty"`
}

type ChatHistoryRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

type ChatDeleteMessageRequest struct {
	RoomID    string `json:"roomId" validate:"required"`
	MessageID int64  `json:"messageId" validate:"required"`
	UserID    int64  `json:"userId"`
}

type ChatDeleteAllRequest struct {
	RoomID string `json:"roomId" validate:"required"`
	UserID int64  `json:"userId"`
}

// Исходящие payload

type Member struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

type JoinedPayload struct {
	Members      []Member `json:"members"`
	DisplayName  string   `json:"displayName"`
	ConnectionID string   `json:"connectionId"`
}

type DisconnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

type CodePayload struct {
	Code string `json:"code"`
}

type CursorUpdatePayload struct {
	ConnectionID string          `json:"connectionId"`
	DisplayName  string          `json:"displayName"`
	Position     json.RawMessage `json:"position"`
}

type UserTypingPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	IsTyping    bool   `json:"isTyping"`
}

// ChatMessagePayload - каноническая запись из хранилища
type ChatMessagePayload struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"displayName"`
	UserID      int64     `json:"userId"`
	Body        string    `json:"body"`
	Timestamp   time.Time `json:"timestamp"`
}

type ChatHistoryPayload struct {
	Messages []ChatMessagePayload `json:"messages"`
}

type ChatMessageDeletedPayload struct {
	MessageID int64 `json:"messageId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewChatMessagePayload(m *domain.ChatMessage) ChatMessagePayload {
	return ChatMessagePayload{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		UserID:      m.UserID,
		Body:        m.Body,
		Timestamp:   m.CreatedAt,
	}
}

// NewChatHistoryPayload всегда отдает массив, даже пустой
func NewChatHistoryPayload(messages []*domain.ChatMessage) ChatHistoryPayload {
	return ChatHistoryPayload{Messages: lo.Map(messages, func(m *domain.ChatMessage, _ int) ChatMessagePayload {
		return NewChatMessagePayload(m)
	})}
}
