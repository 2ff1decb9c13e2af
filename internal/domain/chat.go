package domain

import (
	"time"
)

// ChatMessage - сообщение чата комнаты. ID и CreatedAt назначает хранилище.
type ChatMessage struct {
	ID          int64     `json:"id"`
	RoomID      string    `json:"roomId"`
	UserID      int64     `json:"userId"`
	DisplayName string    `json:"displayName"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"timestamp"`
}

// ElapsedSince возвращает время, прошедшее с момента сохранения сообщения
func (m *ChatMessage) ElapsedSince(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}
