package realtime

import (
	"collab_editor/pkg/logger"
)

// Presence обрабатывает обрыв соединения: уведомляет все его комнаты и чистит реестр
type Presence struct {
	registry  *Registry
	directory *Directory
	log       logger.Logger
}

func NewPresence(registry *Registry, directory *Directory, log logger.Logger) *Presence {
	return &Presence{registry: registry, directory: directory, log: log}
}

// Depart возвращает число уведомленных комнат. Повторный вызов для того же
// соединения ничего не делает.
func (p *Presence) Depart(connID string) int {
	p.directory.Detach(connID)

	displayName, _ := p.registry.DisplayName(connID)
	rooms := p.registry.Rooms(connID)

	notified := 0
	for _, roomID := range rooms {
		if p.notifyRoom(connID, displayName, roomID) {
			notified++
		}
	}

	if p.registry.Forget(connID) {
		p.log.Info("Connection left", "connection_id", connID, "display_name", displayName, "rooms", len(rooms))
	}
	return notified
}

// notifyRoom не дает сбою в одной комнате прервать обработку остальных
func (p *Presence) notifyRoom(connID, displayName, roomID string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("Failed to notify room about departure", "room_id", roomID, "connection_id", connID, "panic", rec)
			ok = false
		}
	}()

	p.directory.LeaveGroup(connID, roomID)

	env, err := NewEnvelope(OutDisconnected, DisconnectedPayload{ConnectionID: connID, DisplayName: displayName})
	if err == nil {
		err = p.directory.Broadcast(roomID, env, "")
	}
	if err != nil {
		p.log.Error("Failed to broadcast departure", "room_id", roomID, "connection_id", connID, "error", err)
		return false
	}
	return true
}
