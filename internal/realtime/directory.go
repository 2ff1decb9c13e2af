package realtime

import (
	"encoding/json"
	"slices"
	"sync"

	"collab_editor/pkg/logger"
)

// Peer - исходящая сторона соединения. Send не блокирует: false означает,
// что кадр не принят (очередь заполнена или соединение закрыто).
type Peer interface {
	ID() string
	Send(frame []byte) bool
}

// Directory - групповой примитив поверх транспорта: кто сейчас в какой комнате.
// Комната создается при первом входе и исчезает, когда из нее выходит последний.
type Directory struct {
	mu    sync.RWMutex
	peers map[string]Peer
	rooms map[string][]string
	log   logger.Logger
}

func NewDirectory(log logger.Logger) *Directory {
	return &Directory{
		peers: make(map[string]Peer),
		rooms: make(map[string][]string),
		log:   log,
	}
}

func (d *Directory) Attach(p Peer) {
	d.mu.Lock()
	d.peers[p.ID()] = p
	d.mu.Unlock()
}

// Detach убирает транспорт соединения; членство в комнатах снимает LeaveGroup
func (d *Directory) Detach(connID string) {
	d.mu.Lock()
	delete(d.peers, connID)
	d.mu.Unlock()
}

// JoinGroup идемпотентен, возвращает true если членство изменилось
func (d *Directory) JoinGroup(connID, roomID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	members := d.rooms[roomID]
	if slices.Contains(members, connID) {
		return false
	}
	d.rooms[roomID] = append(members, connID)
	return true
}

func (d *Directory) LeaveGroup(connID, roomID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	members := d.rooms[roomID]
	i := slices.Index(members, connID)
	if i < 0 {
		return false
	}
	members = slices.Delete(members, i, i+1)
	if len(members) == 0 {
		delete(d.rooms, roomID)
	} else {
		d.rooms[roomID] = members
	}
	return true
}

// MembersOf возвращает участников в порядке входа
func (d *Directory) MembersOf(roomID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.rooms[roomID])
}

func (d *Directory) IsMember(connID, roomID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Contains(d.rooms[roomID], connID)
}

// Broadcast рассылает кадр всем участникам комнаты кроме exclude (пустая строка - всем).
// Отказ одного получателя не мешает остальным.
func (d *Directory) Broadcast(roomID string, env Envelope, exclude string) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}

	d.mu.RLock()
	targets := make([]Peer, 0, len(d.rooms[roomID]))
	for _, connID := range d.rooms[roomID] {
		if connID == exclude {
			continue
		}
		if p, ok := d.peers[connID]; ok {
			targets = append(targets, p)
		}
	}
	d.mu.RUnlock()

	for _, p := range targets {
		d.deliver(p, env.Event, frame)
	}
	return nil
}

// Unicast отправляет кадр одному соединению; неизвестный получатель молча пропускается
func (d *Directory) Unicast(connID string, env Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}

	d.mu.RLock()
	p, ok := d.peers[connID]
	d.mu.RUnlock()
	if !ok {
		d.log.Debug("Unicast target is not connected", "connection_id", connID, "event", env.Event)
		return nil
	}

	d.deliver(p, env.Event, frame)
	return nil
}

// deliver изолирует получателя: паника в его транспорте не мешает остальным
func (d *Directory) deliver(p Peer, event string, frame []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("Peer send panicked", "connection_id", p.ID(), "event", event, "panic", rec)
		}
	}()
	if !p.Send(frame) {
		d.log.Warn("Dropping frame for slow or closed connection", "connection_id", p.ID(), "event", event)
	}
}

// Peers возвращает снимок подключенных соединений
func (d *Directory) Peers() []Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Peer, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p)
	}
	return out
}

func (d *Directory) ConnectionCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

func (d *Directory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
