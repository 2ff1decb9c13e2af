package realtime

import (
	"slices"
	"sync"
)

type connectionEntry struct {
	displayName string
	rooms       []string
}

// Registry хранит имя каждого живого соединения и комнаты, в которые оно вошло.
// Живет только в памяти процесса; после рестарта клиенты заново шлют join.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connectionEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*connectionEntry)}
}

func (r *Registry) entry(connID string) *connectionEntry {
	e, ok := r.conns[connID]
	if !ok {
		e = &connectionEntry{}
		r.conns[connID] = e
	}
	return e
}

// Register повторно перезаписывает имя
func (r *Registry) Register(connID, displayName string) {
	r.mu.Lock()
	r.entry(connID).displayName = displayName
	r.mu.Unlock()
}

func (r *Registry) DisplayName(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	return e.displayName, true
}

func (r *Registry) AddRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(connID)
	if !slices.Contains(e.rooms, roomID) {
		e.rooms = append(e.rooms, roomID)
	}
}

func (r *Registry) RemoveRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return
	}
	if i := slices.Index(e.rooms, roomID); i >= 0 {
		e.rooms = slices.Delete(e.rooms, i, i+1)
	}
}

// Rooms возвращает копию в порядке входа
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok {
		return nil
	}
	return slices.Clone(e.rooms)
}

// Forget удаляет соединение; повторный вызов ничего не делает
func (r *Registry) Forget(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return false
	}
	delete(r.conns, connID)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
