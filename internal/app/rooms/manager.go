package rooms

import (
	"sort"
	"sync"

	"github.com/dkeye/jsonrpcd/internal/domain"
)

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

type Manager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]*Room
}

func NewManager() *Manager {
	return &Manager{rooms: make(map[domain.RoomName]*Room)}
}

func (m *Manager) GetOrCreate(name domain.RoomName) *Room {
	if len(name) > domain.MaxRoomNameLen {
		name = name[:domain.MaxRoomNameLen]
	}
	m.mu.RLock()
	room, ok := m.rooms[name]
	m.mu.RUnlock()
	if ok {
		return room
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[name]; ok {
		return room
	}
	room = NewRoom(domain.NewRoom(name))
	m.rooms[room.Room().Name] = room
	return room
}

func (m *Manager) Get(name domain.RoomName) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[name]
	return room, ok
}

func (m *Manager) List() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for name, r := range m.rooms {
		out = append(out, RoomInfo{Name: name, MemberCount: r.MemberCount()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StopIfEmpty drops the room once its last member left.
func (m *Manager) StopIfEmpty(name domain.RoomName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[name]; ok && room.MemberCount() == 0 {
		delete(m.rooms, name)
	}
}
