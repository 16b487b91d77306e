package rooms

import (
	"errors"
	"sort"
	"sync"

	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/dkeye/jsonrpcd/internal/domain"
	"github.com/rs/zerolog/log"
)

// PublishResult reports delivery stats of a broadcast. Dropped lists
// members whose transport pushed back; Undelivered counts members that
// currently have no usable transport, e.g. while awaiting reconnect.
type PublishResult struct {
	SendTo      int
	Dropped     []core.SessionID
	Undelivered int
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

type member struct {
	meta    *domain.Member
	session *core.Session
}

// Room is a threadsafe in-memory room. It never closes sessions or
// transports; it only writes to them.
type Room struct {
	room  *domain.Room
	mu    sync.RWMutex
	bySID map[core.SessionID]member
}

func NewRoom(room *domain.Room) *Room {
	return &Room{
		room:  room,
		bySID: make(map[core.SessionID]member),
	}
}

func (r *Room) Room() *domain.Room { return r.room }

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *Room) AddMember(s *core.Session, user *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[s.ID()] = member{meta: domain.NewMember(user, string(s.ID())), session: s}
	log.Info().Str("module", "app.rooms").Str("room", string(r.room.Name)).Str("sid", string(s.ID())).Str("user", string(user.ID)).Msg("member added")
}

// Session returns the session of member sid.
func (r *Room) Session(sid core.SessionID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.bySID[sid]
	if !ok {
		return nil, false
	}
	return m.session, true
}

// RemoveMember reports whether sid was a member.
func (r *Room) RemoveMember(sid core.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		return false
	}
	delete(r.bySID, sid)
	log.Info().Str("module", "app.rooms").Str("room", string(r.room.Name)).Str("sid", string(sid)).Msg("member removed")
	return true
}

// Broadcast sends a notification to every member except from.
func (r *Room) Broadcast(from core.SessionID, method string, params any) PublishResult {
	r.mu.RLock()
	targets := make([]member, 0, len(r.bySID))
	for sid, m := range r.bySID {
		if sid != from {
			targets = append(targets, m)
		}
	}
	r.mu.RUnlock()

	res := PublishResult{}
	for _, m := range targets {
		if err := m.session.SendNotification(method, params); err != nil {
			if errors.Is(err, core.ErrBackpressure) {
				res.Dropped = append(res.Dropped, m.session.ID())
			} else {
				res.Undelivered++
			}
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.rooms").Str("from", string(from)).Str("method", method).
		Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Int("undelivered", res.Undelivered).Msg("broadcast result")
	return res
}

func (r *Room) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for _, m := range r.bySID {
		u := m.meta.User
		out = append(out, MemberDTO{ID: u.ID, Username: u.Username})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
