// Package rooms is a small chat application served over the session layer:
// sessions join named rooms and exchange messages as notifications.
package rooms

import (
	"errors"
	"time"

	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/dkeye/jsonrpcd/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	MethodJoinRoom    = "joinRoom"
	MethodLeaveRoom   = "leaveRoom"
	MethodSendMessage = "sendMessage"
	MethodWhoAmI      = "whoami"
	MethodRename      = "rename"

	NotifyRoomMessage   = "roomMessage"
	NotifyMemberJoined  = "memberJoined"
	NotifyMemberLeft    = "memberLeft"
	NotifyMemberRenamed = "memberRenamed"

	attrUser = "rooms.user"
	attrRoom = "rooms.room"

	// CodeRateLimited answers a join that came too fast.
	CodeRateLimited = -32001
	// CodeNotInRoom answers sendMessage outside a room.
	CodeNotInRoom = -32002
)

var (
	errRoomRequired    = errors.New("room required")
	errMessageRequired = errors.New("message required")
)

type joinParams struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

type messageParams struct {
	Message string `json:"message"`
}

type renameParams struct {
	Name string `json:"name"`
}

// RoomMessage is the payload of a roomMessage notification.
type RoomMessage struct {
	Room    domain.RoomName `json:"room"`
	From    *domain.User    `json:"from"`
	Message string          `json:"message"`
}

// MemberEvent is the payload of member notifications.
type MemberEvent struct {
	Room   domain.RoomName `json:"room"`
	User   *domain.User    `json:"user"`
	Reason string          `json:"reason,omitempty"`
}

// ReasonKicked is sent with memberLeft when a slow member is removed.
const ReasonKicked = "kicked: slow consumer"

type Handler struct {
	core.NopHandler
	rooms   *Manager
	limiter *RateLimiter
	policy  Policy
}

func NewHandler(rooms *Manager, limiter *RateLimiter) *Handler {
	if limiter == nil {
		limiter = NewRateLimiter(5, 10*time.Second)
	}
	return &Handler{rooms: rooms, limiter: limiter, policy: SimplePolicy{}}
}

func (h *Handler) SetPolicy(p Policy) { h.policy = p }

func (h *Handler) Rooms() *Manager { return h.rooms }

// publish broadcasts and applies the backpressure policy to members that
// could not keep up.
func (h *Handler) publish(room *Room, from core.SessionID, method string, params any) PublishResult {
	res := room.Broadcast(from, method, params)
	if h.policy == nil {
		return res
	}
	for _, sid := range res.Dropped {
		if h.policy.OnBackPressure(room, sid) != KickMember {
			continue
		}
		if s, ok := room.Session(sid); ok {
			log.Warn().Str("module", "app.rooms").Str("room", string(room.Room().Name)).Str("sid", string(sid)).Msg("kicking slow member")
			h.leave(s, ReasonKicked)
		}
	}
	return res
}

func (h *Handler) AfterConnectionEstablished(s *core.Session) {
	s.SetAttribute(attrUser, domain.NewGuest(domain.UserID(s.ID())))
	log.Debug().Str("module", "app.rooms").Str("sid", string(s.ID())).Msg("session established")
}

func (h *Handler) AfterConnectionClosed(s *core.Session, reason string) {
	h.leave(s, reason)
	h.limiter.Forget(s.ID())
	log.Info().Str("module", "app.rooms").Str("sid", string(s.ID())).Str("reason", reason).Msg("session closed")
}

func (h *Handler) HandleTransportError(s *core.Session, err error) {
	ev := log.Warn().Str("module", "app.rooms").Err(err)
	if s != nil {
		ev = ev.Str("sid", string(s.ID()))
	}
	ev.Msg("transport error")
}

func (h *Handler) HandleRequest(s *core.Session, req *domain.Request, sender core.ResponseSender) error {
	var (
		result any
		err    error
	)
	switch req.Method {
	case MethodJoinRoom:
		result, err = h.join(s, req)
	case MethodLeaveRoom:
		result = map[string]any{"left": h.leave(s, "left")}
	case MethodSendMessage:
		result, err = h.sendMessage(s, req)
	case MethodWhoAmI:
		result = h.whoami(s)
	case MethodRename:
		result, err = h.rename(s, req)
	default:
		return domain.MethodNotFound(req.Method)
	}
	if err != nil {
		return err
	}
	if req.IsNotification() {
		return nil
	}
	return sender.SendResponse(domain.NewResult(string(s.ID()), req.ID, result))
}

func (h *Handler) user(s *core.Session) *domain.User {
	if v, ok := s.Attribute(attrUser); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	u := domain.NewGuest(domain.UserID(s.ID()))
	s.SetAttribute(attrUser, u)
	return u
}

func (h *Handler) currentRoom(s *core.Session) (domain.RoomName, bool) {
	v, ok := s.Attribute(attrRoom)
	if !ok {
		return "", false
	}
	name, ok := v.(domain.RoomName)
	return name, ok && name != ""
}

func (h *Handler) join(s *core.Session, req *domain.Request) (any, error) {
	var p joinParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, domain.InvalidParams(err)
	}
	if p.Room == "" {
		return nil, domain.InvalidParams(errRoomRequired)
	}
	if !h.limiter.Allow(s.ID()) {
		return nil, domain.NewResponseError(CodeRateLimited, "Too many join attempts")
	}

	user := h.user(s)
	if p.Name != "" {
		renamed := *user
		if err := renamed.SetUsername(p.Name); err != nil {
			return nil, domain.InvalidParams(err)
		}
		user = &renamed
		s.SetAttribute(attrUser, user)
	}

	if cur, ok := h.currentRoom(s); ok {
		if cur == domain.RoomName(p.Room) {
			room, _ := h.rooms.Get(cur)
			return joinResult(room), nil
		}
		h.leave(s, "switched room")
	}

	room := h.rooms.GetOrCreate(domain.RoomName(p.Room))
	room.AddMember(s, user)
	s.SetAttribute(attrRoom, room.Room().Name)
	h.publish(room, s.ID(), NotifyMemberJoined, MemberEvent{Room: room.Room().Name, User: user})
	return joinResult(room), nil
}

func joinResult(room *Room) any {
	if room == nil {
		return map[string]any{}
	}
	return map[string]any{
		"room":    room.Room().Name,
		"members": room.MembersSnapshot(),
	}
}

// leave removes s from its room, if any, and returns the room it left.
func (h *Handler) leave(s *core.Session, reason string) domain.RoomName {
	name, ok := h.currentRoom(s)
	if !ok {
		return ""
	}
	s.SetAttribute(attrRoom, domain.RoomName(""))
	room, ok := h.rooms.Get(name)
	if !ok {
		return name
	}
	if room.RemoveMember(s.ID()) {
		room.Broadcast(s.ID(), NotifyMemberLeft, MemberEvent{Room: name, User: h.user(s), Reason: reason})
	}
	h.rooms.StopIfEmpty(name)
	return name
}

func (h *Handler) sendMessage(s *core.Session, req *domain.Request) (any, error) {
	var p messageParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, domain.InvalidParams(err)
	}
	if p.Message == "" {
		return nil, domain.InvalidParams(errMessageRequired)
	}
	name, ok := h.currentRoom(s)
	if !ok {
		return nil, domain.NewResponseError(CodeNotInRoom, "Not in a room")
	}
	room, ok := h.rooms.Get(name)
	if !ok {
		return nil, domain.NewResponseError(CodeNotInRoom, "Not in a room")
	}
	res := h.publish(room, s.ID(), NotifyRoomMessage, RoomMessage{Room: name, From: h.user(s), Message: p.Message})
	return map[string]any{"delivered": res.SendTo}, nil
}

func (h *Handler) whoami(s *core.Session) any {
	out := map[string]any{"user": h.user(s)}
	if name, ok := h.currentRoom(s); ok {
		out["room"] = name
	}
	return out
}

func (h *Handler) rename(s *core.Session, req *domain.Request) (any, error) {
	var p renameParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, domain.InvalidParams(err)
	}
	renamed := *h.user(s)
	if err := renamed.SetUsername(p.Name); err != nil {
		return nil, domain.InvalidParams(err)
	}
	s.SetAttribute(attrUser, &renamed)
	if name, ok := h.currentRoom(s); ok {
		if room, ok := h.rooms.Get(name); ok {
			room.AddMember(s, &renamed)
			h.publish(room, s.ID(), NotifyMemberRenamed, MemberEvent{Room: name, User: &renamed})
		}
	}
	return &renamed, nil
}
