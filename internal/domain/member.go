package domain

// Member represents a user's participation in a room.
// No transport or lifecycle logic here.
type Member struct {
	User      *User
	SessionID string
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, sessionID string) *Member {
	return &Member{User: user, SessionID: sessionID}
}
