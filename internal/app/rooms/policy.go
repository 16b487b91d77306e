package rooms

import "github.com/dkeye/jsonrpcd/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a member whose transport pushed back
// during a broadcast.
type Policy interface {
	OnBackPressure(room *Room, sid core.SessionID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*Room, core.SessionID) BackpressureAction {
	return KickMember
}

// TolerantPolicy never kicks; slow members just miss messages.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(*Room, core.SessionID) BackpressureAction {
	return NoAction
}
