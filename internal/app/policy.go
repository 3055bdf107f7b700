package app

import "github.com/dkeye/voicebridge/internal/core"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

func (a BackpressureAction) String() string {
	switch a {
	case DropFrame:
		return "drop"
	case KickMember:
		return "kick"
	default:
		return "unknown"
	}
}

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(sid core.SessionID, event string) BackpressureAction
}

// SimplePolicy drops the connection on any overflow.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.SessionID, string) BackpressureAction {
	return KickMember
}

// LenientPolicy drops room-list broadcasts and kicks on anything else.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(_ core.SessionID, event string) BackpressureAction {
	switch event {
	case core.EventRoomCreated, core.EventRoomDestroyed:
		return DropFrame
	default:
		return KickMember
	}
}
