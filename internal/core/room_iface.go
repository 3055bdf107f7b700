package core

import (
	"time"

	"github.com/dkeye/voicebridge/internal/domain"
)

// RoomEvents is notified after a registry mutation is committed, and only
// after the external call backing it succeeded.
type RoomEvents interface {
	RoomCreated(room domain.Room)
	UserJoined(room domain.Room, user domain.User)
	UserLeft(room domain.Room, user domain.User)
	RoomDestroyed(name domain.RoomName)
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	ID          domain.RoomID   `json:"id"`
	CreatedAt   time.Time       `json:"createdAt"`
	MemberCount int             `json:"memberCount"`
}
