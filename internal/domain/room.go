package domain

import (
	"strings"
	"time"
)

const MaxRoomNameLen = 36

type (
	RoomName string
	RoomID   string
)

// Room is the registry view of a voice room. ID is assigned by the media
// service when the room is created.
type Room struct {
	ID        RoomID    `json:"id"`
	Name      RoomName  `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Members   []User    `json:"members"`
}

// NewRoomName trims and validates a client supplied room name.
func NewRoomName(raw string) (RoomName, error) {
	name := strings.TrimSpace(raw)
	if name == "" || len(name) > MaxRoomNameLen {
		return "", ErrInvalidRoomName
	}
	return RoomName(name), nil
}
