package orch

import (
	"github.com/dkeye/voicebridge/internal/app"
	"github.com/dkeye/voicebridge/internal/app/negotiation"
	"github.com/dkeye/voicebridge/internal/core"
	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator routes client operations to the room registry and the
// negotiation table, and turns their results into events on Transport.
type Orchestrator struct {
	Registry  *app.Registry
	Rooms     *app.RoomManager
	Links     *negotiation.Table
	Transport core.Transport
}

func New(reg *app.Registry, rooms *app.RoomManager, links *negotiation.Table, transport core.Transport) *Orchestrator {
	o := &Orchestrator{
		Registry:  reg,
		Rooms:     rooms,
		Links:     links,
		Transport: transport,
	}
	rooms.SetEvents(o)
	return o
}

func (o *Orchestrator) RoomCreated(room domain.Room) {
	o.Transport.SendToAll(core.EventRoomCreated, room)
}

func (o *Orchestrator) RoomDestroyed(name domain.RoomName) {
	o.Transport.SendToAll(core.EventRoomDestroyed, struct {
		Name domain.RoomName `json:"name"`
	}{name})
}

// UserJoined is delivered to the joiner too.
func (o *Orchestrator) UserJoined(room domain.Room, user domain.User) {
	o.Transport.AddToGroup(core.SessionID(user.ID), string(room.Name))
	o.Transport.SendToGroup(string(room.Name), core.EventUserJoined, memberEvent{Room: room.Name, User: user})
}

func (o *Orchestrator) UserLeft(room domain.Room, user domain.User) {
	o.Transport.RemoveFromGroup(core.SessionID(user.ID), string(room.Name))
	if n := o.Links.CloseUser(user.ID); n > 0 {
		log.Debug().Str("module", "orch").Str("user", string(user.ID)).Int("links", n).Msg("negotiation reset on leave")
	}
	o.Transport.SendToGroup(string(room.Name), core.EventUserLeft, memberEvent{Room: room.Name, User: user})
}

type memberEvent struct {
	Room domain.RoomName `json:"roomId"`
	User domain.User     `json:"user"`
}
