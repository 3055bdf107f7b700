package orch

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/voicebridge/internal/core"
	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// disconnectTimeout bounds the media-service calls made on behalf of a
// connection that is already gone.
const disconnectTimeout = 10 * time.Second

func (o *Orchestrator) OnConnect(sid core.SessionID, token, displayName string, cancel context.CancelFunc) domain.User {
	return o.Registry.Bind(sid, token, displayName, cancel)
}

// OnDisconnect performs the implicit leave. It never fails; problems are
// logged and cleanup continues.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	uid := domain.UserID(sid)
	if room, ok := o.Rooms.FindRoomByUser(uid); ok {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		err := o.Rooms.LeaveRoom(ctx, room.Name, uid)
		cancel()
		if err != nil && !errors.Is(err, domain.ErrUserNotInRoom) {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(room.Name)).Msg("implicit leave failed")
		}
	}
	o.Links.CloseUser(uid)
	o.Registry.Unbind(sid)
}

func (o *Orchestrator) CreateRoom(ctx context.Context, sid core.SessionID, raw string) (domain.Room, error) {
	name, err := domain.NewRoomName(raw)
	if err != nil {
		return domain.Room{}, err
	}
	if _, err := o.user(sid); err != nil {
		return domain.Room{}, err
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(name)).Msg("create room")
	return o.Rooms.CreateRoom(ctx, name)
}

func (o *Orchestrator) JoinRoom(ctx context.Context, sid core.SessionID, raw string) (domain.Room, error) {
	name, err := domain.NewRoomName(raw)
	if err != nil {
		return domain.Room{}, err
	}
	u, err := o.user(sid)
	if err != nil {
		return domain.Room{}, err
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(name)).Msg("join")
	return o.Rooms.JoinRoom(ctx, name, u)
}

func (o *Orchestrator) LeaveRoom(ctx context.Context, sid core.SessionID, raw string) error {
	name, err := domain.NewRoomName(raw)
	if err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(name)).Msg("leave")
	return o.Rooms.LeaveRoom(ctx, name, domain.UserID(sid))
}

// Rename changes the display name and tells the user's room about it.
func (o *Orchestrator) Rename(sid core.SessionID, name string) (domain.User, error) {
	u, err := o.Registry.UpdateUsername(sid, name)
	if err != nil {
		return domain.User{}, err
	}
	if room, ok := o.Rooms.UpdateMember(u); ok {
		o.Transport.SendToGroup(string(room), core.EventUserUpdated, memberEvent{Room: room, User: u})
	}
	return u, nil
}

type WhoAmI struct {
	User domain.User  `json:"user"`
	Room *domain.Room `json:"room,omitempty"`
}

func (o *Orchestrator) WhoAmI(sid core.SessionID) (WhoAmI, error) {
	u, err := o.user(sid)
	if err != nil {
		return WhoAmI{}, err
	}
	out := WhoAmI{User: u}
	if room, ok := o.Rooms.FindRoomByUser(u.ID); ok {
		out.Room = &room
	}
	return out, nil
}

func (o *Orchestrator) ListRooms() []core.RoomInfo {
	return o.Rooms.List()
}

func (o *Orchestrator) GetRoom(raw string) (domain.Room, error) {
	name, err := domain.NewRoomName(raw)
	if err != nil {
		return domain.Room{}, err
	}
	room, ok := o.Rooms.GetRoom(name)
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	return room, nil
}

func (o *Orchestrator) user(sid core.SessionID) (domain.User, error) {
	u, ok := o.Registry.User(sid)
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}
