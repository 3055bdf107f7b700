package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/voicebridge/internal/core"
	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/rs/zerolog/log"
)

type roomPayload struct {
	Name string `json:"name"`
}

func (ctl *SignalWSController) allowRoomOp(sid core.SessionID) bool {
	return ctl.opts.RoomOps == nil || ctl.opts.RoomOps.Allow(domain.UserID(sid))
}

func (ctl *SignalWSController) handleCreateRoom(ctx context.Context, sid core.SessionID, c core.SignalConnection, rid string, data []byte) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.badPayload(c, opCreateRoom, rid, err)
		return
	}
	if !ctl.allowRoomOp(sid) {
		ctl.replyError(c, opCreateRoom, rid, domain.ErrRateLimited)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, ctl.opts.OpTimeout)
	defer cancel()
	room, err := ctl.Orch.CreateRoom(ctx, sid, p.Name)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", p.Name).Msg("create room rejected")
		ctl.replyError(c, opCreateRoom, rid, err)
		return
	}
	ctl.reply(c, opCreateRoom, rid, room)
}

func (ctl *SignalWSController) handleJoinRoom(ctx context.Context, sid core.SessionID, c core.SignalConnection, rid string, data []byte) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.badPayload(c, opJoinRoom, rid, err)
		return
	}
	if !ctl.allowRoomOp(sid) {
		ctl.replyError(c, opJoinRoom, rid, domain.ErrRateLimited)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, ctl.opts.OpTimeout)
	defer cancel()
	room, err := ctl.Orch.JoinRoom(ctx, sid, p.Name)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", p.Name).Msg("join rejected")
		ctl.replyError(c, opJoinRoom, rid, err)
		return
	}
	ctl.reply(c, opJoinRoom, rid, room)
}

// handleLeaveRoom leaves the room; the connection stays open.
func (ctl *SignalWSController) handleLeaveRoom(ctx context.Context, sid core.SessionID, c core.SignalConnection, rid string, data []byte) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.badPayload(c, opLeaveRoom, rid, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, ctl.opts.OpTimeout)
	defer cancel()
	if err := ctl.Orch.LeaveRoom(ctx, sid, p.Name); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", p.Name).Msg("leave rejected")
		ctl.replyError(c, opLeaveRoom, rid, err)
		return
	}
	ctl.reply(c, opLeaveRoom, rid, roomPayload{Name: p.Name})
}
