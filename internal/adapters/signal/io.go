package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/voicebridge/internal/core"
	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Inbound message types.
const (
	opCreateRoom       = "CreateRoom"
	opJoinRoom         = "JoinRoom"
	opLeaveRoom        = "LeaveRoom"
	opSendOffer        = "SendOffer"
	opSendAnswer       = "SendAnswer"
	opSendIceCandidate = "SendIceCandidate"
	opPing             = "Ping"
	opRename           = "Rename"
	opWhoAmI           = "WhoAmI"
	opListRooms        = "ListRooms"
)

// envelope is the frame shape for both directions. Server events carry the
// payload in Data; replies also echo Op and the client's RID.
type envelope struct {
	Type  string `json:"type"`
	RID   string `json:"rid,omitempty"`
	Op    string `json:"op,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func encodeEvent(event string, payload any) (core.Frame, error) {
	return json.Marshal(envelope{Type: event, Data: payload})
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(ctl.opts.WriteTimeout))
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		ctl.Orch.OnDisconnect(sid)
		ctl.Hub.Unregister(sid)
		if ctl.opts.RoomOps != nil {
			ctl.opts.RoomOps.Forget(domain.UserID(sid))
		}
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait)) }
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = extend()
		ctl.handleSignal(ctx, sid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, c core.SignalConnection, data []byte) {
	var env struct {
		Type string `json:"type"`
		RID  string `json:"rid"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendJSON(c, envelope{Type: "error", Error: "bad_payload"})
		return
	}

	switch env.Type {
	case opCreateRoom:
		ctl.handleCreateRoom(ctx, sid, c, env.RID, data)
	case opJoinRoom:
		ctl.handleJoinRoom(ctx, sid, c, env.RID, data)
	case opLeaveRoom:
		ctl.handleLeaveRoom(ctx, sid, c, env.RID, data)
	case opListRooms:
		ctl.reply(c, opListRooms, env.RID, ctl.Orch.ListRooms())
	case opSendOffer:
		ctl.handleOffer(sid, c, env.RID, data)
	case opSendAnswer:
		ctl.handleAnswer(sid, c, env.RID, data)
	case opSendIceCandidate:
		ctl.handleCandidate(sid, c, env.RID, data)
	case opPing:
		ctl.handlePing(c, env.RID)
	case opRename:
		ctl.handleRename(sid, c, env.RID, data)
	case opWhoAmI:
		ctl.handleWhoAmI(sid, c, env.RID)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendJSON(c, envelope{Type: "error", RID: env.RID, Op: env.Type, Error: "unknown_type"})
	}
}

func (ctl *SignalWSController) reply(c core.SignalConnection, op, rid string, data any) {
	ctl.sendJSON(c, envelope{Type: "result", RID: rid, Op: op, Data: data})
}

// replyError tells only the caller why its request failed.
func (ctl *SignalWSController) replyError(c core.SignalConnection, op, rid string, err error) {
	ctl.sendJSON(c, envelope{Type: "error", RID: rid, Op: op, Error: domain.Reason(err)})
}

func (ctl *SignalWSController) badPayload(c core.SignalConnection, op, rid string, err error) {
	log.Warn().Err(err).Str("module", "signal").Str("op", op).Msg("bad payload")
	ctl.sendJSON(c, envelope{Type: "error", RID: rid, Op: op, Error: "bad_payload"})
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
