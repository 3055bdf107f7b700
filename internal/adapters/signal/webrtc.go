package signal

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/voicebridge/internal/core"
	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type sdpPayload struct {
	RoomID   string `json:"roomId"`
	SDP      string `json:"sdp"`
	TargetID string `json:"targetId,omitempty"`
}

type candidatePayload struct {
	webrtc.ICECandidateInit
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId,omitempty"`
}

func (ctl *SignalWSController) handleOffer(sid core.SessionID, c core.SignalConnection, rid string, data []byte) {
	var p sdpPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.badPayload(c, opSendOffer, rid, err)
		return
	}
	err := ctl.Orch.RouteOffer(domain.SdpMessage{
		Type:     domain.SdpOffer,
		SDP:      p.SDP,
		RoomID:   domain.RoomName(p.RoomID),
		UserID:   domain.UserID(sid),
		TargetID: domain.UserID(p.TargetID),
	})
	ctl.routed(sid, c, opSendOffer, rid, err)
}

func (ctl *SignalWSController) handleAnswer(sid core.SessionID, c core.SignalConnection, rid string, data []byte) {
	var p sdpPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.badPayload(c, opSendAnswer, rid, err)
		return
	}
	err := ctl.Orch.RouteAnswer(domain.SdpMessage{
		Type:     domain.SdpAnswer,
		SDP:      p.SDP,
		RoomID:   domain.RoomName(p.RoomID),
		UserID:   domain.UserID(sid),
		TargetID: domain.UserID(p.TargetID),
	})
	ctl.routed(sid, c, opSendAnswer, rid, err)
}

func (ctl *SignalWSController) handleCandidate(sid core.SessionID, c core.SignalConnection, rid string, data []byte) {
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.badPayload(c, opSendIceCandidate, rid, err)
		return
	}
	err := ctl.Orch.RouteIceCandidate(domain.IceCandidate{
		Candidate:     p.Candidate,
		SdpMid:        p.SDPMid,
		SdpMLineIndex: p.SDPMLineIndex,
		RoomID:        domain.RoomName(p.RoomID),
		UserID:        domain.UserID(sid),
		TargetID:      domain.UserID(p.TargetID),
	})
	ctl.routed(sid, c, opSendIceCandidate, rid, err)
}

// routed reports the outcome of a relayed message. Out-of-order negotiation
// messages are dropped without telling the client; any other failure in the
// same fan-out is still reported.
func (ctl *SignalWSController) routed(sid core.SessionID, c core.SignalConnection, op, rid string, err error) {
	dropped, failed := splitRelayErrors(err)
	for _, e := range dropped {
		log.Warn().Err(e).Str("module", "signal").Str("sid", string(sid)).Str("op", op).Msg("negotiation message dropped")
	}
	switch {
	case len(failed) > 0:
		err = errors.Join(failed...)
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("op", op).Msg("relay failed")
		ctl.replyError(c, op, rid, err)
	case len(dropped) == 0 && rid != "":
		ctl.reply(c, op, rid, nil)
	}
}

// splitRelayErrors separates negotiation-state errors from the rest, looking
// one level into an errors.Join result.
func splitRelayErrors(err error) (dropped, failed []error) {
	if err == nil {
		return nil, nil
	}
	errs := []error{err}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	}
	for _, e := range errs {
		if errors.Is(e, domain.ErrInvalidNegotiationState) {
			dropped = append(dropped, e)
		} else {
			failed = append(failed, e)
		}
	}
	return dropped, failed
}
