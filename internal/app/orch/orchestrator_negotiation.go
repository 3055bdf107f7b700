package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/voicebridge/internal/app/negotiation"
	"github.com/dkeye/voicebridge/internal/core"
	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// RouteOffer relays an offer to msg.TargetID, or to every other member when
// no target is set. Candidates the sender trickled early follow the offer.
func (o *Orchestrator) RouteOffer(msg domain.SdpMessage) error {
	msg.Type = domain.SdpOffer
	targets, err := o.targets(msg.RoomID, msg.UserID, msg.TargetID, domain.ErrUserNotInRoom)
	if err != nil {
		return err
	}
	if err := negotiation.ValidateSDP(msg.Type, msg.SDP); err != nil {
		return err
	}

	var errs []error
	for _, to := range targets {
		flush, err := o.Links.Offer(msg.UserID, to)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out := msg
		out.TargetID = to
		if err := o.Transport.SendToConnection(core.SessionID(to), core.EventReceiveSdpOffer, out); err != nil {
			errs = append(errs, err)
			continue
		}
		o.flush(to, flush)
	}
	return errors.Join(errs...)
}

// RouteAnswer relays an answer back to the offerer. Without a target the
// offerer is inferred, which only works while exactly one offer is pending.
// An answer to an offerer who already left is a negotiation error.
func (o *Orchestrator) RouteAnswer(msg domain.SdpMessage) error {
	msg.Type = domain.SdpAnswer
	if msg.TargetID == "" {
		pending := o.Links.AwaitingAnswer(msg.UserID)
		if len(pending) != 1 {
			return fmt.Errorf("%w: answer without target, %d offers pending", domain.ErrInvalidNegotiationState, len(pending))
		}
		msg.TargetID = pending[0]
	}
	if _, err := o.targets(msg.RoomID, msg.UserID, msg.TargetID, domain.ErrInvalidNegotiationState); err != nil {
		return err
	}
	if err := negotiation.ValidateSDP(msg.Type, msg.SDP); err != nil {
		return err
	}

	flush, err := o.Links.Answer(msg.UserID, msg.TargetID)
	if err != nil {
		return err
	}
	if err := o.Transport.SendToConnection(core.SessionID(msg.TargetID), core.EventReceiveSdpAnswer, msg); err != nil {
		return err
	}
	o.flush(msg.TargetID, flush)
	return nil
}

// RouteIceCandidate forwards c to peers that already have a remote
// description and queues it for the rest. A candidate for a peer who left is a
// negotiation error.
func (o *Orchestrator) RouteIceCandidate(c domain.IceCandidate) error {
	targets, err := o.targets(c.RoomID, c.UserID, c.TargetID, domain.ErrInvalidNegotiationState)
	if err != nil {
		return err
	}

	var errs []error
	for _, to := range targets {
		out := c
		out.TargetID = to
		deliver, err := o.Links.Candidate(c.UserID, to, out)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !deliver {
			continue
		}
		if err := o.Transport.SendToConnection(core.SessionID(to), core.EventReceiveIceCandidate, out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// targets checks that from is in room and resolves the receivers. A target
// that is not a member fails with gone.
func (o *Orchestrator) targets(room domain.RoomName, from, target domain.UserID, gone error) ([]domain.UserID, error) {
	members, err := o.Rooms.Members(room)
	if err != nil {
		return nil, fmt.Errorf("room %q: %w", room, domain.ErrUserNotInRoom)
	}
	var (
		out      []domain.UserID
		isMember bool
		found    bool
	)
	for _, m := range members {
		switch m.ID {
		case from:
			isMember = true
		case target:
			found = true
		}
		if m.ID != from && (target == "" || m.ID == target) {
			out = append(out, m.ID)
		}
	}
	if !isMember {
		return nil, fmt.Errorf("sender %s in room %q: %w", from, room, domain.ErrUserNotInRoom)
	}
	if target != "" && !found {
		return nil, fmt.Errorf("target %s not in room %q: %w", target, room, gone)
	}
	return out, nil
}

func (o *Orchestrator) flush(to domain.UserID, cands []domain.IceCandidate) {
	for _, c := range cands {
		if err := o.Transport.SendToConnection(core.SessionID(to), core.EventReceiveIceCandidate, c); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("to", string(to)).Msg("queued candidate lost")
			return
		}
	}
}
