package negotiation

import "github.com/dkeye/voicebridge/internal/domain"

// Link is one direction of a peer pair as seen by Local. Not safe for
// concurrent use; Table serializes access.
type Link struct {
	Local  domain.UserID
	Remote domain.UserID

	state   State
	pending []domain.IceCandidate
}

func NewLink(local, remote domain.UserID) *Link {
	return &Link{Local: local, Remote: remote}
}

func (l *Link) State() State { return l.state }

// Pending is the number of remote candidates held back.
func (l *Link) Pending() int { return len(l.pending) }

func (l *Link) SendOffer() error {
	if l.state != New {
		return invalid("send offer", l.state)
	}
	l.state = HaveLocalOffer
	return nil
}

// ReceiveOffer applies a remote offer and releases held candidates in arrival
// order.
func (l *Link) ReceiveOffer() ([]domain.IceCandidate, error) {
	if l.state != New {
		return nil, invalid("receive offer", l.state)
	}
	l.state = HaveRemoteOffer
	return l.drain(), nil
}

func (l *Link) SendAnswer() error {
	if l.state != HaveRemoteOffer {
		return invalid("send answer", l.state)
	}
	l.state = Stable
	return nil
}

func (l *Link) ReceiveAnswer() ([]domain.IceCandidate, error) {
	if l.state != HaveLocalOffer {
		return nil, invalid("receive answer", l.state)
	}
	l.state = Stable
	return l.drain(), nil
}

// AddCandidate reports whether c may be delivered now. Otherwise it is queued
// until a remote description is applied.
func (l *Link) AddCandidate(c domain.IceCandidate) (bool, error) {
	switch {
	case l.state == Closed:
		return false, invalid("add candidate", l.state)
	case l.state.HasRemoteDescription():
		return true, nil
	default:
		l.pending = append(l.pending, c)
		return false, nil
	}
}

// Close discards queued candidates and returns how many were dropped.
func (l *Link) Close() int {
	n := len(l.pending)
	l.pending = nil
	l.state = Closed
	return n
}

func (l *Link) drain() []domain.IceCandidate {
	out := l.pending
	l.pending = nil
	return out
}
