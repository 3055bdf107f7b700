// Package negotiation tracks the offer/answer exchange between each pair of
// room members and holds back ICE candidates that arrive too early.
package negotiation

import (
	"fmt"

	"github.com/dkeye/voicebridge/internal/domain"
)

type State int

const (
	New State = iota
	HaveLocalOffer
	HaveRemoteOffer
	Stable
	Closed
)

func (s State) String() string {
	switch s {
	case New:
		return "new"
	case HaveLocalOffer:
		return "have-local-offer"
	case HaveRemoteOffer:
		return "have-remote-offer"
	case Stable:
		return "stable"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// HasRemoteDescription reports whether candidates from the remote side can be
// applied in this state.
func (s State) HasRemoteDescription() bool {
	return s == HaveRemoteOffer || s == Stable
}

func invalid(op string, s State) error {
	return fmt.Errorf("%w: %s in state %s", domain.ErrInvalidNegotiationState, op, s)
}
