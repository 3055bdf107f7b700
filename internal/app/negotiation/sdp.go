package negotiation

import (
	"fmt"

	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// ValidateSDP checks that raw parses as a session description of kind t and
// carries at least one audio section.
func ValidateSDP(t domain.SdpType, raw string) error {
	switch webrtc.NewSDPType(string(t)) {
	case webrtc.SDPTypeOffer, webrtc.SDPTypeAnswer:
	default:
		return fmt.Errorf("%w: unsupported type %q", domain.ErrInvalidSDP, t)
	}

	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSDP, err)
	}
	for _, m := range desc.MediaDescriptions {
		if m.MediaName.Media == "audio" {
			return nil
		}
	}
	return fmt.Errorf("%w: no audio section", domain.ErrInvalidSDP)
}
