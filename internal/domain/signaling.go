package domain

type SdpType string

const (
	SdpOffer  SdpType = "offer"
	SdpAnswer SdpType = "answer"
)

// SdpMessage is relayed between peers and never stored. UserID is the sender,
// TargetID the intended receiver (empty means every other member).
type SdpMessage struct {
	Type     SdpType  `json:"type"`
	SDP      string   `json:"sdp"`
	RoomID   RoomName `json:"roomId"`
	UserID   UserID   `json:"userId"`
	TargetID UserID   `json:"targetId,omitempty"`
}

type IceCandidate struct {
	Candidate     string   `json:"candidate"`
	SdpMid        *string  `json:"sdpMid,omitempty"`
	SdpMLineIndex *uint16  `json:"sdpMLineIndex,omitempty"`
	RoomID        RoomName `json:"roomId"`
	UserID        UserID   `json:"userId"`
	TargetID      UserID   `json:"targetId,omitempty"`
}
