package core

// Frame is a raw encoded payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Transport is the delivery capability the signaling core depends on.
// Group ids are room names.
type Transport interface {
	SendToAll(event string, payload any)
	SendToGroup(group string, event string, payload any)
	SendToConnection(sid SessionID, event string, payload any) error
	AddToGroup(sid SessionID, group string)
	RemoveFromGroup(sid SessionID, group string)
}

// Outbound event names.
const (
	EventRoomCreated         = "RoomCreated"
	EventRoomDestroyed       = "RoomDestroyed"
	EventUserJoined          = "UserJoined"
	EventUserLeft            = "UserLeft"
	EventUserUpdated         = "UserUpdated"
	EventReceiveSdpOffer     = "ReceiveSdpOffer"
	EventReceiveSdpAnswer    = "ReceiveSdpAnswer"
	EventReceiveIceCandidate = "ReceiveIceCandidate"
)
