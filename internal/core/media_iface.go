package core

import "context"

//go:generate mockgen -source=media_iface.go -destination=mocks/media_mock.go -package=mocks

// MediaService is the external audio-mixing service as seen by the room
// registry. Ids are opaque strings owned by the service.
type MediaService interface {
	CreateRoom(ctx context.Context, description string) (string, error)
	JoinRoom(ctx context.Context, externalRoomID, userID string) error
	LeaveRoom(ctx context.Context, externalRoomID, userID string) error
	DestroyRoom(ctx context.Context, externalRoomID string) error
}

// OrphanRecorder remembers external rooms whose teardown failed.
type OrphanRecorder interface {
	Record(ctx context.Context, externalRoomID, reason string) error
}
