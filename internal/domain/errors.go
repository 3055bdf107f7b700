package domain

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrAlreadyExists           = errors.New("already exists")
	ErrUserNotInRoom           = errors.New("user not in room")
	ErrAlreadyInRoom           = errors.New("user already in another room")
	ErrInvalidNegotiationState = errors.New("invalid negotiation state")
	ErrExternalService         = errors.New("media service error")
	ErrTransport               = errors.New("transport error")

	ErrInvalidRoomName = errors.New("invalid room name")
	ErrInvalidSDP      = errors.New("invalid sdp")
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrRateLimited     = errors.New("rate limited")
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrNotFound, "room not found"},
	{ErrAlreadyExists, "room already exists"},
	{ErrUserNotInRoom, "you are not a member of this room"},
	{ErrAlreadyInRoom, "leave your current room first"},
	{ErrInvalidNegotiationState, "negotiation message out of order"},
	{ErrExternalService, "media service unavailable, try again"},
	{ErrTransport, "peer unreachable"},
	{ErrInvalidRoomName, "room name must be 1-36 characters"},
	{ErrInvalidSDP, "malformed session description"},
	{ErrUsernameTooLong, "name too long"},
	{ErrUsernameEmpty, "empty name"},
	{ErrRateLimited, "too many requests"},
}

// Reason maps err to the text shown to the client that caused it.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal error"
}
