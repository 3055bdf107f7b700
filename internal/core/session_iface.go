package core

// SessionID identifies one transport connection. It doubles as the user id
// for as long as the connection lives.
type SessionID string
