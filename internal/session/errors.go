package session

import "errors"

// Sentinel errors for store operations. Part of the public API; check with
// errors.Is.
var (
	// ErrSessionNotFound indicates the session does not exist. Returned by
	// AppendMessage and Session; RecentMessages treats an unknown session
	// as empty history instead.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists indicates a CreateSession collision on session id.
	// Uniqueness is enforced by the store's primary key.
	ErrSessionExists = errors.New("session already exists")

	// ErrInvalidRole indicates a message role outside user/assistant/system.
	ErrInvalidRole = errors.New("invalid message role")
)
