package domain

import "errors"

// Sentinel errors for the coordination core. Handlers map these to wire
// error codes; none of them is ever fatal to a session.
var (
	// ErrNotFound covers unknown broadcast, connection, call, or message
	// ids. Callers must tolerate it: late disconnects and accept/timeout
	// races make stale ids an expected condition.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyLive signals that a different connection already owns the
	// broadcast session. The existing session is untouched.
	ErrAlreadyLive = errors.New("broadcast already live")

	// ErrNotBroadcaster signals an operation reserved for the session's
	// current broadcaster.
	ErrNotBroadcaster = errors.New("not the session broadcaster")

	// Policy violations, rejected before persistence.
	ErrBanned         = errors.New("user is banned from this broadcast")
	ErrMuted          = errors.New("user is muted in this broadcast")
	ErrSlowMode       = errors.New("slow mode cooldown in effect")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrEmojiDisabled  = errors.New("emoji reactions are disabled")
)
