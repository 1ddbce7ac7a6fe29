package domain

import "time"

// CallState tracks a call through its lifecycle:
// pending -> accepted -> active -> {ended | timed_out}.
type CallState string

const (
	CallPending  CallState = "pending"
	CallAccepted CallState = "accepted"
	CallActive   CallState = "active"
	CallEnded    CallState = "ended"
	CallTimedOut CallState = "timed_out"
)

// CallerInfo is display metadata for a caller waiting to go on-air.
type CallerInfo struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Topic       string `json:"topic,omitempty"`
}

// CallRequest is one entry in a session's FIFO call queue.
type CallRequest struct {
	ID                 string     `json:"id"`
	BroadcastID        string     `json:"broadcast_id"`
	CallerConnectionID string     `json:"caller_connection_id"`
	Caller             CallerInfo `json:"caller"`
	State              CallState  `json:"state"`
	RequestedAt        time.Time  `json:"requested_at"`
}

// ActiveCall is a call that the broadcaster accepted and put on-air.
type ActiveCall struct {
	CallRequest
	AcceptedAt    time.Time `json:"accepted_at"`
	AudioSourceID string    `json:"audio_source_id"`
}
