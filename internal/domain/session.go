package domain

import "time"

// BroadcasterInfo is display metadata for the host of a broadcast,
// immutable for the lifetime of the session.
type BroadcasterInfo struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	ShowTitle   string `json:"show_title,omitempty"`
}

// SessionStats is a point-in-time snapshot of one broadcast session.
type SessionStats struct {
	BroadcastID      string    `json:"broadcast_id"`
	IsLive           bool      `json:"is_live"`
	ListenerCount    int       `json:"listener_count"`
	PeakListeners    int       `json:"peak_listeners"`
	AudioSourceCount int       `json:"audio_source_count"`
	QueuedCalls      int       `json:"queued_calls"`
	ActiveCalls      int       `json:"active_calls"`
	TotalCalls       int       `json:"total_calls"`
	TotalMessages    int       `json:"total_messages"`
	StartTime        time.Time `json:"start_time"`
	UptimeSeconds    int64     `json:"uptime_seconds"`
}
