package kafka

import (
	"context"
	"time"
)

// Broadcast lifecycle event types published for downstream analytics.
const (
	EventBroadcastStarted = "broadcast_started"
	EventBroadcastStopped = "broadcast_stopped"
	EventCallAccepted     = "call_accepted"
)

// Stop reasons.
const (
	ReasonExplicit   = "explicit"
	ReasonDisconnect = "disconnect"
	ReasonShutdown   = "shutdown"
)

// BroadcastEvent is the payload published per lifecycle change.
type BroadcastEvent struct {
	Type          string    `json:"type"`
	BroadcastID   string    `json:"broadcast_id"`
	BroadcasterID string    `json:"broadcaster_id,omitempty"`
	CallID        string    `json:"call_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventProducer publishes broadcast lifecycle events. Implementations
// may be nil-checked away; publishing is never on the critical path.
type EventProducer interface {
	ProduceBroadcastStarted(ctx context.Context, broadcastID, broadcasterID string) error
	ProduceBroadcastStopped(ctx context.Context, broadcastID, broadcasterID, reason string) error
	ProduceCallAccepted(ctx context.Context, broadcastID, callID string) error
	Close() error
}
